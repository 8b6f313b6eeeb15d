package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/alvarorichard/goskip/internal/util"
	"github.com/alvarorichard/goskip/internal/version"
)

func main() {
	// Define all flags in one place
	configFlag := flag.String("config", "", "path to config.yaml")
	socketFlag := flag.String("socket", "", "mpv IPC socket to attach to")
	debugFlag := flag.Bool("debug", false, "enable debug mode")
	clearCacheFlag := flag.Bool("clear-cache", false, "remove cached skip timings and exit")
	yesFlag := flag.Bool("yes", false, "do not ask for confirmation")
	versionFlag := flag.Bool("version", false, "show version information")
	helpFlag := flag.Bool("help", false, "show help message")
	altHelpFlag := flag.Bool("h", false, "show help message")

	flag.Usage = func() { util.ShowHelp(os.Stderr) }
	flag.Parse()

	if *versionFlag || version.HasVersionArg(os.Args) {
		version.ShowVersion(os.Stdout)
		return
	}

	if *helpFlag || *altHelpFlag {
		util.ShowHelp(os.Stdout)
		return
	}

	util.SetDebugMode(*debugFlag)

	opts := options{
		configPath: *configFlag,
		socket:     *socketFlag,
		debug:      *debugFlag,
		clearCache: *clearCacheFlag,
		yes:        *yesFlag,
		target:     flag.Arg(0),
	}
	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, util.ErrorHandler(err))
		os.Exit(1)
	}
}
