package version

import (
	"fmt"
	"io"

	"github.com/alvarorichard/goskip/internal/storage"
)

const (
	Version = "0.3.0"
)

// HasVersionArg reports whether args ask for the version
func HasVersionArg(args []string) bool {
	if len(args) > 1 {
		arg := args[1]
		return arg == "--version" || arg == "-version" || arg == "-v" || arg == "--v" || arg == "version"
	}
	return false
}

// ShowVersion prints the version and which cache backends this build supports
func ShowVersion(w io.Writer) {
	fmt.Fprintf(w, "goskip v%s", Version)
	if storage.IsCgoEnabled {
		fmt.Fprintln(w, " (cache backends: bolt, sqlite, redis, postgres, memory)")
	} else {
		fmt.Fprintln(w, " (cache backends: bolt, redis, postgres, memory)")
	}
}
