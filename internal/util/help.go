package util

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Help styles using lipgloss
var (
	lightGreen  = lipgloss.Color("#90EE90")
	gray        = lipgloss.Color("#A9A9A9")
	darkGray    = lipgloss.Color("#5A5A5A")
	brightGreen = lipgloss.Color("#00FF7F")
	blue        = lipgloss.Color("#6366F1") // matches logger prefix

	titleStyle = lipgloss.NewStyle().
			Foreground(blue).
			Bold(true).
			PaddingBottom(1).
			MarginLeft(2)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(gray).
			Italic(true).
			PaddingBottom(1).
			MarginLeft(2)

	sectionTitleStyle = lipgloss.NewStyle().
				Foreground(lightGreen).
				Bold(true).
				PaddingLeft(2)

	commandStyle = lipgloss.NewStyle().
			Foreground(brightGreen).
			Bold(true).
			PaddingLeft(4)

	parameterStyle = lipgloss.NewStyle().
			Foreground(gray).
			Italic(true)

	descriptionStyle = lipgloss.NewStyle().
				Foreground(gray).
				PaddingLeft(6).
				Width(80 - 6)

	separatorStyle = lipgloss.NewStyle().
			Foreground(darkGray)
)

// RenderHelp returns the formatted help text
func RenderHelp() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("goskip - automatic intro and outro skipping for mpv"))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render("Watches mpv over its IPC socket and seeks past openings and endings."))
	b.WriteString("\n\n")

	section(&b, "Usage:")
	addEntry(&b, "goskip "+parameterStyle.Render("[options]"), "Attach to an mpv started with --input-ipc-server (see -socket).")
	addEntry(&b, "goskip "+parameterStyle.Render("[options] <file or url>"), "Start mpv on the target and skip as it plays.")
	b.WriteString("\n")

	section(&b, "Options:")
	addEntry(&b, "-config <path>", "Config file (default ~/.config/goskip/config.yaml).")
	addEntry(&b, "-socket <path>", "mpv IPC socket to attach to. Overrides player.socket.")
	addEntry(&b, "-debug", "Enable debug logging with caller and timestamps.")
	addEntry(&b, "-clear-cache", "Remove every cached skip timing and exit.")
	addEntry(&b, "-yes", "Do not ask for confirmation (with -clear-cache).")
	addEntry(&b, "-version", "Show version information.")
	addEntry(&b, "-help / -h", "Display this help message.")
	b.WriteString("\n")

	section(&b, "Environment:")
	addEntry(&b, "GOSKIP_<SECTION>_<KEY>", "Overrides any config key, e.g. GOSKIP_SKIP_COOLDOWN=3s or GOSKIP_API_BASE_URL.")
	b.WriteString("\n")

	section(&b, "Examples:")
	addEntry(&b, "goskip \"[Group] Frieren - 03.mkv\"", "Play a file and skip its intro and outro")
	addEntry(&b, "goskip -socket /tmp/mpvsocket", "Attach to an already running mpv")
	addEntry(&b, "goskip -clear-cache -yes", "Drop cached timings without prompting")
	addEntry(&b, "GOSKIP_METRICS_LISTEN=:9464 goskip -socket /tmp/mpvsocket", "Expose Prometheus counters on :9464/metrics")
	b.WriteString("\n")

	b.WriteString(separatorStyle.Render(strings.Repeat("─", 80)))
	b.WriteString("\n")
	return b.String()
}

// ShowHelp prints the help text to w
func ShowHelp(w io.Writer) {
	fmt.Fprint(w, RenderHelp())
}

func section(b *strings.Builder, title string) {
	b.WriteString(separatorStyle.Render(strings.Repeat("─", 80)))
	b.WriteString("\n")
	b.WriteString(sectionTitleStyle.Render(title))
	b.WriteString("\n")
}

func addEntry(b *strings.Builder, cmd, desc string) {
	b.WriteString(commandStyle.Render("  " + cmd))
	b.WriteString("\n")
	b.WriteString(descriptionStyle.Render("    " + desc))
	b.WriteString("\n")
}
