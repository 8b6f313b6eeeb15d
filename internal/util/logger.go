package util

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// getColoredPrefix returns a styled prefix with colors
func getColoredPrefix() string {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#6366F1")).
		Bold(true).
		Padding(0, 1).
		MarginRight(1)
	return style.Render("goskip")
}

// ParseLevel maps a config level name to a log level, defaulting to info
func ParseLevel(level string) log.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// NewLogger builds the application logger. Debug mode forces the debug level
// and adds caller and timestamp information.
func NewLogger(w io.Writer, level string, debug bool) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := log.NewWithOptions(w, log.Options{
		ReportCaller:    debug,
		ReportTimestamp: debug,
		TimeFormat:      "15:04:05",
		Prefix:          getColoredPrefix(),
	})

	if debug {
		logger.SetLevel(log.DebugLevel)
		logger.SetColorProfile(termenv.TrueColor)
		logger.Debug("Debug logging enabled with charmbracelet/log")
	} else {
		logger.SetLevel(ParseLevel(level))
	}
	return logger
}

// OpenLogFile opens path for appending, creating it if needed
func OpenLogFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
