// Package notify provides the user-visible notification surfaces for skips.
package notify

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Notifier shows a short message for roughly duration
type Notifier interface {
	Show(message string, duration time.Duration)
}

var badgeStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#FFFFFF")).
	Background(lipgloss.Color("#00A67E")).
	Bold(true).
	Padding(0, 1).
	MarginRight(1)

// Terminal prints notifications as a styled line. The duration is ignored.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewTerminal creates a Terminal notifier writing to out, or stdout when nil
func NewTerminal(out io.Writer) *Terminal {
	if out == nil {
		out = os.Stdout
	}
	return &Terminal{out: out, now: time.Now}
}

func (t *Terminal) Show(message string, _ time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s%s %s\n", badgeStyle.Render("skip"), t.now().Format("15:04:05"), message)
}

// Multi fans a notification out to every non-nil notifier
type Multi []Notifier

func (m Multi) Show(message string, duration time.Duration) {
	for _, n := range m {
		if n != nil {
			n.Show(message, duration)
		}
	}
}
