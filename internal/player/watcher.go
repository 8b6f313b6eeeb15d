package player

import (
	"context"
	"time"

	"github.com/alvarorichard/goskip/internal/models"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// Listener receives playback events translated from mpv polling (implemented by *engine.Engine)
type Listener interface {
	OnMetadata(meta models.TitleMetadata)
	OnPosition(pos float64)
	OnPlaybackStart()
	OnPlaybackStop()
}

// WatcherConfig configures a Watcher
type WatcherConfig struct {
	Interval time.Duration
	// MaxFailures is how many consecutive unreachable polls mean mpv has exited
	MaxFailures int
	Logger      *log.Logger
}

// Watcher polls mpv and forwards what it sees to a Listener. mpv only
// offers polling for these properties, so this is the single place that
// turns it into events.
type Watcher struct {
	mpv      *MPV
	listener Listener
	cfg      WatcherConfig

	title    string
	playing  bool
	failures int
}

// NewWatcher creates a Watcher
func NewWatcher(mpv *MPV, listener Listener, cfg WatcherConfig) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Watcher{mpv: mpv, listener: listener, cfg: cfg}
}

// Run polls until ctx is cancelled or mpv exits
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := w.Poll(); err != nil {
			if errors.Is(err, ErrNotRunning) {
				w.cfg.Logger.Info("mpv exited")
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			w.stop()
			return nil
		case <-ticker.C:
		}
	}
}

// Poll performs one polling step. It returns ErrNotRunning once mpv has been
// unreachable for MaxFailures consecutive polls.
func (w *Watcher) Poll() error {
	idle, err := w.mpv.Idle()
	if err != nil {
		if errors.Is(err, ErrNotRunning) {
			w.failures++
			if w.failures >= w.cfg.MaxFailures {
				w.stop()
				return err
			}
			return nil
		}
		w.cfg.Logger.Debug("idle check failed", "error", err)
		return nil
	}
	w.failures = 0

	if idle {
		w.stop()
		return nil
	}

	if title, err := w.mpv.MediaTitle(); err == nil && title != w.title {
		w.title = title
		meta := ParseMediaTitle(title)
		w.cfg.Logger.Debug("media title changed", "media_title", title, "title", meta.Title)
		w.listener.OnMetadata(meta)
	}

	pos, err := w.mpv.Position()
	if err != nil {
		if !errors.Is(err, ErrPropertyUnavailable) {
			w.cfg.Logger.Debug("position unavailable", "error", err)
		}
		return nil
	}
	if !w.playing {
		w.playing = true
		w.listener.OnPlaybackStart()
	}
	w.listener.OnPosition(pos)
	return nil
}

func (w *Watcher) stop() {
	w.title = ""
	if w.playing {
		w.playing = false
		w.listener.OnPlaybackStop()
	}
}
