package engine

import (
	"context"
	"time"

	"github.com/alvarorichard/goskip/internal/models"
	"github.com/pkg/errors"
)

var (
	// ErrSeek wraps every failed seek issued by the scheduler
	ErrSeek = errors.New("seek failed")

	// ErrUnavailable is returned by the no-op playback surface
	ErrUnavailable = errors.New("playback surface unavailable")
)

// Playback is the host's playback surface
type Playback interface {
	Position() (float64, error)
	SeekTo(seconds float64) error
	Duration() (float64, error)
}

// Notifier shows a short user-visible message
type Notifier interface {
	Show(message string, duration time.Duration)
}

// Fetcher resolves a ContentKey to its skip intervals (implemented by *api.Provider).
// A nil set with a nil error means no data.
type Fetcher interface {
	FetchIntervals(ctx context.Context, key models.ContentKey) (*models.SkipIntervalSet, error)
}

// Observer is told about skip outcomes (implemented by *metrics.Recorder)
type Observer interface {
	Skip(section models.Section)
	SeekFailed(section models.Section)
	StaleResult()
}

// NopPlayback stands in when no playback surface is attached
type NopPlayback struct{}

func (NopPlayback) Position() (float64, error) { return 0, ErrUnavailable }
func (NopPlayback) SeekTo(float64) error       { return ErrUnavailable }
func (NopPlayback) Duration() (float64, error) { return 0, ErrUnavailable }

// NopNotifier discards notifications
type NopNotifier struct{}

func (NopNotifier) Show(string, time.Duration) {}

// NopObserver ignores every outcome
type NopObserver struct{}

func (NopObserver) Skip(models.Section)       {}
func (NopObserver) SeekFailed(models.Section) {}
func (NopObserver) StaleResult()              {}

// nopFetcher never has data
type nopFetcher struct{}

func (nopFetcher) FetchIntervals(context.Context, models.ContentKey) (*models.SkipIntervalSet, error) {
	return nil, nil
}
