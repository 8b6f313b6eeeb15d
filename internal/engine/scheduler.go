package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/alvarorichard/goskip/internal/models"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// DefaultCooldown is the minimum gap between two skips in one session
const DefaultCooldown = 2 * time.Second

// SchedulerConfig configures a Scheduler
type SchedulerConfig struct {
	Playback Playback
	Notifier Notifier
	Clock    Clock
	Observer Observer
	Logger   *log.Logger

	// Cooldown defaults to DefaultCooldown when zero; a negative value disables it
	Cooldown       time.Duration
	Delay          time.Duration
	Notify         bool
	NotifyDuration time.Duration
	// Sections limits which sections are skipped; nil means all
	Sections []models.Section
}

// Scheduler seeks past each known interval once per session.
// It is safe for concurrent use; delayed seeks fire on timer goroutines.
type Scheduler struct {
	mu      sync.Mutex
	cfg     SchedulerConfig
	enabled map[models.Section]bool
	session *Session
	pending []Timer
}

// NewScheduler creates a Scheduler, substituting no-op collaborators for nil ones
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Playback == nil {
		cfg.Playback = NopPlayback{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.NotifyDuration <= 0 {
		cfg.NotifyDuration = 2 * time.Second
	}
	if cfg.Sections == nil {
		cfg.Sections = models.Sections
	}

	enabled := make(map[models.Section]bool, len(cfg.Sections))
	for _, s := range cfg.Sections {
		enabled[s] = true
	}
	return &Scheduler{cfg: cfg, enabled: enabled}
}

// Reset starts a new session for key, cancelling any pending delayed seek
func (s *Scheduler) Reset(key models.ContentKey, generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPendingLocked()
	s.session = newSession(key, generation)
}

// SetIntervals attaches skip data to the current session
func (s *Scheduler) SetIntervals(set *models.SkipIntervalSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return
	}
	s.session.Intervals = set
}

// Session returns the current session, or nil before the first title
func (s *Scheduler) Session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// OnPosition evaluates every known interval against pos and returns how many skips it started
func (s *Scheduler) OnPosition(pos float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session
	if sess == nil || sess.Intervals == nil {
		return 0
	}

	started := 0
	for _, section := range models.Sections {
		if !s.enabled[section] || sess.Skipped(section) {
			continue
		}
		interval := sess.Intervals.Get(section)
		if interval == nil || !interval.Contains(pos) {
			continue
		}

		now := s.cfg.Clock.Now()
		if !sess.LastSkipAt.IsZero() && now.Sub(sess.LastSkipAt) < s.cfg.Cooldown {
			s.cfg.Logger.Debug("skip suppressed by cooldown", "section", section, "position", pos)
			continue
		}

		s.startSkipLocked(sess, section, *interval, now)
		started++
	}
	return started
}

// CancelPending stops delayed seeks that have not fired yet
func (s *Scheduler) CancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPendingLocked()
}

func (s *Scheduler) startSkipLocked(sess *Session, section models.Section, interval models.SkipInterval, now time.Time) {
	sess.LastSkipAt = now
	sess.markSkipped(section)
	s.cfg.Observer.Skip(section)

	s.cfg.Logger.Info("skipping", "section", section, "key", sess.Key.String(), "to", interval.End)

	if s.cfg.Notify {
		s.cfg.Notifier.Show(fmt.Sprintf("Skipping %s", section), s.cfg.NotifyDuration)
	}

	if s.cfg.Delay <= 0 {
		s.seekLocked(section, interval.End)
		return
	}

	timer := s.cfg.Clock.AfterFunc(s.cfg.Delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.session != sess {
			return
		}
		s.seekLocked(section, interval.End)
	})
	s.pending = append(s.pending, timer)
}

// seekLocked is best effort: failures are logged and never retried
func (s *Scheduler) seekLocked(section models.Section, target float64) {
	if err := s.cfg.Playback.SeekTo(target); err != nil {
		err = errors.Wrapf(ErrSeek, "%s to %.2f: %v", section, target, err)
		s.cfg.Logger.Warn("skip seek failed", "error", err)
		s.cfg.Observer.SeekFailed(section)
	}
}

func (s *Scheduler) cancelPendingLocked() {
	for _, t := range s.pending {
		t.Stop()
	}
	s.pending = nil
}
