// Package engine ties title detection, timing lookup and skip scheduling together.
//
// The host adapter feeds the engine through its listener methods (OnMetadata,
// OnPosition, OnPlaybackStart, OnPlaybackStop). A title change resets the skip
// session before the handler returns and starts an asynchronous timing lookup;
// lookups that finish after a newer title change are discarded.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/alvarorichard/goskip/internal/models"
	"github.com/charmbracelet/log"
)

// Config wires an Engine to its collaborators
type Config struct {
	Playback Playback
	Notifier Notifier
	Fetcher  Fetcher
	Clock    Clock
	Observer Observer
	Logger   *log.Logger

	Cooldown       time.Duration
	Delay          time.Duration
	Notify         bool
	NotifyDuration time.Duration
	// Sections limits which sections are skipped; nil means all
	Sections []models.Section

	// OutroFallback, when positive, synthesizes an outro covering the last
	// OutroFallback of the episode whenever the timing data has none.
	OutroFallback time.Duration
}

// Engine is the skip engine for one player
type Engine struct {
	mu         sync.Mutex
	cfg        Config
	logger     *log.Logger
	resolver   Resolver
	scheduler  *Scheduler
	generation uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Engine, substituting no-op collaborators for nil ones
func New(cfg Config) *Engine {
	if cfg.Playback == nil {
		cfg.Playback = NopPlayback{}
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = nopFetcher{}
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:    cfg,
		logger: cfg.Logger,
		scheduler: NewScheduler(SchedulerConfig{
			Playback:       cfg.Playback,
			Notifier:       cfg.Notifier,
			Clock:          cfg.Clock,
			Observer:       cfg.Observer,
			Logger:         cfg.Logger,
			Cooldown:       cfg.Cooldown,
			Delay:          cfg.Delay,
			Notify:         cfg.Notify,
			NotifyDuration: cfg.NotifyDuration,
			Sections:       cfg.Sections,
		}),
		ctx:    ctx,
		cancel: cancel,
	}
	e.resolver.Subscribe(e.onTitleChange)
	return e
}

// OnMetadata handles a host metadata notification
func (e *Engine) OnMetadata(meta models.TitleMetadata) {
	defer e.recoverHandler("OnMetadata")
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.resolver.Observe(meta) && meta.Key().IsZero() {
		e.logger.Debug("ignoring metadata without title")
	}
}

// OnPosition handles a playback position update in seconds
func (e *Engine) OnPosition(pos float64) {
	defer e.recoverHandler("OnPosition")
	e.mu.Lock()
	defer e.mu.Unlock()

	e.scheduler.OnPosition(pos)
}

// OnPlaybackStart handles the host starting playback
func (e *Engine) OnPlaybackStart() {
	defer e.recoverHandler("OnPlaybackStart")
	e.logger.Debug("playback started")
}

// OnPlaybackStop handles the host stopping playback. Pending delayed seeks are dropped.
func (e *Engine) OnPlaybackStop() {
	defer e.recoverHandler("OnPlaybackStop")
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Debug("playback stopped")
	e.scheduler.CancelPending()
}

// ActiveKey returns the key of the current session
func (e *Engine) ActiveKey() (models.ContentKey, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolver.Current()
}

// Session returns the current skip session, or nil before the first title
func (e *Engine) Session() *Session {
	return e.scheduler.Session()
}

// Wait blocks until every in-flight timing lookup has been applied or discarded
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close stops pending timers and waits for in-flight lookups to finish
func (e *Engine) Close() {
	e.cancel()
	e.scheduler.CancelPending()
	e.wg.Wait()
}

// onTitleChange runs synchronously inside OnMetadata with e.mu held
func (e *Engine) onTitleChange(key models.ContentKey) {
	e.generation++
	generation := e.generation
	e.scheduler.Reset(key, generation)

	e.logger.Info("now playing", "key", key.String())

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		set, err := e.cfg.Fetcher.FetchIntervals(e.ctx, key)
		e.applyIntervals(generation, key, set, err)
	}()
}

func (e *Engine) applyIntervals(generation uint64, key models.ContentKey, set *models.SkipIntervalSet, err error) {
	defer e.recoverHandler("applyIntervals")
	e.mu.Lock()
	defer e.mu.Unlock()

	if generation != e.generation {
		e.logger.Debug("discarding stale timing result", "key", key.String())
		e.cfg.Observer.StaleResult()
		return
	}
	if err != nil {
		e.logger.Warn("timing lookup failed", "key", key.String(), "error", err)
		set = nil
	}

	set = e.withOutroFallback(set)
	if set == nil || set.Empty() {
		e.logger.Info("no skip data", "key", key.String())
		return
	}

	e.logger.Debug("skip data ready", "key", key.String(), "intro", set.Intro, "outro", set.Outro)
	e.scheduler.SetIntervals(set)
}

// withOutroFallback fills in a fixed-length outro at the end of the episode
// when enabled and the timing data has no outro of its own
func (e *Engine) withOutroFallback(set *models.SkipIntervalSet) *models.SkipIntervalSet {
	if e.cfg.OutroFallback <= 0 || (set != nil && set.Outro != nil) {
		return set
	}
	duration, err := e.cfg.Playback.Duration()
	if err != nil || duration <= 0 {
		return set
	}

	outro := models.SkipInterval{
		Start: duration - e.cfg.OutroFallback.Seconds(),
		End:   duration,
	}
	if !outro.Valid() {
		return set
	}

	out := models.SkipIntervalSet{Outro: &outro}
	if set != nil {
		out.Intro = set.Intro
	}
	e.logger.Debug("using fallback outro", "start", outro.Start, "end", outro.End)
	return &out
}

func (e *Engine) recoverHandler(name string) {
	if r := recover(); r != nil {
		e.logger.Error("handler panicked", "handler", name, "panic", r)
	}
}
