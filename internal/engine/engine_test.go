package engine

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alvarorichard/goskip/internal/models"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock only moves when Advance is called
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

type fakePlayback struct {
	mu       sync.Mutex
	seeks    []float64
	seekErr  error
	duration float64
}

func (p *fakePlayback) Position() (float64, error) { return 0, nil }

func (p *fakePlayback) SeekTo(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeks = append(p.seeks, seconds)
	return p.seekErr
}

func (p *fakePlayback) Duration() (float64, error) {
	if p.duration == 0 {
		return 0, ErrUnavailable
	}
	return p.duration, nil
}

func (p *fakePlayback) Seeks() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.seeks...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Show(message string, _ time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

// fakeFetcher serves canned sets; a key with a gate blocks until the gate is closed
type fakeFetcher struct {
	mu    sync.Mutex
	sets  map[string]*models.SkipIntervalSet
	gates map[string]chan struct{}
	err   error
	calls []string
}

func (f *fakeFetcher) FetchIntervals(ctx context.Context, key models.ContentKey) (*models.SkipIntervalSet, error) {
	f.mu.Lock()
	f.calls = append(f.calls, key.String())
	gate := f.gates[key.String()]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.sets[key.String()], nil
}

func ep(n int) *int { return &n }

func intro(start, end float64) *models.SkipIntervalSet {
	return &models.SkipIntervalSet{Intro: &models.SkipInterval{Start: start, End: end}}
}

type harness struct {
	engine   *Engine
	clock    *fakeClock
	playback *fakePlayback
	notifier *fakeNotifier
	fetcher  *fakeFetcher
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		clock:    newFakeClock(),
		playback: &fakePlayback{},
		notifier: &fakeNotifier{},
		fetcher: &fakeFetcher{
			sets:  map[string]*models.SkipIntervalSet{},
			gates: map[string]chan struct{}{},
		},
	}
	cfg := Config{
		Playback: h.playback,
		Notifier: h.notifier,
		Fetcher:  h.fetcher,
		Clock:    h.clock,
		Logger:   log.New(io.Discard),
		Notify:   true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.engine = New(cfg)
	t.Cleanup(h.engine.Close)
	return h
}

// play switches to title/episode and waits for its lookup to be applied
func (h *harness) play(title string, episode *int) {
	h.engine.OnMetadata(models.TitleMetadata{Title: title, Episode: episode})
	h.engine.Wait()
}

func TestEngine_SkipsIntroOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.fetcher.sets["Frieren#1"] = intro(85, 105)
	h.play("Frieren", ep(1))

	for _, pos := range []float64{80, 90, 110} {
		h.engine.OnPosition(pos)
	}

	assert.Equal(t, []float64{105}, h.playback.Seeks())
	assert.Equal(t, []string{"Skipping intro"}, h.notifier.messages)
}

func TestEngine_AtMostOncePerSession(t *testing.T) {
	t.Parallel()
	obs := &countingObserver{}
	h := newHarness(t, func(c *Config) { c.Observer = obs })
	h.fetcher.sets["Frieren#1"] = intro(85, 105)
	h.play("Frieren", ep(1))

	h.engine.OnPosition(90)
	h.clock.Advance(time.Minute)
	// scrubbing back into the intro does not re-arm it
	h.engine.OnPosition(86)
	h.engine.OnPosition(100)

	assert.Equal(t, []float64{105}, h.playback.Seeks())
	assert.True(t, h.engine.Session().Skipped(models.SectionIntro))
	assert.Equal(t, 1, obs.skips[models.SectionIntro])
	assert.Equal(t, 0, obs.seekFailures)
}

func TestEngine_NewSessionReArms(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.fetcher.sets["Frieren#1"] = intro(85, 105)
	h.fetcher.sets["Frieren#2"] = intro(10, 20)
	h.play("Frieren", ep(1))
	h.engine.OnPosition(90)

	h.play("Frieren", ep(2))
	h.clock.Advance(5 * time.Second)
	h.engine.OnPosition(15)

	assert.Equal(t, []float64{105, 20}, h.playback.Seeks())
}

func TestEngine_Cooldown(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(c *Config) { c.Cooldown = 2 * time.Second })
	h.fetcher.sets["Movie#-"] = &models.SkipIntervalSet{
		Intro: &models.SkipInterval{Start: 0, End: 50},
		Outro: &models.SkipInterval{Start: 40, End: 60},
	}
	h.play("Movie", nil)

	// both sections are eligible on the same update; only the first seeks
	h.engine.OnPosition(45)
	assert.Equal(t, []float64{50}, h.playback.Seeks())

	h.clock.Advance(time.Second)
	h.engine.OnPosition(45)
	assert.Equal(t, []float64{50}, h.playback.Seeks())

	h.clock.Advance(time.Second)
	h.engine.OnPosition(45)
	assert.Equal(t, []float64{50, 60}, h.playback.Seeks())
}

type countingObserver struct {
	mu           sync.Mutex
	skips        map[models.Section]int
	seekFailures int
	stale        int
}

func (o *countingObserver) Skip(section models.Section) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.skips == nil {
		o.skips = map[models.Section]int{}
	}
	o.skips[section]++
}

func (o *countingObserver) SeekFailed(models.Section) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seekFailures++
}

func (o *countingObserver) StaleResult() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stale++
}

func TestEngine_StaleResultDiscarded(t *testing.T) {
	t.Parallel()
	obs := &countingObserver{}
	h := newHarness(t, func(c *Config) { c.Observer = obs })
	gateA := make(chan struct{})
	h.fetcher.gates["A#1"] = gateA
	h.fetcher.sets["A#1"] = intro(0, 100)
	h.fetcher.sets["B#1"] = intro(200, 300)

	h.engine.OnMetadata(models.TitleMetadata{Title: "A", Episode: ep(1)})
	h.engine.OnMetadata(models.TitleMetadata{Title: "B", Episode: ep(1)})
	close(gateA)
	h.engine.Wait()

	sess := h.engine.Session()
	require.NotNil(t, sess)
	assert.Equal(t, "B#1", sess.Key.String())
	require.NotNil(t, sess.Intervals)
	assert.Equal(t, 200.0, sess.Intervals.Intro.Start)

	h.engine.OnPosition(50)
	assert.Empty(t, h.playback.Seeks())
	assert.Equal(t, 1, obs.stale)
}

func TestEngine_ResetBeforeLookupCompletes(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.fetcher.sets["A#1"] = intro(0, 100)
	h.play("A", ep(1))

	gate := make(chan struct{})
	h.fetcher.gates["B#1"] = gate
	h.engine.OnMetadata(models.TitleMetadata{Title: "B", Episode: ep(1)})

	// A's intervals no longer apply while B is still loading
	h.engine.OnPosition(50)
	assert.Empty(t, h.playback.Seeks())

	close(gate)
	h.engine.Wait()
}

func TestEngine_SeekFailureStillMarksSkipped(t *testing.T) {
	t.Parallel()
	obs := &countingObserver{}
	h := newHarness(t, func(c *Config) { c.Observer = obs })
	h.playback.seekErr = errors.New("detached")
	h.fetcher.sets["Frieren#1"] = intro(85, 105)
	h.play("Frieren", ep(1))

	h.engine.OnPosition(90)
	h.clock.Advance(time.Minute)
	h.engine.OnPosition(91)

	assert.Equal(t, []float64{105}, h.playback.Seeks())
	assert.True(t, h.engine.Session().Skipped(models.SectionIntro))
	assert.Equal(t, 1, obs.skips[models.SectionIntro])
	assert.Equal(t, 1, obs.seekFailures)
}

func TestEngine_DelayedSeek(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(c *Config) { c.Delay = 500 * time.Millisecond })
	h.fetcher.sets["Frieren#1"] = intro(85, 105)
	h.play("Frieren", ep(1))

	h.engine.OnPosition(90)
	assert.Empty(t, h.playback.Seeks())
	assert.True(t, h.engine.Session().Skipped(models.SectionIntro))

	h.clock.Advance(499 * time.Millisecond)
	assert.Empty(t, h.playback.Seeks())

	h.clock.Advance(time.Millisecond)
	assert.Equal(t, []float64{105}, h.playback.Seeks())
}

func TestEngine_DelayedSeekCancelledOnTitleChange(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(c *Config) { c.Delay = time.Second })
	h.fetcher.sets["Frieren#1"] = intro(85, 105)
	h.play("Frieren", ep(1))

	h.engine.OnPosition(90)
	h.play("Frieren", ep(2))
	h.clock.Advance(2 * time.Second)

	assert.Empty(t, h.playback.Seeks())
}

func TestEngine_DelayedSeekCancelledOnStop(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(c *Config) { c.Delay = time.Second })
	h.fetcher.sets["Frieren#1"] = intro(85, 105)
	h.play("Frieren", ep(1))

	h.engine.OnPlaybackStart()
	h.engine.OnPosition(90)
	h.engine.OnPlaybackStop()
	h.clock.Advance(2 * time.Second)

	assert.Empty(t, h.playback.Seeks())
}

func TestEngine_ResolverIgnoresEmptyAndRepeatedKeys(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.play("  ", ep(1))
	_, ok := h.engine.ActiveKey()
	assert.False(t, ok)

	h.play("Frieren", ep(1))
	h.play("Frieren", ep(1))
	h.play("", nil)

	key, ok := h.engine.ActiveKey()
	require.True(t, ok)
	assert.Equal(t, "Frieren#1", key.String())
	assert.Equal(t, []string{"Frieren#1"}, h.fetcher.calls)
	assert.Equal(t, uint64(1), h.engine.Session().Generation)
}

func TestEngine_DisabledSection(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(c *Config) { c.Sections = []models.Section{models.SectionOutro} })
	h.fetcher.sets["Frieren#1"] = &models.SkipIntervalSet{
		Intro: &models.SkipInterval{Start: 85, End: 105},
		Outro: &models.SkipInterval{Start: 1300, End: 1390},
	}
	h.play("Frieren", ep(1))

	h.engine.OnPosition(90)
	h.clock.Advance(time.Minute)
	h.engine.OnPosition(1310)

	assert.Equal(t, []float64{1390}, h.playback.Seeks())
}

func TestEngine_NoNotificationWhenDisabled(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(c *Config) { c.Notify = false })
	h.fetcher.sets["Frieren#1"] = intro(85, 105)
	h.play("Frieren", ep(1))

	h.engine.OnPosition(90)
	assert.Equal(t, []float64{105}, h.playback.Seeks())
	assert.Empty(t, h.notifier.messages)
}

func TestEngine_FetchErrorMeansNoSkip(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.fetcher.err = errors.New("giving up after 3 attempts")
	h.fetcher.sets["Frieren#1"] = intro(85, 105)
	h.play("Frieren", ep(1))

	h.engine.OnPosition(90)
	assert.Empty(t, h.playback.Seeks())
}

func TestEngine_OutroFallback(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(c *Config) { c.OutroFallback = 90 * time.Second })
	h.playback.duration = 1440
	h.fetcher.sets["Frieren#1"] = intro(85, 105)
	h.play("Frieren", ep(1))

	sess := h.engine.Session()
	require.NotNil(t, sess.Intervals)
	require.NotNil(t, sess.Intervals.Outro)
	assert.Equal(t, models.SkipInterval{Start: 1350, End: 1440}, *sess.Intervals.Outro)
	assert.Equal(t, 85.0, sess.Intervals.Intro.Start)
}

func TestEngine_OutroFallbackWithoutDuration(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(c *Config) { c.OutroFallback = 90 * time.Second })
	h.play("Unknown", ep(1))

	assert.Nil(t, h.engine.Session().Intervals)
}

func TestEngine_NoOutroFallbackByDefault(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.playback.duration = 1440
	h.fetcher.sets["Frieren#1"] = intro(85, 105)
	h.play("Frieren", ep(1))

	assert.Nil(t, h.engine.Session().Intervals.Outro)
}

type panickyPlayback struct{ fakePlayback }

func (*panickyPlayback) SeekTo(float64) error { panic("boom") }

func TestEngine_HandlersNeverPanic(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{sets: map[string]*models.SkipIntervalSet{"X#-": intro(0, 10)}}
	e := New(Config{
		Playback: &panickyPlayback{},
		Fetcher:  fetcher,
		Clock:    newFakeClock(),
		Logger:   log.New(io.Discard),
	})
	defer e.Close()

	e.OnMetadata(models.TitleMetadata{Title: "X"})
	e.Wait()

	assert.NotPanics(t, func() { e.OnPosition(5) })
	// the engine lock was released by the deferred unlock
	_, ok := e.ActiveKey()
	assert.True(t, ok)
}

func TestEngine_NilCollaborators(t *testing.T) {
	t.Parallel()
	e := New(Config{Logger: log.New(io.Discard)})
	defer e.Close()

	e.OnMetadata(models.TitleMetadata{Title: "X"})
	e.Wait()
	assert.NotPanics(t, func() { e.OnPosition(5) })
}
