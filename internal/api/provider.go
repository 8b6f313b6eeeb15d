package api

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/alvarorichard/goskip/internal/models"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// Source is the remote side of the provider (implemented by *Client)
type Source interface {
	Search(ctx context.Context, title string) ([]SearchResult, error)
	Timings(ctx context.Context, id string) (*TimingRecord, error)
}

// Cache is the subset of the timing cache the provider uses
type Cache interface {
	Get(key models.ContentKey) (models.SkipIntervalSet, bool)
	Set(key models.ContentKey, value models.SkipIntervalSet)
}

// Lookup outcomes reported to a LookupObserver
const (
	LookupCacheHit = "cache_hit"
	LookupFetched  = "fetched"
	LookupAbsent   = "absent"
	LookupError    = "error"
)

// LookupObserver is told how each FetchIntervals call ended (implemented by *metrics.Recorder)
type LookupObserver interface {
	Lookup(outcome string)
}

type nopObserver struct{}

func (nopObserver) Lookup(string) {}

// ProviderConfig configures a Provider
type ProviderConfig struct {
	Source Source
	// Cache may be nil to disable caching
	Cache    Cache
	Observer LookupObserver
	// TimePrecision is the number of decimals kept; negative keeps the raw values
	TimePrecision int
	Logger        *log.Logger
}

// Provider resolves a ContentKey to its skip intervals, from cache or from the timing API.
type Provider struct {
	source    Source
	cache     Cache
	precision int
	logger    *log.Logger
	observer  LookupObserver
	group     singleflight.Group
}

// NewProvider creates a new Provider
func NewProvider(cfg ProviderConfig) *Provider {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	return &Provider{
		source:    cfg.Source,
		cache:     cfg.Cache,
		precision: cfg.TimePrecision,
		logger:    cfg.Logger,
		observer:  cfg.Observer,
	}
}

// FetchIntervals returns the skip intervals for key. A nil set with a nil
// error means there is no skip data for this content. An error is returned
// only when the timing API kept failing after all retries.
// Concurrent calls for the same key share one lookup.
func (p *Provider) FetchIntervals(ctx context.Context, key models.ContentKey) (*models.SkipIntervalSet, error) {
	if p.cache != nil {
		if set, ok := p.cache.Get(key); ok {
			p.logger.Debug("timing cache hit", "key", key.String())
			p.observer.Lookup(LookupCacheHit)
			return &set, nil
		}
	}

	v, err, _ := p.group.Do(key.String(), func() (interface{}, error) {
		return p.lookup(ctx, key)
	})
	if err != nil {
		p.observer.Lookup(LookupError)
		return nil, err
	}
	set := v.(*models.SkipIntervalSet)
	if set == nil {
		p.observer.Lookup(LookupAbsent)
	} else {
		p.observer.Lookup(LookupFetched)
	}
	return set, nil
}

func (p *Provider) lookup(ctx context.Context, key models.ContentKey) (*models.SkipIntervalSet, error) {
	results, err := p.source.Search(ctx, key.Title)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		p.logger.Info("no timing data for title", "title", key.Title)
		return nil, nil
	}

	match := results[0]
	p.logger.Debug("title resolved", "title", key.Title, "id", match.ID, "match", match.Title)

	record, err := p.source.Timings(ctx, match.ID)
	if err != nil {
		return nil, err
	}

	set, err := ExtractIntervals(record, key.Episode, p.precision)
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			p.logger.Info("no timing data for episode", "key", key.String(), "reason", err)
			return nil, nil
		}
		return nil, err
	}
	if set.Empty() {
		p.logger.Info("timing record has no usable intervals", "key", key.String())
		return nil, nil
	}

	if p.cache != nil {
		p.cache.Set(key, set)
	}
	return &set, nil
}

// ExtractIntervals selects the episode sub-record from record and converts its
// sections into intervals. With a nil episode the lowest-numbered episode is used.
// Sections that are not an array of at least two numbers, or that do not form a
// valid interval, are left out.
func ExtractIntervals(record *TimingRecord, episode *int, precision int) (models.SkipIntervalSet, error) {
	var set models.SkipIntervalSet
	if record == nil || len(record.Episodes) == 0 {
		return set, errors.Wrap(ErrNoMatch, "timing record has no episodes")
	}

	var timings EpisodeTimings
	if episode != nil {
		t, ok := record.Episodes[strconv.Itoa(*episode)]
		if !ok {
			return set, errors.Wrapf(ErrNoMatch, "episode %d not in timing record", *episode)
		}
		timings = t
	} else {
		timings = record.Episodes[firstEpisode(record.Episodes)]
	}

	set.Intro = parseInterval(timings.Intro, precision)
	set.Outro = parseInterval(timings.Outro, precision)
	return set, nil
}

// firstEpisode returns the numerically smallest episode key, falling back to
// lexical order for keys that are not numbers
func firstEpisode(episodes map[string]EpisodeTimings) string {
	keys := make([]string, 0, len(episodes))
	for k := range episodes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys[0]
}

func parseInterval(raw json.RawMessage, precision int) *models.SkipInterval {
	if len(raw) == 0 {
		return nil
	}
	var values []interface{}
	if err := json.Unmarshal(raw, &values); err != nil || len(values) < 2 {
		return nil
	}
	start, ok1 := values[0].(float64)
	end, ok2 := values[1].(float64)
	if !ok1 || !ok2 {
		return nil
	}

	interval := models.SkipInterval{
		Start: RoundTime(start, precision),
		End:   RoundTime(end, precision),
	}
	if !interval.Valid() {
		return nil
	}
	return &interval
}

// RoundTime rounds a time value to the specified precision.
// A negative precision returns the value unchanged.
func RoundTime(timeValue float64, precision int) float64 {
	if precision < 0 {
		return timeValue
	}
	multiplier := math.Pow(10, float64(precision))
	return math.Floor(timeValue*multiplier+0.5) / multiplier
}
