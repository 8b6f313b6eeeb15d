// Package cache implements the two-tier timing cache: a bounded FIFO map in
// memory in front of a durable storage.Storage.
package cache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/alvarorichard/goskip/internal/models"
	"github.com/alvarorichard/goskip/internal/storage"
	"github.com/charmbracelet/log"
)

const (
	// DefaultNamespace prefixes every durable key written by the cache
	DefaultNamespace = "goskip:timing:"

	DefaultMaxSize = 100
	DefaultExpiry  = 7 * 24 * time.Hour
)

// Options configures a TimingCache
type Options struct {
	MaxSize   int
	Expiry    time.Duration
	Namespace string
	// Durable is the persistent tier; nil keeps the cache in memory only
	Durable storage.Storage
	Now     func() time.Time
	Logger  *log.Logger
}

// Entry is one cached interval set together with the time it was stored
type Entry struct {
	Key      models.ContentKey      `json:"key"`
	Value    models.SkipIntervalSet `json:"value"`
	StoredAt time.Time              `json:"stored_at"`
}

// TimingCache is a bounded, expiring ContentKey -> SkipIntervalSet store.
// Eviction is by insertion order; reads never refresh an entry's position.
type TimingCache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string // fast-tier keys, oldest first

	maxSize   int
	expiry    time.Duration
	namespace string
	durable   storage.Storage
	now       func() time.Time
	logger    *log.Logger
}

// New creates a TimingCache, filling zero options with defaults
func New(opts Options) *TimingCache {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.Expiry <= 0 {
		opts.Expiry = DefaultExpiry
	}
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &TimingCache{
		entries:   make(map[string]*Entry, opts.MaxSize),
		maxSize:   opts.MaxSize,
		expiry:    opts.Expiry,
		namespace: opts.Namespace,
		durable:   opts.Durable,
		now:       opts.Now,
		logger:    opts.Logger,
	}
}

// Get returns the cached intervals for key if a fresh entry exists in either tier
func (c *TimingCache) Get(key models.ContentKey) (models.SkipIntervalSet, bool) {
	id := key.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[id]; ok && c.fresh(e) {
		return e.Value, true
	}

	e, ok := c.readDurable(id)
	if !ok {
		return models.SkipIntervalSet{}, false
	}
	c.insert(id, e)
	return e.Value, true
}

// Set stores value for key in the fast tier and writes it through to the durable tier
func (c *TimingCache) Set(key models.ContentKey, value models.SkipIntervalSet) {
	id := key.String()
	e := &Entry{Key: key, Value: value, StoredAt: c.now()}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.insert(id, e)
	c.writeDurable(id, e)
}

// Clear empties the fast tier and removes every durable entry in this cache's namespace
func (c *TimingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry, c.maxSize)
	c.order = nil

	if c.durable == nil {
		return
	}
	keys, err := c.durable.ListKeys(c.namespace)
	if err != nil {
		c.logger.Warn("listing durable cache keys failed", "error", err)
		return
	}
	removed := 0
	for _, k := range keys {
		if err := c.durable.Remove(k); err != nil {
			c.logger.Warn("removing durable cache entry failed", "key", k, "error", err)
			continue
		}
		removed++
	}
	c.logger.Debug("timing cache cleared", "durable_removed", removed)
}

// Len returns the number of entries in the fast tier
func (c *TimingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TimingCache) fresh(e *Entry) bool {
	return c.now().Sub(e.StoredAt) < c.expiry
}

// insert adds or replaces id in the fast tier. A replaced entry keeps its position.
func (c *TimingCache) insert(id string, e *Entry) {
	if _, exists := c.entries[id]; exists {
		c.entries[id] = e
		return
	}
	for len(c.order) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[id] = e
	c.order = append(c.order, id)
}

func (c *TimingCache) readDurable(id string) (*Entry, bool) {
	if c.durable == nil {
		return nil, false
	}
	dkey := c.namespace + id

	raw, ok, err := c.durable.Get(dkey)
	if err != nil {
		c.logger.Warn("durable cache read failed", "key", dkey, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn("discarding unreadable durable cache entry", "key", dkey, "error", err)
		c.removeDurable(dkey)
		return nil, false
	}
	if !c.fresh(&e) {
		c.removeDurable(dkey)
		return nil, false
	}
	return &e, true
}

func (c *TimingCache) writeDurable(id string, e *Entry) {
	if c.durable == nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		c.logger.Warn("encoding cache entry failed", "key", id, "error", err)
		return
	}
	if err := c.durable.Set(c.namespace+id, data); err != nil {
		c.logger.Warn("durable cache write failed", "key", id, "error", err)
	}
}

func (c *TimingCache) removeDurable(dkey string) {
	if err := c.durable.Remove(dkey); err != nil {
		c.logger.Warn("removing durable cache entry failed", "key", dkey, "error", err)
	}
}
