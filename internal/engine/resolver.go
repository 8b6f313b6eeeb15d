package engine

import "github.com/alvarorichard/goskip/internal/models"

// Resolver turns host metadata notifications into title-change events.
// It emits once per distinct ContentKey and ignores metadata without a title.
type Resolver struct {
	current     *models.ContentKey
	subscribers []func(models.ContentKey)
}

// Subscribe registers fn to be called synchronously on every title change
func (r *Resolver) Subscribe(fn func(models.ContentKey)) {
	r.subscribers = append(r.subscribers, fn)
}

// Observe feeds one metadata notification. It reports whether a title change was emitted.
func (r *Resolver) Observe(meta models.TitleMetadata) bool {
	key := meta.Key()
	if key.IsZero() {
		return false
	}
	if r.current != nil && r.current.Equal(key) {
		return false
	}
	r.current = &key
	for _, fn := range r.subscribers {
		fn(key)
	}
	return true
}

// Current returns the active key, if any
func (r *Resolver) Current() (models.ContentKey, bool) {
	if r.current == nil {
		return models.ContentKey{}, false
	}
	return *r.current, true
}
