package engine

import (
	"time"

	"github.com/alvarorichard/goskip/internal/models"
)

// Session is the skip state for one playback unit
type Session struct {
	Key        models.ContentKey
	Generation uint64
	Intervals  *models.SkipIntervalSet
	LastSkipAt time.Time

	skipped map[models.Section]bool
}

func newSession(key models.ContentKey, generation uint64) *Session {
	return &Session{
		Key:        key,
		Generation: generation,
		skipped:    make(map[models.Section]bool, len(models.Sections)),
	}
}

// Skipped reports whether section was already skipped in this session
func (s *Session) Skipped(section models.Section) bool {
	return s.skipped[section]
}

func (s *Session) markSkipped(section models.Section) {
	s.skipped[section] = true
}
