package models

import (
	"strconv"
	"strings"
)

// Section names a skippable part of an episode
type Section string

const (
	SectionIntro Section = "intro"
	SectionOutro Section = "outro"
)

// Sections lists every section in the order they are evaluated
var Sections = []Section{SectionIntro, SectionOutro}

// ContentKey identifies one playback unit (a title and an optional episode)
type ContentKey struct {
	Title   string `json:"title"`
	Episode *int   `json:"episode,omitempty"`
}

// NewContentKey builds a key; a nil episode means the title has no episode number
func NewContentKey(title string, episode *int) ContentKey {
	key := ContentKey{Title: title}
	if episode != nil {
		ep := *episode
		key.Episode = &ep
	}
	return key
}

// Equal reports whether two keys name the same playback unit.
// Titles must match exactly; a nil episode only matches a nil episode.
func (k ContentKey) Equal(other ContentKey) bool {
	if k.Title != other.Title {
		return false
	}
	if k.Episode == nil || other.Episode == nil {
		return k.Episode == nil && other.Episode == nil
	}
	return *k.Episode == *other.Episode
}

// IsZero reports whether the key carries no title
func (k ContentKey) IsZero() bool {
	return strings.TrimSpace(k.Title) == ""
}

// String serializes the key as "title#episode", or "title#-" without an episode
func (k ContentKey) String() string {
	if k.Episode == nil {
		return k.Title + "#-"
	}
	return k.Title + "#" + strconv.Itoa(*k.Episode)
}

// SkipInterval is a [Start, End) range in seconds
type SkipInterval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Valid reports whether 0 <= Start < End
func (i SkipInterval) Valid() bool {
	return i.Start >= 0 && i.Start < i.End
}

// Contains reports whether pos lies within [Start, End)
func (i SkipInterval) Contains(pos float64) bool {
	return pos >= i.Start && pos < i.End
}

// SkipIntervalSet holds the skip intervals for the intro and outro of one episode
type SkipIntervalSet struct {
	Intro *SkipInterval `json:"intro,omitempty"`
	Outro *SkipInterval `json:"outro,omitempty"`
}

// Empty reports whether neither interval is present
func (s SkipIntervalSet) Empty() bool {
	return s.Intro == nil && s.Outro == nil
}

// Get returns the interval for a section, or nil
func (s SkipIntervalSet) Get(section Section) *SkipInterval {
	switch section {
	case SectionIntro:
		return s.Intro
	case SectionOutro:
		return s.Outro
	}
	return nil
}

// TitleMetadata is what the host reports about the content being played
type TitleMetadata struct {
	Title   string
	Episode *int
}

// Key converts the metadata into a ContentKey with a trimmed title
func (m TitleMetadata) Key() ContentKey {
	return NewContentKey(strings.TrimSpace(m.Title), m.Episode)
}
