package player

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/alvarorichard/goskip/internal/models"
)

var (
	reExtension  = regexp.MustCompile(`(?i)\.(mkv|mp4|webm|avi|m4v|mov|ts)$`)
	reBracketTag = regexp.MustCompile(`\[[^\]]*\]`)
	reResolution = regexp.MustCompile(`(?i)\([^)]*\d{3,4}p[^)]*\)`)

	// tried in order; the first capture group is the episode number
	episodePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bS\d{1,2}\s*E(\d{1,4})\b`),
		regexp.MustCompile(`(?i)\b(?:episode|epis[oó]dio|ep\.?)\s*(\d{1,4})\b`),
		regexp.MustCompile(`\s-\s*(\d{1,4})(?:v\d)?(?:\s|$)`),
	}
)

// ParseMediaTitle derives the title and episode from an mpv media-title,
// which is often a release file name such as
// "[Group] Sousou no Frieren - 03 (1080p) [ABCD1234].mkv".
func ParseMediaTitle(mediaTitle string) models.TitleMetadata {
	s := strings.ReplaceAll(mediaTitle, "_", " ")
	s = reExtension.ReplaceAllString(s, "")
	s = reBracketTag.ReplaceAllString(s, " ")
	s = reResolution.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")

	for _, re := range episodePatterns {
		loc := re.FindStringSubmatchIndex(s)
		if loc == nil {
			continue
		}
		n, err := strconv.Atoi(s[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		return models.TitleMetadata{
			Title:   cleanTitle(s[:loc[0]]),
			Episode: &n,
		}
	}
	return models.TitleMetadata{Title: cleanTitle(s)}
}

func cleanTitle(s string) string {
	return strings.Trim(s, " -_:|")
}
