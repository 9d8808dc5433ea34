package shared

import (
	"regexp"
	"strings"
)

var (
	bracketed  = regexp.MustCompile(`\([^()]*\)|\[[^\[\]]*\]`)
	noiseWords = regexp.MustCompile(`(?i)\b(?:feat|ft)\b\.?|\b(?:featuring|official|video|audio|lyrics|hd|hq|remix|full|explicit|clean)\b`)
	topicTail  = regexp.MustCompile(`(?i)\s*-\s*topic\s*$`)
	vevoTail   = regexp.MustCompile(`(?i)vevo\s*$`)
)

// CleanTitle strips bracketed segments, noise words and standalone "x"/"&" connectors from a
// video or track title and collapses whitespace.
//
//	CleanTitle("Artist - Song (Official Video) [HD]") // "Artist - Song"
func CleanTitle(s string) string {
	if s == "" {
		return ""
	}
	// innermost first, so nested segments go from the inside out
	for {
		stripped := bracketed.ReplaceAllString(s, " ")
		if stripped == s {
			break
		}
		s = stripped
	}
	s = noiseWords.ReplaceAllString(s, " ")

	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if f == "&" || f == "x" || f == "X" {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// CleanChannel removes the " - Topic" and "VEVO" suffixes that auto-generated and label channels carry.
func CleanChannel(s string) string {
	s = topicTail.ReplaceAllString(s, "")
	s = vevoTail.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ParseTypedTrack splits a typed "Artist - Title" line. Lines without a separator are all title.
func ParseTypedTrack(line string) (artist, title string) {
	line = strings.TrimSpace(line)
	for _, sep := range []string{" - ", " – ", " — "} {
		if a, t, ok := strings.Cut(line, sep); ok {
			return strings.TrimSpace(a), strings.TrimSpace(t)
		}
	}
	return "", line
}

// FirstWords returns up to n words from s, skipping links and hashtags.
func FirstWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	var words []string
	for _, f := range strings.Fields(s) {
		lower := strings.ToLower(f)
		if strings.HasPrefix(lower, "http") || strings.HasPrefix(lower, "www.") || strings.HasPrefix(f, "#") || strings.HasPrefix(f, "@") {
			continue
		}
		words = append(words, f)
		if len(words) == n {
			break
		}
	}
	return strings.Join(words, " ")
}
