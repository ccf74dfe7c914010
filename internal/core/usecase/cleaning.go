package usecase

import (
	"regexp"
	"strings"
)

var pageMarkerPattern = regexp.MustCompile(`(?i)--\s*\d+\s*of\s*\d+\s*--`)

// CleanText strips "-- N of M --" page markers and surrounding whitespace.
// Removal repeats until no marker is left, so a marker assembled from the
// remains of another one is removed as well.
func CleanText(raw string) string {
	text := raw
	for {
		next := pageMarkerPattern.ReplaceAllString(text, "")
		if next == text {
			break
		}
		text = next
	}
	return strings.TrimSpace(text)
}
