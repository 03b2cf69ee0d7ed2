package summarize

import "strings"

const ellipsisMarker = " ..."

// Truncate caps text at maxLen characters before it is sent to the
// summarizer. It prefers cutting at the last sentence or line boundary, but
// only when that boundary lies past the midpoint of the allowed length;
// otherwise it hard-truncates and appends an ellipsis marker.
func Truncate(text string, maxLen int) string {
	if maxLen <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	cut := runes[:maxLen]
	if idx := lastBoundary(cut); idx > maxLen/2 {
		return strings.TrimSpace(string(cut[:idx+1]))
	}

	marker := []rune(ellipsisMarker)
	return string(cut[:maxLen-len(marker)]) + ellipsisMarker
}

// lastBoundary returns the index of the last sentence- or line-ending rune,
// or -1 when there is none.
func lastBoundary(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		switch runes[i] {
		case '.', '!', '?', '\n':
			return i
		}
	}
	return -1
}
