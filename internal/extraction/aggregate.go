package extraction

import (
	"fmt"
	"strings"
)

// PageResult is the outcome of extracting one page. Failed pages keep their
// slot with empty text, zero confidence and Success=false so a one-page
// failure never discards the rest of the document.
type PageResult struct {
	PageNumber int
	Text       string
	Confidence float64
	Success    bool
	DurationMs int64
}

// aggregate concatenates page texts with a page-boundary marker and averages
// confidence over every attempted page, failed pages contributing zero.
func aggregate(pages []PageResult) (string, float64) {
	if len(pages) == 0 {
		return "", 0
	}

	var (
		buf     strings.Builder
		confSum float64
	)
	for _, p := range pages {
		if p.PageNumber > 1 {
			buf.WriteString(fmt.Sprintf("\n\n--- Page %d ---\n\n", p.PageNumber))
		}
		buf.WriteString(strings.TrimSpace(p.Text))
		confSum += p.Confidence
	}

	return strings.TrimSpace(buf.String()), confSum / float64(len(pages))
}
