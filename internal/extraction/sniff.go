package extraction

import (
	"net/http"
	"strings"
)

// Content kinds the stage knows how to process.
const (
	KindPDF   = "pdf"
	KindImage = "image"
)

// SniffContentType detects the content type from the leading bytes. The
// magic-number sniff is trusted over whatever type the upload declared.
func SniffContentType(content []byte) string {
	sniffed := http.DetectContentType(content)
	// DetectContentType appends charset parameters for text types.
	if i := strings.Index(sniffed, ";"); i >= 0 {
		sniffed = strings.TrimSpace(sniffed[:i])
	}
	return sniffed
}

// KindOf maps a MIME type to a processing kind. The second return is false
// for types the stage cannot extract from.
func KindOf(contentType string) (string, bool) {
	switch {
	case contentType == "application/pdf":
		return KindPDF, true
	case strings.HasPrefix(contentType, "image/"):
		return KindImage, true
	default:
		return "", false
	}
}
