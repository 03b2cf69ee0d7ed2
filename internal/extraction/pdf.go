package extraction

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

// rasterizePDF renders every page to a PNG at the given DPI. The fitz
// document is not safe for concurrent use, so rendering happens sequentially
// here; only recognition runs in parallel. A page that fails to render keeps
// a nil slot so it surfaces as a failed PageResult downstream.
func rasterizePDF(content []byte, dpi int) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	if total == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	pages := make([][]byte, total)
	for i := 0; i < total; i++ {
		img, err := doc.ImageDPI(i, float64(dpi))
		if err != nil {
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			continue
		}
		pages[i] = buf.Bytes()
	}
	return pages, nil
}

// textLayer pulls the native text layer per page, if the PDF has one. Errors
// are swallowed: a scanned PDF simply yields empty strings and every page
// falls through to OCR.
func textLayer(content []byte, totalPages int) []string {
	texts := make([]string, totalPages)

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return texts
	}

	n := reader.NumPage()
	if n > totalPages {
		n = totalPages
	}
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		texts[i-1] = text
	}
	return texts
}
