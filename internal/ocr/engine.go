// Package ocr is the text-recognition boundary: a raster image in, text and
// a confidence out. The engine is treated as a slow CPU-bound call; timeout
// safety comes from the caller's resilience envelope.
package ocr

import "context"

// Result is the recognition outcome for one image.
type Result struct {
	Text       string
	Confidence float64 // 0-100
}

// Client recognizes text from raster images. A client is NOT safe for
// concurrent use: every page worker owns its own client and reuses it across
// the pages it processes.
type Client interface {
	Recognize(ctx context.Context, image []byte) (Result, error)
	Close() error
}

// Engine hands out clients. Implementations must make NewClient safe to call
// from multiple goroutines.
type Engine interface {
	NewClient() (Client, error)
	Language() string
}
