// Package extraction turns raw document content into text. Multi-page
// documents are rasterized page by page and recognized in parallel; a page
// that fails is recorded as an empty zero-confidence result instead of
// aborting the document.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/docpipeline/internal/config"
	"github.com/nikhilbhutani/docpipeline/internal/ocr"
	"github.com/nikhilbhutani/docpipeline/internal/resilience"
)

type Service struct {
	cfg      config.ExtractionConfig
	engine   ocr.Engine
	envelope *resilience.Envelope
}

func NewService(cfg config.ExtractionConfig, engine ocr.Engine, envelopes *resilience.Registry) *Service {
	return &Service{
		cfg:      cfg,
		engine:   engine,
		envelope: envelopes.For("ocr-engine"),
	}
}

// Result is the aggregated outcome for a whole document.
type Result struct {
	Text       string
	Confidence float64
	TotalPages int
	Language   string
	Pages      []PageResult
}

type pageJob struct {
	index int
	image []byte
}

// Extract sniffs the content type, splits the document into pages and runs
// recognition. It returns an error only for whole-document failures (corrupt
// file, unsupported type); per-page failures are folded into the result.
func (s *Service) Extract(ctx context.Context, content []byte, declaredType string) (*Result, error) {
	if len(content) == 0 {
		return nil, resilience.Permanent(fmt.Errorf("empty content"))
	}

	sniffed := SniffContentType(content)
	if declaredType != "" && !strings.EqualFold(declaredType, sniffed) {
		// The magic-number sniff wins over the declared type.
		slog.Warn("declared content type does not match sniffed type",
			"declared", declaredType, "sniffed", sniffed)
	}

	kind, ok := KindOf(sniffed)
	if !ok {
		return nil, resilience.Permanent(fmt.Errorf("unsupported content type %q", sniffed))
	}

	var (
		pages []PageResult
		jobs  []pageJob
	)

	switch kind {
	case KindPDF:
		rasters, err := rasterizePDF(content, s.cfg.RasterDPI)
		if err != nil {
			return nil, resilience.Permanent(fmt.Errorf("rasterize pdf: %w", err))
		}
		native := textLayer(content, len(rasters))

		pages = make([]PageResult, len(rasters))
		for i, raster := range rasters {
			if text := strings.TrimSpace(native[i]); len(text) >= s.cfg.TextLayerMinChars {
				// Native text layer is authoritative when present.
				pages[i] = PageResult{PageNumber: i + 1, Text: text, Confidence: 100, Success: true}
				continue
			}
			if raster == nil {
				pages[i] = PageResult{PageNumber: i + 1}
				continue
			}
			jobs = append(jobs, pageJob{index: i, image: raster})
		}
	case KindImage:
		pages = make([]PageResult, 1)
		jobs = []pageJob{{index: 0, image: content}}
	}

	if err := s.recognizePages(ctx, jobs, pages); err != nil {
		return nil, err
	}

	text, confidence := aggregate(pages)
	return &Result{
		Text:       text,
		Confidence: confidence,
		TotalPages: len(pages),
		Language:   s.engine.Language(),
		Pages:      pages,
	}, nil
}

// recognizePages fans jobs out to a fixed pool. Each worker goroutine owns
// one lazily created OCR client for its lifetime; clients are never shared,
// so recognition needs no locking. Workers write to distinct slots of the
// results slice.
func (s *Service) recognizePages(ctx context.Context, jobs []pageJob, pages []PageResult) error {
	if len(jobs) == 0 {
		return nil
	}

	workers := s.cfg.PageWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	jobCh := make(chan pageJob)
	g, ctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			var client ocr.Client
			defer func() {
				if client != nil {
					client.Close()
				}
			}()

			for job := range jobCh {
				if client == nil {
					c, err := s.engine.NewClient()
					if err != nil {
						slog.Error("create ocr client", "error", err)
						pages[job.index] = PageResult{PageNumber: job.index + 1}
						continue
					}
					client = c
				}
				pages[job.index] = s.recognizePage(ctx, client, job)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case jobCh <- job:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return g.Wait()
}

func (s *Service) recognizePage(ctx context.Context, client ocr.Client, job pageJob) PageResult {
	start := time.Now()

	res, err := resilience.Do(ctx, s.envelope, func(ctx context.Context) (ocr.Result, error) {
		return client.Recognize(ctx, job.image)
	})

	result := PageResult{
		PageNumber: job.index + 1,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		// Partial-failure tolerance: the page keeps its slot, the rest of
		// the document still yields usable text.
		slog.Warn("page recognition failed", "page", job.index+1, "error", err)
		return result
	}

	result.Text = res.Text
	result.Confidence = res.Confidence
	result.Success = true
	return result
}
