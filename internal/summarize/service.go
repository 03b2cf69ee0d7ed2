// Package summarize produces document summaries through an external
// text-generation API. Preconditions are validated before any API call so a
// summary that is already known to fail never spends quota.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nikhilbhutani/docpipeline/internal/config"
	"github.com/nikhilbhutani/docpipeline/internal/llm"
	"github.com/nikhilbhutani/docpipeline/internal/resilience"
)

type Service struct {
	cfg      config.SummarizerConfig
	provider llm.Provider
	envelope *resilience.Envelope
}

// NewService accepts a nil provider; Preflight then rejects every document
// with a descriptive reason instead of panicking mid-pipeline.
func NewService(cfg config.SummarizerConfig, provider llm.Provider, envelopes *resilience.Registry) *Service {
	return &Service{
		cfg:      cfg,
		provider: provider,
		envelope: envelopes.For("summarizer-api"),
	}
}

// Outcome is a successful (possibly degraded) summarization.
type Outcome struct {
	Summary   string
	Provider  string
	Model     string
	Degraded  bool
	ElapsedMs int64
}

// Preflight validates everything that can fail without touching the API.
// A non-nil error is a terminal, non-retryable failure reason.
func (s *Service) Preflight(extractionSucceeded bool, text string) error {
	if !extractionSucceeded {
		return fmt.Errorf("extraction did not succeed, nothing to summarize")
	}
	if len(text) < s.cfg.MinTextLength {
		return fmt.Errorf("extracted text too short: %d chars, need at least %d", len(text), s.cfg.MinTextLength)
	}
	if s.provider == nil {
		return fmt.Errorf("summarizer not configured: missing API credentials")
	}
	return nil
}

// Summarize truncates the input and calls the provider through the
// resilience envelope. When retries exhaust or the circuit is open, the
// configured fallback policy decides between a degraded placeholder outcome
// and a terminal error.
func (s *Service) Summarize(ctx context.Context, text string) (*Outcome, error) {
	start := time.Now()
	input := Truncate(text, s.cfg.MaxTextLength)

	resp, err := resilience.Do(ctx, s.envelope, func(ctx context.Context) (*llm.SummarizeResponse, error) {
		return s.provider.Summarize(ctx, llm.SummarizeRequest{
			Text:        input,
			Temperature: s.cfg.Temperature,
			MaxTokens:   s.cfg.MaxTokens,
		})
	})
	if err != nil {
		if s.fallbackApplies(err) {
			return &Outcome{
				Summary:   degradedSummary(input),
				Provider:  s.provider.Name(),
				Degraded:  true,
				ElapsedMs: time.Since(start).Milliseconds(),
			}, nil
		}
		return nil, err
	}

	return &Outcome{
		Summary:   resp.Summary,
		Provider:  resp.Provider,
		Model:     resp.Model,
		ElapsedMs: time.Since(start).Milliseconds(),
	}, nil
}

// fallbackApplies limits the degraded fallback to infrastructure failures:
// an open circuit or exhausted transient retries. Permanent input errors
// stay terminal regardless of policy.
func (s *Service) fallbackApplies(err error) bool {
	if s.cfg.FallbackPolicy != config.FallbackDegraded {
		return false
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return true
	}
	return !resilience.IsPermanent(err) && !errors.Is(err, resilience.ErrRateLimited)
}

// degradedSummary is the placeholder published when the API is unreachable.
// It is clearly marked so downstream consumers never mistake it for a real
// summary.
func degradedSummary(text string) string {
	const excerptLen = 200
	runes := []rune(text)
	if len(runes) > excerptLen {
		runes = runes[:excerptLen]
	}
	return "[automatic summary unavailable] Document excerpt: " + string(runes)
}
