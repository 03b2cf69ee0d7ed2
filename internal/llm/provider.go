package llm

import (
	"context"
	"fmt"

	"github.com/nikhilbhutani/docpipeline/internal/config"
)

// Provider abstracts a text-generation backend used for summaries.
type Provider interface {
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)
	Name() string
}

// SummarizeRequest carries the text plus generation parameters.
type SummarizeRequest struct {
	Text        string  `json:"text"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

type SummarizeResponse struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	Summary      string `json:"summary"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

const summarySystemPrompt = "You are a document summarizer. Produce a concise summary of the " +
	"provided document text. Respond with the summary only, no preamble."

// NewProvider builds the configured provider.
func NewProvider(cfg config.SummarizerConfig) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		return NewAnthropicProvider(cfg.AnthropicKey, cfg.Model), nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		return NewOpenAIProvider(cfg.OpenAIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown summarizer provider %q", cfg.Provider)
	}
}
