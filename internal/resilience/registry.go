package resilience

import (
	"sync"

	"github.com/nikhilbhutani/docpipeline/internal/config"
)

// Registry hands out one envelope per external dependency name, creating it
// lazily. Breaker and limiter state therefore lives per backend (object
// store, OCR engine, summarization API), shared by every worker goroutine.
type Registry struct {
	mu        sync.Mutex
	cfg       config.ResilienceConfig
	envelopes map[string]*Envelope
}

func NewRegistry(cfg config.ResilienceConfig) *Registry {
	return &Registry{
		cfg:       cfg,
		envelopes: make(map[string]*Envelope),
	}
}

func (r *Registry) For(name string) *Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.envelopes[name]
	if !ok {
		e = NewEnvelope(name, r.cfg)
		r.envelopes[name] = e
	}
	return e
}
