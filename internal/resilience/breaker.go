package resilience

import (
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Breaker tracks a sliding window of the most recent call outcomes. It opens
// when the window holds at least MinSamples outcomes and failures reach
// Threshold of the full window; while open every call fails fast with
// ErrCircuitOpen. After Cooldown it admits up to HalfOpenMax trial calls:
// HalfOpenMax successes close the circuit, any failure reopens it.
type Breaker struct {
	mu sync.Mutex

	window     []bool // outcome ring, true = failure
	next       int
	filled     int
	minSamples int
	threshold  float64

	cooldown    time.Duration
	halfOpenMax int

	state            breakerState
	openedAt         time.Time
	halfOpenInFlight int
	halfOpenSuccess  int

	now func() time.Time
}

type BreakerConfig struct {
	WindowSize  int
	MinSamples  int
	Threshold   float64
	Cooldown    time.Duration
	HalfOpenMax int
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 10
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = cfg.WindowSize / 2
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 1
	}
	return &Breaker{
		window:      make([]bool, cfg.WindowSize),
		minSamples:  cfg.MinSamples,
		threshold:   cfg.Threshold,
		cooldown:    cfg.Cooldown,
		halfOpenMax: cfg.HalfOpenMax,
		now:         time.Now,
	}
}

// Allow reports whether a call may proceed. While open it returns
// ErrCircuitOpen until the cooldown elapses, then admits trial calls.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return nil
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = stateHalfOpen
		b.halfOpenInFlight = 0
		b.halfOpenSuccess = 0
		fallthrough
	default: // half-open
		if b.halfOpenInFlight >= b.halfOpenMax {
			return ErrCircuitOpen
		}
		b.halfOpenInFlight++
		return nil
	}
}

// Record feeds one call outcome back into the breaker.
func (b *Breaker) Record(failure bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateHalfOpen:
		b.halfOpenInFlight--
		if failure {
			b.trip()
			return
		}
		b.halfOpenSuccess++
		if b.halfOpenSuccess >= b.halfOpenMax {
			b.reset()
		}
	case stateClosed:
		b.window[b.next] = failure
		b.next = (b.next + 1) % len(b.window)
		if b.filled < len(b.window) {
			b.filled++
		}
		if b.filled >= b.minSamples && b.failureRate() >= b.threshold {
			b.trip()
		}
	}
	// Outcomes reported while open (stragglers from calls admitted earlier)
	// are dropped.
}

// failureRate measures failures against the whole window, with unfilled
// slots counting as successes. A burst smaller than the window therefore
// cannot trip the breaker before enough outcomes accumulate.
func (b *Breaker) failureRate() float64 {
	failures := 0
	for i := 0; i < b.filled; i++ {
		if b.window[i] {
			failures++
		}
	}
	return float64(failures) / float64(len(b.window))
}

func (b *Breaker) trip() {
	b.state = stateOpen
	b.openedAt = b.now()
}

func (b *Breaker) reset() {
	b.state = stateClosed
	b.next = 0
	b.filled = 0
	for i := range b.window {
		b.window[i] = false
	}
}
