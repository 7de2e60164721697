package llm

import (
	"sync"
	"time"

	"github.com/codeproof/codeproof-go/internal/errors"
)

// Breaker defaults: five upstream failures inside a minute open the
// circuit; the same window must pass before a trial call goes through.
const (
	DefaultFailureThreshold = 5
	DefaultBreakerWindow    = 60 * time.Second
)

// CircuitBreaker fails fast when the upstream keeps erroring, so a broken
// provider degrades answers instead of stalling scans behind timeouts.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration

	failures    []time.Time
	openedAt    time.Time
	open        bool
	now         func() time.Time
}

func NewCircuitBreaker(threshold int, window time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		window:    window,
		now:       time.Now,
	}
}

// ErrCircuitOpen is returned while the breaker refuses calls.
var ErrCircuitOpen = errors.LLMError(nil, "llm circuit open: upstream failing, calls suspended")

// Call runs fn unless the circuit is open. A success closes the circuit;
// a failure is counted against the rolling window.
func (b *CircuitBreaker) Call(fn func() error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}

	err := fn()
	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

func (b *CircuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	// Half-open after the window passes: let one trial through.
	if b.now().Sub(b.openedAt) >= b.window {
		b.open = false
		b.failures = nil
		return true
	}
	return false
}

func (b *CircuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	cutoff := now.Add(-b.window)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = append(kept, now)

	if len(b.failures) >= b.threshold {
		b.open = true
		b.openedAt = now
		b.failures = nil
	}
}

func (b *CircuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = nil
	b.open = false
}

// Open reports the current circuit state.
func (b *CircuitBreaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}
