package orchestrator

import (
	"errors"
	"sync"
)

// ErrCircuitOpen reports that the workflow circuit breaker has
// tripped. It is terminal for the orchestrator instance: the breaker
// never recloses, so every subsequent attempt fails with this error
// until a fresh orchestrator is built.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker counts step failures across a workflow run and opens
// once the failure count reaches its threshold. Open is monotonic.
type CircuitBreaker struct {
	mu          sync.Mutex
	maxFailures int
	failures    int
}

// NewCircuitBreaker creates a breaker that opens after maxFailures
// recorded failures. A non-positive threshold defaults to 1.
func NewCircuitBreaker(maxFailures int) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &CircuitBreaker{maxFailures: maxFailures}
}

// RecordFailure counts one failure.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
}

// IsOpen reports whether the failure threshold has been reached.
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.maxFailures
}

// Failures returns the recorded failure count.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
