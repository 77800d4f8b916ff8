package util

import (
	"sync"
	"time"
)

// Backoff doubles a retry delay per attempt up to a ceiling.
// It is safe for concurrent use.
type Backoff struct {
	mu       sync.Mutex
	attempt  int
	initial  time.Duration
	maxDelay time.Duration
}

// NewBackoff returns a Backoff starting at initial and capped at maxDelay.
func NewBackoff(initial, maxDelay time.Duration) *Backoff {
	return &Backoff{initial: initial, maxDelay: maxDelay}
}

func (b *Backoff) delay() time.Duration {
	d := b.initial
	for range b.attempt {
		if d >= b.maxDelay {
			break
		}
		d *= 2
	}
	return min(d, b.maxDelay)
}

// Next returns the delay for the current attempt and counts the attempt.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.delay()
	b.attempt++
	return d
}

// Current returns the delay Next would return.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.delay()
}

// Reset forgets previous attempts.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempt = 0
}
