package openai

import (
	"context"
	"sync"
	"time"
)

// limiter is a token bucket: rate tokens refill evenly over window.
type limiter struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time

	rate   int
	window time.Duration
}

func newLimiter(rate int, window time.Duration) *limiter {
	return &limiter{
		tokens: float64(rate),
		last:   time.Now(),
		rate:   rate,
		window: window,
	}
}

// Wait blocks until a token is available or ctx is done. With an empty
// bucket it sleeps 1/Nth of the window between attempts, long enough for at
// least one token to accumulate.
func (l *limiter) Wait(ctx context.Context) error {
	for {
		if l.take() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.window / time.Duration(l.rate)):
		}
	}
}

func (l *limiter) take() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	refill := now.Sub(l.last).Seconds() * float64(l.rate) / l.window.Seconds()
	l.tokens = min(l.tokens+refill, float64(l.rate))
	l.last = now

	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}
