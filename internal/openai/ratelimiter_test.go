package openai

import (
	"context"
	"testing"
	"time"
)

func TestLimiterAllowsBurst(t *testing.T) {
	l := newLimiter(5, time.Minute)
	for i := 0; i < 5; i++ {
		if err := l.Wait(t.Context()); err != nil {
			t.Fatalf("call %d: unexpected error %s", i, err)
		}
	}
}

func TestLimiterHonorsCancellation(t *testing.T) {
	l := newLimiter(1, time.Hour)
	if err := l.Wait(t.Context()); err != nil {
		t.Fatalf("unexpected error %s", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}
