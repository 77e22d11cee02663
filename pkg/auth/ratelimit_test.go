package auth

import (
	"context"
	"errors"
	"testing"
)

func TestInProcessLimiter(t *testing.T) {
	limiter := NewInProcessLimiter(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	if err := limiter.Allow(ctx, "10.0.0.1"); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("fourth request err = %v, want ErrTooManyRequests", err)
	}

	// Other keys are unaffected.
	if err := limiter.Allow(ctx, "10.0.0.2"); err != nil {
		t.Fatalf("different key: %v", err)
	}
}

func TestInProcessLimiterDisabled(t *testing.T) {
	limiter := NewInProcessLimiter(0)

	for i := 0; i < 100; i++ {
		if err := limiter.Allow(context.Background(), "k"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
}
