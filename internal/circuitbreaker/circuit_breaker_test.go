package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream failure")

func TestCircuitBreakerStartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(DefaultConfig("test"))
	if cb.GetState() != StateClosed {
		t.Errorf("expected initial state %s, got %s", StateClosed, cb.GetState())
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(&Config{
		Name:             "test",
		MaxFailures:      3,
		FailureThreshold: 0.5,
		Timeout:          time.Minute,
		HalfOpenMaxCalls: 1,
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		err := cb.Execute(ctx, func() error { return errUpstream })
		if !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: expected upstream error, got %v", i, err)
		}
	}

	if cb.GetState() != StateOpen {
		t.Errorf("expected state %s after consecutive failures, got %s", StateOpen, cb.GetState())
	}

	err := cb.Execute(ctx, func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen while open, got %v", err)
	}
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(&Config{
		Name:             "test",
		MaxFailures:      2,
		FailureThreshold: 0.5,
		Timeout:          10 * time.Millisecond,
		HalfOpenMaxCalls: 1,
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errUpstream })
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("expected state %s, got %s", StateOpen, cb.GetState())
	}

	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("expected success in half-open, got %v", err)
	}

	if cb.GetState() != StateClosed {
		t.Errorf("expected state %s after recovery, got %s", StateClosed, cb.GetState())
	}
}

func TestCircuitBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := NewCircuitBreaker(&Config{
		Name:             "test",
		MaxFailures:      2,
		FailureThreshold: 0.5,
		Timeout:          10 * time.Millisecond,
		HalfOpenMaxCalls: 1,
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errUpstream })
	}

	time.Sleep(20 * time.Millisecond)

	_ = cb.Execute(ctx, func() error { return errUpstream })
	if cb.GetState() != StateOpen {
		t.Errorf("expected state %s after half-open failure, got %s", StateOpen, cb.GetState())
	}
}
