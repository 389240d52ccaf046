package reliability

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_TripsAndRecovers(t *testing.T) {
	b := NewBreaker("test", BreakerConfig{FailureThreshold: 2, Cooldown: 10 * time.Millisecond, SuccessThreshold: 2})

	if !b.Allow() {
		t.Fatalf("expected closed breaker to allow")
	}
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Fatalf("expected still closed after 1 failure, got %v", b.State())
	}
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected open after threshold failures, got %v", b.State())
	}
	if b.Allow() {
		t.Fatalf("expected open breaker to block calls")
	}

	time.Sleep(15 * time.Millisecond)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half_open after cooldown, got %v", b.State())
	}
	b.RecordSuccess()
	if b.State() != StateHalfOpen {
		t.Fatalf("expected still half_open after 1 success, got %v", b.State())
	}
	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Fatalf("expected closed after success threshold, got %v", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker("test2", BreakerConfig{FailureThreshold: 1, Cooldown: 5 * time.Millisecond, SuccessThreshold: 1})
	b.RecordFailure()
	time.Sleep(10 * time.Millisecond)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half_open, got %v", b.State())
	}
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected re-opened after half_open failure, got %v", b.State())
	}
}

func TestBreaker_ExecuteShortCircuitsOpen(t *testing.T) {
	b := NewBreaker("test3", BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	_ = b.Execute(func() error { return errors.New("boom") })
	err := b.Execute(func() error { return nil })
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindCircuitOpen {
		t.Fatalf("expected circuit_open error, got %v", err)
	}
}

func TestRegistry_PreconfiguredDefaults(t *testing.T) {
	r := NewRegistry(BreakerConfig{})
	emb := r.Get("embedding")
	llm := r.Get("llm")
	vs := r.Get("vectorStore")
	for i := 0; i < 3; i++ {
		emb.RecordFailure()
	}
	if emb.State() != StateOpen {
		t.Fatalf("embedding breaker should trip at 3 failures, got %v", emb.State())
	}
	for i := 0; i < 2; i++ {
		llm.RecordFailure()
	}
	if llm.State() == StateOpen {
		t.Fatalf("llm breaker should need 3 failures, tripped at 2")
	}
	for i := 0; i < 4; i++ {
		vs.RecordFailure()
	}
	if vs.State() == StateOpen {
		t.Fatalf("vectorStore breaker should need 5 failures, tripped at 4")
	}
}
