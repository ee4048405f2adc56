package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errProbe = errors.New("boom")

func fail() error    { return errProbe }
func succeed() error { return nil }

func TestInitialStateClosed(t *testing.T) {
	cb := New(Config{FailureThreshold: 3, SuccessThreshold: 1, Timeout: 10 * time.Second})
	if cb.State() != StateClosed {
		t.Fatalf("expected closed, got %s", cb.State())
	}
	if !cb.Allow() {
		t.Fatal("expected Allow=true when closed")
	}
}

func TestOpensAfterThreshold(t *testing.T) {
	cb := New(Config{FailureThreshold: 3, SuccessThreshold: 1, Timeout: 10 * time.Second})
	for i := 0; i < 3; i++ {
		_ = cb.Call(fail)
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", cb.State())
	}
	if cb.Allow() {
		t.Fatal("expected Allow=false when open")
	}
	if err := cb.Call(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestTransitionsToHalfOpenAfterTimeout(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Millisecond})
	_ = cb.Call(fail)
	time.Sleep(5 * time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half_open after timeout, got %s", cb.State())
	}
	if !cb.Allow() {
		t.Fatal("expected Allow=true when half_open with no probe in flight")
	}
}

func TestClosesAfterSuccessInHalfOpen(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Millisecond})
	_ = cb.Call(fail)
	time.Sleep(5 * time.Millisecond)
	if err := cb.Call(succeed); err != nil {
		t.Fatalf("expected probe to be allowed through, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after success in half_open, got %s", cb.State())
	}
}

func TestReopensOnFailureInHalfOpen(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Millisecond})
	_ = cb.Call(fail)
	time.Sleep(5 * time.Millisecond)
	if err := cb.Call(fail); !errors.Is(err, errProbe) {
		t.Fatalf("expected probe failure to surface, got %v", err)
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open after failure in half_open, got %s", cb.State())
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New(Config{FailureThreshold: 3, SuccessThreshold: 1, Timeout: 10 * time.Second})
	_ = cb.Call(fail)
	_ = cb.Call(fail)
	_ = cb.Call(succeed)
	_ = cb.Call(fail)
	_ = cb.Call(fail)
	if cb.State() != StateClosed {
		t.Fatalf("expected still closed (failure count reset), got %s", cb.State())
	}
}

// TestHalfOpenAllowsSingleProbe asserts the core concurrency property: when
// many goroutines race a HalfOpen breaker, exactly one of them gets to run
// its function; the rest are rejected with ErrCircuitOpen without fn ever
// being invoked for them.
func TestHalfOpenAllowsSingleProbe(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Millisecond})
	_ = cb.Call(fail)
	time.Sleep(5 * time.Millisecond)

	const n = 20
	release := make(chan struct{})
	var admitted int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			err := cb.Call(func() error {
				mu.Lock()
				admitted++
				mu.Unlock()
				<-release
				return nil
			})
			if err != nil && !errors.Is(err, ErrCircuitOpen) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	got := admitted
	mu.Unlock()
	if got != 1 {
		t.Fatalf("expected exactly 1 probe admitted while in flight, got %d", got)
	}
	close(release)
	wg.Wait()
}
