package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func openBreaker(cb *CircuitBreaker, failures int) {
	for i := 0; i < failures; i++ {
		cb.RecordResult(false)
	}
}

func TestCircuitBreaker_StateClosed(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Second)

	if cb.GetState() != StateClosed {
		t.Errorf("Expected initial state to be Closed, got %s", cb.GetState())
	}
	if !cb.Allow() {
		t.Error("Expected to allow request in Closed state")
	}
}

func TestCircuitBreaker_OpenAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Second)

	openBreaker(cb, 2)
	if cb.GetState() != StateClosed {
		t.Error("Expected state to still be Closed after 2 failures")
	}

	cb.RecordResult(false)
	if cb.GetState() != StateOpen {
		t.Error("Expected state to be Open after 3 failures")
	}
	if cb.Allow() {
		t.Error("Expected to not allow request in Open state")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Second)

	openBreaker(cb, 2)
	cb.RecordResult(true)
	openBreaker(cb, 2)

	if cb.GetState() != StateClosed {
		t.Error("Expected non-consecutive failures to keep the circuit Closed")
	}
}

func TestCircuitBreaker_HalfOpenThenClose(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 50*time.Millisecond)
	openBreaker(cb, 3)

	time.Sleep(80 * time.Millisecond)

	for i := 0; i < 3; i++ {
		if !cb.Allow() {
			t.Fatalf("Expected trial request %d to be allowed", i)
		}
	}
	if cb.GetState() != StateHalfOpen {
		t.Fatalf("Expected HalfOpen, got %s", cb.GetState())
	}
	if cb.Allow() {
		t.Error("Expected a fourth trial request to be rejected")
	}

	for i := 0; i < 3; i++ {
		cb.RecordResult(true)
	}
	if cb.GetState() != StateClosed {
		t.Error("Expected state to be Closed after successful trial requests")
	}
}

func TestCircuitBreaker_OpenAfterFailureInHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 50*time.Millisecond)
	openBreaker(cb, 3)

	time.Sleep(80 * time.Millisecond)
	cb.Allow()
	cb.RecordResult(false)

	if cb.GetState() != StateOpen {
		t.Error("Expected state to be Open after failure in HalfOpen")
	}
}

func TestCircuitBreaker_Call(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Second)

	if err := cb.Call(func() error { return nil }, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	err := cb.Call(func() error { return errors.New("test error") }, nil)
	if err == nil {
		t.Error("Expected error from failed call")
	}
}

func TestCircuitBreaker_CallIgnoresClientErrors(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Second)
	clientErr := errors.New("bad request")

	_ = cb.Call(func() error { return clientErr }, func(err error) bool { return err != clientErr })

	if cb.GetState() != StateClosed {
		t.Error("Expected errors that do not trip the breaker to keep it Closed")
	}
}

func TestCircuitBreaker_CallOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Second)
	cb.RecordResult(false)

	called := false
	err := cb.Call(func() error {
		called = true
		return nil
	}, nil)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Expected function not to run while open")
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	cb := NewCircuitBreaker("kipps", 1, time.Second)

	var mu sync.Mutex
	var transitions []CircuitState
	cb.OnStateChange(func(name string, from, to CircuitState) {
		mu.Lock()
		defer mu.Unlock()
		if name != "kipps" {
			t.Errorf("Expected name kipps, got %s", name)
		}
		transitions = append(transitions, to)
	})

	cb.RecordResult(false)
	cb.RecordResult(false)

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Errorf("Expected a single transition to Open, got %v", transitions)
	}
}

func TestCircuitBreaker_GetStats(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Second)

	cb.RecordResult(true)
	cb.RecordResult(true)
	cb.RecordResult(false)

	state, requestCount, failureCount, failureRate := cb.GetStats()

	if state != StateClosed {
		t.Errorf("Expected state Closed, got %s", state)
	}
	if requestCount != 3 {
		t.Errorf("Expected 3 requests, got %d", requestCount)
	}
	if failureCount != 1 {
		t.Errorf("Expected 1 failure, got %d", failureCount)
	}
	if failureRate < 33.0 || failureRate > 34.0 {
		t.Errorf("Expected failure rate around 33.33%%, got %.2f%%", failureRate)
	}
}

func TestCircuitBreaker_Available(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 20*time.Millisecond)
	if !cb.Available() {
		t.Fatal("Expected closed breaker to be available")
	}

	openBreaker(cb, 1)
	if cb.Available() {
		t.Error("Expected open breaker to be unavailable before the reset timeout")
	}

	time.Sleep(50 * time.Millisecond)
	if !cb.Available() {
		t.Error("Expected breaker to be available once the reset timeout elapsed")
	}
	if cb.GetState() != StateOpen {
		t.Errorf("Expected Available to leave the state Open, got %s", cb.GetState())
	}

	for i := 0; i < 3; i++ {
		if !cb.Allow() {
			t.Fatalf("Expected half-open request %d to be admitted", i)
		}
	}
	if cb.Available() {
		t.Error("Expected half-open breaker with no free slots to be unavailable")
	}
}
