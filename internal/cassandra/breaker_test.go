package cassandra

import (
	"testing"
	"time"
)

func TestNewCircuitBreakerDefaults(t *testing.T) {
	tests := []struct {
		name string
		opts CircuitBreakerOptions
		want CircuitBreakerOptions
	}{
		{
			name: "zero value falls back to defaults",
			opts: CircuitBreakerOptions{},
			want: DefaultCircuitBreakerOptions(),
		},
		{
			name: "explicit values are preserved",
			opts: CircuitBreakerOptions{FailureThreshold: 10, OpenDuration: time.Minute, SuccessThresholdInHalfOpen: 4},
			want: CircuitBreakerOptions{FailureThreshold: 10, OpenDuration: time.Minute, SuccessThresholdInHalfOpen: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircuitBreaker(tt.opts)
			if cb.opts != tt.want {
				t.Errorf("opts = %+v, want %+v", cb.opts, tt.want)
			}
			if cb.State() != BreakerClosed {
				t.Errorf("initial state = %v, want Closed", cb.State())
			}
		})
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerOptions{FailureThreshold: 3, OpenDuration: time.Hour, SuccessThresholdInHalfOpen: 2})

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != BreakerClosed {
		t.Fatalf("state = %v after 2 failures, want Closed", cb.State())
	}

	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatalf("state = %v after 3 failures, want Open", cb.State())
	}
}

func TestCircuitBreakerSuccessResetsClosedCounter(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerOptions{FailureThreshold: 3, OpenDuration: time.Hour, SuccessThresholdInHalfOpen: 2})
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != BreakerClosed {
		t.Fatalf("state = %v, want Closed (success should have reset the counter)", cb.State())
	}
}

func TestCircuitBreakerHalfOpenTransition(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerOptions{FailureThreshold: 1, OpenDuration: time.Millisecond, SuccessThresholdInHalfOpen: 2})
	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatalf("state = %v, want Open", cb.State())
	}

	time.Sleep(5 * time.Millisecond)
	if got := cb.CheckState(); got != BreakerHalfOpen {
		t.Fatalf("CheckState() = %v, want HalfOpen", got)
	}
}

func TestCircuitBreakerHalfOpenRecoversToClosed(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerOptions{FailureThreshold: 1, OpenDuration: time.Millisecond, SuccessThresholdInHalfOpen: 2})
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	cb.CheckState()

	cb.RecordSuccess()
	if cb.State() != BreakerHalfOpen {
		t.Fatalf("state = %v after 1 half-open success, want HalfOpen", cb.State())
	}
	cb.RecordSuccess()
	if cb.State() != BreakerClosed {
		t.Fatalf("state = %v after 2 half-open successes, want Closed", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerOptions{FailureThreshold: 1, OpenDuration: time.Millisecond, SuccessThresholdInHalfOpen: 2})
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	cb.CheckState()

	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatalf("state = %v, want Open (a single half-open failure should reopen)", cb.State())
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerOptions{FailureThreshold: 1, OpenDuration: time.Hour, SuccessThresholdInHalfOpen: 2})
	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatalf("state = %v, want Open", cb.State())
	}
	cb.Reset()
	if cb.State() != BreakerClosed {
		t.Fatalf("state = %v after Reset, want Closed", cb.State())
	}
}
