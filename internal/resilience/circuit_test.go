package resilience

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = eris.New("upstream unavailable")

// failBreaker drives cb through n failing calls.
func failBreaker(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_, _ = ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
			return 0, errUpstream
		})
	}
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(42).String())
}

func TestCircuitBreaker_PassesThroughWhileClosed(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	out, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (string, error) {
		return "NW3 1TA", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "NW3 1TA", out)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	failBreaker(cb, 2)
	assert.Equal(t, CircuitClosed, cb.State())

	failBreaker(cb, 1)
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_RejectsWithoutCallingWhileOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	failBreaker(cb, 1)

	called := false
	_, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		called = true
		return 0, nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailureRun(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	failBreaker(cb, 2)
	_, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 1, nil
	})
	require.NoError(t, err)

	// The run restarts, so two more failures must not open the circuit.
	failBreaker(cb, 2)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_ProbeClosesAfterReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Second,
	})

	base := time.Now()
	cb.now = func() time.Time { return base }
	failBreaker(cb, 1)
	require.Equal(t, CircuitOpen, cb.State())

	cb.now = func() time.Time { return base.Add(11 * time.Second) }
	assert.Equal(t, CircuitHalfOpen, cb.State())

	out, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, out)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Second,
	})

	base := time.Now()
	cb.now = func() time.Time { return base }
	failBreaker(cb, 1)

	cb.now = func() time.Time { return base.Add(11 * time.Second) }
	failBreaker(cb, 1)
	assert.Equal(t, CircuitOpen, cb.State())

	// The failed probe restarts the reset clock.
	cb.now = func() time.Time { return base.Add(12 * time.Second) }
	_, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_MultipleProbesRequired(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold:  1,
		ResetTimeout:      10 * time.Second,
		HalfOpenMaxProbes: 2,
	})

	base := time.Now()
	cb.now = func() time.Time { return base }
	failBreaker(cb, 1)
	cb.now = func() time.Time { return base.Add(11 * time.Second) }

	for i := 0; i < 2; i++ {
		_, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
			return 0, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_ShouldTripFiltersErrors(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ShouldTrip:       IsTransient,
	})

	// A permanent error surfaces to the caller but never trips the
	// breaker.
	_, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 0, eris.New("postcode not found")
	})
	require.Error(t, err)
	assert.Equal(t, CircuitClosed, cb.State())

	_, _ = ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 0, NewTransientError(errUpstream, 503)
	})
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Second,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})

	base := time.Now()
	cb.now = func() time.Time { return base }
	failBreaker(cb, 1)

	cb.now = func() time.Time { return base.Add(11 * time.Second) }
	_, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 0, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
}

func TestCircuitBreaker_ConcurrentCalls(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 5})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(fail bool) {
			defer wg.Done()
			_, _ = ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
				if fail {
					return 0, errUpstream
				}
				return 0, nil
			})
		}(i%2 == 0)
	}
	wg.Wait()

	// No data race and the breaker lands in a defined state.
	assert.Contains(t, []CircuitState{CircuitClosed, CircuitOpen}, cb.State())
}
