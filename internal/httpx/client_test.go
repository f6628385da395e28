package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sellsadvisors/fleet/internal/resilience"
)

func TestDoJSONRetriesTransientFailureThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(WithRetryConfig(resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1,
	}))

	var out struct {
		OK bool `json:"ok"`
	}
	err := c.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil, &out)
	require.NoError(t, err)
	require.True(t, out.OK)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDoJSONTripsCircuitBreakerAfterRepeatedFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(
		WithRetryConfig(resilience.RetryConfig{
			MaxAttempts:    1,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			Multiplier:     1,
		}),
		WithCircuitBreakerConfig(resilience.CircuitBreakerConfig{
			FailureThreshold:  2,
			ResetTimeout:      time.Minute,
			HalfOpenMaxProbes: 1,
		}),
	)

	for i := 0; i < 2; i++ {
		err := c.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)
		require.Error(t, err)
	}

	before := atomic.LoadInt32(&calls)
	err := c.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	require.Equal(t, before, atomic.LoadInt32(&calls), "breaker should reject without hitting the server")
}

func TestDoJSONDoesNotShareCircuitBreakerAcrossHosts(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer healthy.Close()

	c := New(
		WithRetryConfig(resilience.RetryConfig{
			MaxAttempts:    1,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			Multiplier:     1,
		}),
		WithCircuitBreakerConfig(resilience.CircuitBreakerConfig{
			FailureThreshold:  1,
			ResetTimeout:      time.Minute,
			HalfOpenMaxProbes: 1,
		}),
	)

	require.Error(t, c.DoJSON(context.Background(), http.MethodGet, failing.URL, nil, nil, nil))
	require.Error(t, c.DoJSON(context.Background(), http.MethodGet, failing.URL, nil, nil, nil))

	var out struct {
		OK bool `json:"ok"`
	}
	err := c.DoJSON(context.Background(), http.MethodGet, healthy.URL, nil, nil, &out)
	require.NoError(t, err)
	require.True(t, out.OK)
}
