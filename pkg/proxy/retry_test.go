package proxy

import (
	"net/http"
	"testing"
	"time"
)

func TestRetryDelaySequence(t *testing.T) {
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for i, expected := range want {
		if got := RetryDelay(i + 1); got != expected {
			t.Errorf("RetryDelay(%d) = %v, want %v", i+1, got, expected)
		}
	}
}

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		status int
		want   bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusForbidden, true},
		{http.StatusOK, false},
		{http.StatusNotFound, false},
		{http.StatusInternalServerError, false},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range cases {
		if got := isRateLimited(tc.status); got != tc.want {
			t.Errorf("isRateLimited(%d) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestRetryStateStopsAtBudget(t *testing.T) {
	t.Run("fresh state allows an attempt", func(t *testing.T) {
		state := &retryState{started: time.Now()}
		delay, ok := state.next()
		if !ok || delay != 1*time.Second {
			t.Errorf("next() = (%v, %v), want (1s, true)", delay, ok)
		}
	})

	t.Run("exhausted budget refuses", func(t *testing.T) {
		state := &retryState{started: time.Now().Add(-RetryBudget)}
		if _, ok := state.next(); ok {
			t.Error("next() allowed an attempt past the budget")
		}
	})

	t.Run("attempt that would overrun refuses", func(t *testing.T) {
		// 500ms left but the next delay is 1s.
		state := &retryState{started: time.Now().Add(-(RetryBudget - 500*time.Millisecond))}
		if _, ok := state.next(); ok {
			t.Error("next() allowed an attempt whose delay overruns the budget")
		}
	})
}

func TestIdentityResolution(t *testing.T) {
	t.Run("authenticated user wins", func(t *testing.T) {
		r := newRequest(t, "203.0.113.9:1234")
		r.Header.Set(AuthUserHeader, "alice")
		if got := Identity(r); got != "user:alice" {
			t.Errorf("Identity = %q, want user:alice", got)
		}
	})

	t.Run("falls back to forwarded IP", func(t *testing.T) {
		r := newRequest(t, "10.0.0.1:1234")
		r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		if got := Identity(r); got != "ip:203.0.113.9" {
			t.Errorf("Identity = %q, want the first forwarded hop", got)
		}
	})

	t.Run("falls back to remote address", func(t *testing.T) {
		r := newRequest(t, "203.0.113.9:1234")
		if got := Identity(r); got != "ip:203.0.113.9" {
			t.Errorf("Identity = %q, want ip:203.0.113.9", got)
		}
	})

	t.Run("anonymous when nothing resolves", func(t *testing.T) {
		r := newRequest(t, "")
		if got := Identity(r); got != AnonymousIdentity {
			t.Errorf("Identity = %q, want %q", got, AnonymousIdentity)
		}
	})
}

func newRequest(t *testing.T, remoteAddr string) *http.Request {
	t.Helper()
	r, err := http.NewRequest(http.MethodGet, "http://api.example.com/data", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	r.RemoteAddr = remoteAddr
	return r
}
