package proxy

import (
	"context"
	"io"
	"net/http"
	"time"

	"skyroute-hq/skyroute/pkg/upstream"
)

// Retry budget and backoff bounds for rate-limited upstreams.
const (
	// RetryBudget is the total wall-clock time the retry loop may spend.
	RetryBudget = 60 * time.Second

	// baseRetryDelay is the delay before the first retry attempt.
	baseRetryDelay = 1 * time.Second

	// maxRetryDelay caps the exponential backoff.
	maxRetryDelay = 10 * time.Second
)

// RetryDelay returns the delay before retry attempt i (1-indexed):
// 1s, 2s, 4s, 8s, 10s, 10s, ...
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	if attempt > 4 {
		return maxRetryDelay
	}
	d := baseRetryDelay << (attempt - 1)
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

// isRateLimited reports whether an upstream status drives the retry state
// machine. 403 is included because several upstreams answer it for
// throttled callers.
func isRateLimited(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusForbidden
}

// retryState tracks one request's retry loop. It lives only for the loop's
// duration and is never shared.
type retryState struct {
	attempt int
	started time.Time
}

// next reports whether another attempt fits in the budget and, if so, the
// delay to wait first.
func (s *retryState) next() (time.Duration, bool) {
	s.attempt++
	delay := RetryDelay(s.attempt)
	if time.Since(s.started)+delay > RetryBudget {
		return 0, false
	}
	return delay, true
}

// retryLoop re-attempts a rate-limited fetch until a qualifying response
// arrives or the budget runs out. Transport errors during retries are
// treated the same as rate-limit responses. The returned response is nil
// when the budget was exhausted or ctx was cancelled; rate-limited response
// bodies are always drained and closed, never returned.
func (p *Pipeline) retryLoop(ctx context.Context, req upstream.Request) *upstream.Response {
	state := &retryState{started: time.Now()}

	for {
		delay, ok := state.next()
		if !ok {
			return nil
		}

		// Cancellable wait so shutdown or client disconnect aborts the
		// pending timer.
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		// The pipeline buffers request bodies, so rewinding makes the
		// body resendable on every attempt.
		if seeker, ok := req.Body.(io.Seeker); ok {
			_, _ = seeker.Seek(0, io.SeekStart)
		}

		p.metrics.RecordRetryAttempt()
		p.logger.Debug("retrying rate-limited upstream",
			"attempt", state.attempt,
			"delay_ms", delay.Milliseconds(),
			"url", req.URL,
		)

		resp, err := p.upstream.Do(ctx, req)
		if err != nil {
			// Transport failures inside the loop wait and retry like a
			// rate-limit response, as long as time remains.
			p.logger.Debug("transport error during retry", "attempt", state.attempt, "error", err)
			continue
		}

		if !isRateLimited(resp.StatusCode) {
			return resp
		}

		discard(resp)
	}
}
