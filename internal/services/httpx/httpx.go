// Package httpx carries the HTTP plumbing shared by the platform clients:
// a Doer seam for tests, a typed status error, and a capped exponential
// retry for transient failures.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single request; retries budget separately.
	DefaultTimeout = 15 * time.Second

	defaultAttempts  = 4
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 8 * time.Second
)

// Doer is the slice of *http.Client the clients depend on.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError reports a non-success HTTP response. RetryAfter holds the
// server's wait hint when one was sent.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// NewStatusError builds a StatusError from the response pieces, trimming the
// body and parsing the Retry-After header (seconds or HTTP date).
func NewStatusError(statusCode int, body, retryAfter string) *StatusError {
	err := &StatusError{
		StatusCode: statusCode,
		Body:       strings.TrimSpace(body),
	}
	if delay, ok := parseRetryAfter(retryAfter); ok {
		err.RetryAfter = delay
	}
	return err
}

// Temporary reports whether err is worth another attempt: rate limiting,
// request timeouts, server-side failures, and network timeouts qualify.
// Everything else, context cancellation above all, is terminal.
func Temporary(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return false
}

// Retry runs an attempt function with capped exponential backoff. The zero
// value uses the package defaults.
type Retry struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Sleeper replaces the backoff sleep in tests.
	Sleeper func(time.Duration)
}

// Do invokes attempt until it succeeds, returns a terminal error, or the
// attempt budget runs out. The last error comes back unwrapped so callers
// can classify it themselves.
func (r Retry) Do(ctx context.Context, attempt func(context.Context) error) error {
	attempts := r.attempts()
	for i := 1; ; i++ {
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if i >= attempts || ctx.Err() != nil || !Temporary(err) {
			return err
		}
		if sleepErr := r.sleep(ctx, r.delayFor(err, i)); sleepErr != nil {
			return sleepErr
		}
	}
}

func (r Retry) attempts() int {
	if r.MaxAttempts <= 0 {
		return defaultAttempts
	}
	return r.MaxAttempts
}

// delayFor honors an explicit Retry-After hint before falling back to
// base<<(attempt-1), capped at MaxDelay.
func (r Retry) delayFor(err error, attempt int) time.Duration {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return r.cap(statusErr.RetryAfter)
	}
	base := r.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > r.maxDelay()/2 {
			return r.maxDelay()
		}
		delay *= 2
	}
	return r.cap(delay)
}

func (r Retry) maxDelay() time.Duration {
	if r.MaxDelay <= 0 {
		return defaultMaxDelay
	}
	return r.MaxDelay
}

func (r Retry) cap(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if limit := r.maxDelay(); delay > limit {
		return limit
	}
	return delay
}

func (r Retry) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if r.Sleeper != nil {
		r.Sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
