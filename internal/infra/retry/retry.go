package retry

// Bounded retry with exponential backoff and full jitter.
// Retryable errors are transient transport failures (HTTP 429, 500, 502, 503, 504).
// A Retry-After value attached to a 429 takes priority over the jitter sleep.

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// TransportError carries the status code of a failed delivery attempt so the
// retry loop can decide whether the failure is transient.
type TransportError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *TransportError) Error() string {
	if e == nil {
		return "transport error: <nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("transport error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("transport error (%d): %s", e.StatusCode, e.Message)
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		switch te.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		default:
			return false
		}
	}
	return false
}

// ParseRetryAfter reads a Retry-After header value, either delta-seconds or an
// HTTP date. Unparseable or past values come back as 0.
func ParseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	layouts := []string{time.RFC1123, time.RFC1123Z, time.RFC850, time.ANSIC}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			d := time.Until(t)
			if d < 0 {
				return 0
			}
			return d
		}
	}
	return 0
}

func clamp(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	return d
}

// FullJitterSleep picks a random delay in [0, baseDelay<<attempt], capped at maxDelay.
func FullJitterSleep(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if baseDelay <= 0 {
		return 0
	}
	maxForAttempt := clamp(baseDelay<<attempt, maxDelay)
	if maxForAttempt <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(maxForAttempt) + 1))
}

// Do runs fn up to 1+MaxRetries times, sleeping between retryable failures.
func Do(ctx context.Context, opts Options, fn func() error) error {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 300 * time.Millisecond
	}

	totalAttempts := 1 + opts.MaxRetries
	var lastErr error

	for attempt := 0; attempt < totalAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == totalAttempts-1 {
			return lastErr
		}

		sleep := FullJitterSleep(attempt, opts.BaseDelay, opts.MaxDelay)

		// Prefer the server-provided delay for 429 if present.
		var te *TransportError
		if errors.As(err, &te) && te.StatusCode == 429 && te.RetryAfter > 0 {
			sleep = clamp(te.RetryAfter, opts.MaxDelay)
		}

		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	return lastErr
}
