// Package httpx is the shared HTTP plumbing for the platform collaborator
// clients (textgen, tts, stockmedia, captionalign, publish, trendsource):
// a common status-carrying error type, and the single-round-trip retry loop
// that textgen, tts, stockmedia search, captionalign and publish run, so
// each of those only supplies the request builder (trendsource and
// stockmedia downloads make one round trip without it). The
// resilient.Caller layer above still owns the pipeline-wide attempt
// budget; this package only governs a client's own HTTP round trips.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shortforge/contentpipe/internal/platform/logger"
)

// StatusError is the non-2xx outcome of a collaborator round trip. It
// implements the HTTPStatusCode interface the resilient layer classifies
// on, so a 403 from the trend source and a 503 from the TTS provider both
// reach the error taxonomy without per-client error types.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s http %d: %s", e.Service, e.Code, e.Body)
}

func (e *StatusError) HTTPStatusCode() int { return e.Code }

// IsRetryableStatus reports the provider-agnostic policy: 408/429 and any
// 5xx are retryable, everything else is not.
func IsRetryableStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

// IsRetryableError reports whether one more round trip could plausibly
// succeed: transport timeouts, deadline expiry, and retryable statuses.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return IsRetryableStatus(se.Code)
	}
	return false
}

// Attempt is one HTTP round trip. The response is returned alongside the
// body so the retry loop can honor a Retry-After header on failure.
type Attempt func(ctx context.Context) (*http.Response, []byte, error)

const (
	retryBase = 500 * time.Millisecond
	retryMax  = 10 * time.Second
)

// Retry runs op up to maxRetries+1 times, sleeping between attempts with
// doubling backoff jittered ±20%, capped at retryMax, and honoring a
// provider Retry-After hint when one is present. Non-retryable errors and
// context cancellation return immediately.
func Retry(ctx context.Context, log *logger.Logger, service string, maxRetries int, op Attempt) ([]byte, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := retryBase
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, raw, err := op(ctx)
		if err == nil {
			return raw, nil
		}
		if !IsRetryableError(err) || attempt == maxRetries {
			return nil, err
		}
		sleepFor := jitter(retryAfter(resp, backoff))
		if log != nil {
			log.Warn("request retrying", "service", service, "attempt", attempt+1, "sleep", sleepFor.String(), "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
		if backoff > retryMax {
			backoff = retryMax
		}
	}
}

// retryAfter prefers the provider's Retry-After header (seconds) over the
// client's own backoff, capped at retryMax.
func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	sleepFor := fallback
	if resp != nil {
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				sleepFor = time.Duration(secs) * time.Second
			}
		}
	}
	if sleepFor > retryMax {
		sleepFor = retryMax
	}
	return sleepFor
}

// jitter spreads a sleep uniformly across ±20% of base.
func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	low := float64(base) * 0.8
	high := float64(base) * 1.2
	return time.Duration(low + rand.Float64()*(high-low))
}
