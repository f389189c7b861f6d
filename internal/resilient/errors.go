package resilient

import (
	"context"
	"errors"
	"net"

	"github.com/shortforge/contentpipe/internal/pipelineerr"
)

// HTTPStatusCoder lets provider client errors carry a status code without
// this package importing net/http error types for every collaborator.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// IsRetryableHTTPStatus is the provider-agnostic retry policy: 408/429 and
// any 5xx are retryable, everything else is not.
func IsRetryableHTTPStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

// Classify maps an arbitrary error into the closed pipeline error taxonomy.
func Classify(err error) pipelineerr.Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pipelineerr.KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return pipelineerr.KindUnexpected
	}
	if errors.Is(err, ErrCircuitOpen) {
		return pipelineerr.KindCircuitOpen
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return pipelineerr.KindTimeout
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		code := sc.HTTPStatusCode()
		switch {
		case code == 401 || code == 403:
			return pipelineerr.KindAuth
		case code == 429:
			return pipelineerr.KindRateLimited
		case code == 408:
			return pipelineerr.KindTimeout
		case code >= 500 && code <= 599:
			return pipelineerr.KindTransient
		case code >= 400 && code < 500:
			return pipelineerr.KindClient
		}
	}
	var pe *pipelineerr.Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return pipelineerr.KindUnexpected
}

var ErrCircuitOpen = errors.New("resilient: circuit open")
