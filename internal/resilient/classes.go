// Package resilient mediates every outbound call to an external
// collaborator: per-operation-class timeouts, retry with jittered
// backoff, a circuit breaker per (service, class), and a per-service
// bulkhead.
package resilient

import (
	"time"

	"github.com/shortforge/contentpipe/internal/domain"
)

// Timeouts is the two-level (connect, overall) deadline for an operation
// class. Caller enforces Overall only; Connect is recorded here and is not
// applied by this package.
type Timeouts struct {
	Connect time.Duration
	Overall time.Duration
}

var classTimeouts = map[domain.OperationClass]Timeouts{
	domain.OpHealth:     {Connect: 5 * time.Second, Overall: 10 * time.Second},
	domain.OpAPI:        {Connect: 10 * time.Second, Overall: 30 * time.Second},
	domain.OpSearch:     {Connect: 10 * time.Second, Overall: 45 * time.Second},
	domain.OpGeneration: {Connect: 15 * time.Second, Overall: 120 * time.Second},
	domain.OpDownload:   {Connect: 30 * time.Second, Overall: 300 * time.Second},
	domain.OpAuth:       {Connect: 15 * time.Second, Overall: 30 * time.Second},
	domain.OpStream:     {Connect: 30 * time.Second, Overall: 600 * time.Second},
}

// TimeoutsFor returns the configured timeouts for class, defaulting to the
// api class's budget if class is unrecognized.
func TimeoutsFor(class domain.OperationClass) Timeouts {
	if t, ok := classTimeouts[class]; ok {
		return t
	}
	return classTimeouts[domain.OpAPI]
}
