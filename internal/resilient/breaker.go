package resilient

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerRegistry holds one gobreaker.CircuitBreaker per (service,
// operation-class) pair, so failures on one collaborator never trip the
// breaker for another.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker

	FailureThreshold uint32        // consecutive failures that trip the breaker; counts reset every Window while Closed
	Window           time.Duration // trailing window (default 60s)
	CooldownTimeout  time.Duration // Open duration before probing Half-Open (default 30s)
}

func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{
		breakers:         map[string]*gobreaker.CircuitBreaker{},
		FailureThreshold: 5,
		Window:           60 * time.Second,
		CooldownTimeout:  30 * time.Second,
	}
}

func (r *BreakerRegistry) get(key string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[key]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1, // one probe call while Half-Open
		Interval:    r.Window,
		Timeout:     r.CooldownTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= r.FailureThreshold
		},
	})
	r.breakers[key] = b
	return b
}

// Call runs fn through the breaker keyed by (service, class). A rejected
// call (breaker Open) surfaces as ErrCircuitOpen regardless of gobreaker's
// own sentinel, so callers only ever classify via resilient.Classify.
func (r *BreakerRegistry) Call(service string, class string, fn func() (any, error)) (any, error) {
	b := r.get(service + "|" + class)
	res, err := b.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, ErrCircuitOpen
	}
	return res, err
}

// State reports the current breaker state for health/status reporting.
func (r *BreakerRegistry) State(service, class string) string {
	r.mu.Lock()
	b, ok := r.breakers[service+"|"+class]
	r.mu.Unlock()
	if !ok {
		return "closed"
	}
	switch b.State() {
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Snapshot lists every known (service, class) key and its state, used to
// persist state/circuit-breakers.json on shutdown and for health reports.
// The file is read back at start for logging only; breakers start Closed.
func (r *BreakerRegistry) Snapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.breakers))
	for k, b := range r.breakers {
		switch b.State() {
		case gobreaker.StateOpen:
			out[k] = "open"
		case gobreaker.StateHalfOpen:
			out[k] = "half_open"
		default:
			out[k] = "closed"
		}
	}
	return out
}
