package resilient

import (
	"context"
	"time"

	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/observability"
	"github.com/shortforge/contentpipe/internal/pipelineerr"
	"github.com/shortforge/contentpipe/internal/platform/logger"
)

// Caller composes timeout, bulkhead, circuit breaker, and retry-with-jitter
// around a single outbound call. One Caller is shared by all
// stage adapters.
type Caller struct {
	Breakers  *BreakerRegistry
	Bulkheads *BulkheadRegistry
	Log       *logger.Logger
	Metrics   *observability.Metrics
}

func NewCaller(log *logger.Logger, metrics *observability.Metrics) *Caller {
	return &Caller{
		Breakers:  NewBreakerRegistry(),
		Bulkheads: NewBulkheadRegistry(8),
		Log:       log,
		Metrics:   metrics,
	}
}

// Call is the single-attempt primitive: bulkhead-gated, breaker-gated, and
// bounded by the operation class's overall timeout.
func (c *Caller) Call(ctx context.Context, service string, class domain.OperationClass, fn func(ctx context.Context) (any, error)) (any, error) {
	if err := c.Bulkheads.Acquire(ctx, service); err != nil {
		return nil, pipelineerr.New(pipelineerr.KindTimeout, "", "bulkhead queue timeout", err)
	}
	defer c.Bulkheads.Release(service)

	timeouts := TimeoutsFor(class)
	callCtx, cancel := context.WithTimeout(ctx, timeouts.Overall)
	defer cancel()

	start := time.Now()
	res, err := c.Breakers.Call(service, string(class), func() (any, error) {
		return fn(callCtx)
	})
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if c.Metrics != nil {
		c.Metrics.ObserveExternalCall(service, string(class), outcome, time.Since(start))
		c.Metrics.SetCircuitState(service, string(class), c.Breakers.State(service, string(class)))
	}
	if err != nil {
		kind := Classify(err)
		return res, pipelineerr.New(kind, "", err.Error(), err)
	}
	return res, nil
}

// Do wraps Call with the stage-declared retry policy: retries on retryable
// kinds with jittered backoff, stops immediately on a non-retryable kind.
// idempotencyKey is accepted for callers that forward it as a provider
// header; this layer does not interpret it further.
func (c *Caller) Do(ctx context.Context, service, stage string, class domain.OperationClass, policy RetryPolicy, idempotencyKey string, fn func(ctx context.Context, idempotencyKey string) (any, error)) (any, error) {
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		res, err := c.Call(ctx, service, class, func(cctx context.Context) (any, error) {
			return fn(cctx, idempotencyKey)
		})
		if err == nil {
			return res, nil
		}
		lastErr = err
		kind := Classify(err)
		if pe, ok := err.(*pipelineerr.Error); ok {
			kind = pe.Kind
		}
		if !kind.Retryable() || attempt == policy.MaxAttempts {
			if c.Log != nil {
				c.Log.Warn("call failed, not retrying", "service", service, "stage", stage, "attempt", attempt, "kind", kind)
			}
			return nil, err
		}
		sleep := policy.Backoff(attempt)
		if c.Log != nil {
			c.Log.Info("call failed, retrying", "service", service, "stage", stage, "attempt", attempt, "kind", kind, "sleep_ms", sleep.Milliseconds())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, lastErr
}
