package resilient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/pipelineerr"
	"github.com/shortforge/contentpipe/internal/platform/logger"
)

type statusErr int

func (e statusErr) Error() string      { return fmt.Sprintf("http %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestBackoffNeverExceedsCap(t *testing.T) {
	p := DefaultRetryPolicy(10)
	for attempt := 1; attempt <= 20; attempt++ {
		d := p.Backoff(attempt)
		if d < 0 || d > p.Cap {
			t.Fatalf("attempt %d: backoff %v outside [0, %v]", attempt, d, p.Cap)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want pipelineerr.Kind
	}{
		{context.DeadlineExceeded, pipelineerr.KindTimeout},
		{ErrCircuitOpen, pipelineerr.KindCircuitOpen},
		{statusErr(401), pipelineerr.KindAuth},
		{statusErr(403), pipelineerr.KindAuth},
		{statusErr(429), pipelineerr.KindRateLimited},
		{statusErr(408), pipelineerr.KindTimeout},
		{statusErr(500), pipelineerr.KindTransient},
		{statusErr(503), pipelineerr.KindTransient},
		{statusErr(400), pipelineerr.KindClient},
		{statusErr(404), pipelineerr.KindClient},
		{errors.New("mystery"), pipelineerr.KindUnexpected},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v): want=%s got=%s", tc.err, tc.want, got)
		}
	}
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 599} {
		if !IsRetryableHTTPStatus(code) {
			t.Fatalf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404} {
		if IsRetryableHTTPStatus(code) {
			t.Fatalf("status %d should not be retryable", code)
		}
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	r := NewBreakerRegistry()
	boom := errors.New("boom")
	for i := 0; i < int(r.FailureThreshold); i++ {
		if _, err := r.Call("svc", "api", func() (any, error) { return nil, boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: want boom got=%v", i, err)
		}
	}
	start := time.Now()
	_, err := r.Call("svc", "api", func() (any, error) { return "should not run", nil })
	elapsed := time.Since(start)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("want ErrCircuitOpen after %d failures, got=%v", r.FailureThreshold, err)
	}
	if elapsed > 50*time.Millisecond {
		t.Fatalf("open breaker must fail fast, took %v", elapsed)
	}
	if got := r.State("svc", "api"); got != "open" {
		t.Fatalf("state: want=open got=%q", got)
	}
}

func TestBreakerHalfOpenProbeDecides(t *testing.T) {
	r := NewBreakerRegistry()
	r.CooldownTimeout = 50 * time.Millisecond
	boom := errors.New("boom")
	for i := 0; i < int(r.FailureThreshold); i++ {
		r.Call("probe-svc", "api", func() (any, error) { return nil, boom })
	}
	if got := r.State("probe-svc", "api"); got != "open" {
		t.Fatalf("state before cooldown: want=open got=%q", got)
	}
	time.Sleep(80 * time.Millisecond)
	// One successful probe closes the breaker again.
	if _, err := r.Call("probe-svc", "api", func() (any, error) { return "ok", nil }); err != nil {
		t.Fatalf("half-open probe failed: %v", err)
	}
	if got := r.State("probe-svc", "api"); got != "closed" {
		t.Fatalf("state after successful probe: want=closed got=%q", got)
	}
}

func TestBulkheadBlocksBeyondLimit(t *testing.T) {
	r := NewBulkheadRegistry(1)
	if err := r.Acquire(context.Background(), "svc"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := r.Acquire(ctx, "svc"); err == nil {
		t.Fatalf("second acquire should block until ctx deadline")
	}
	r.Release("svc")
	if err := r.Acquire(context.Background(), "svc"); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	r.Release("svc")
}

func TestCallerDoStopsOnNonRetryableKind(t *testing.T) {
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	c := NewCaller(log, nil)
	calls := 0
	_, err = c.Do(context.Background(), "svc-nr", "scripting", domain.OpAPI, DefaultRetryPolicy(4), "seed",
		func(ctx context.Context, key string) (any, error) {
			calls++
			return nil, statusErr(400)
		})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("non-retryable kind must not retry: calls=%d", calls)
	}
}

func TestCallerDoRetriesTransientThenSucceeds(t *testing.T) {
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	c := NewCaller(log, nil)
	calls := 0
	res, err := c.Do(context.Background(), "svc-rt", "narrating", domain.OpAPI, RetryPolicy{Base: time.Millisecond, Factor: 2, Cap: 5 * time.Millisecond, MaxAttempts: 3}, "seed",
		func(ctx context.Context, key string) (any, error) {
			calls++
			if calls < 3 {
				return nil, statusErr(503)
			}
			return "done", nil
		})
	if err != nil {
		t.Fatalf("want success on third attempt, got=%v", err)
	}
	if calls != 3 {
		t.Fatalf("attempts: want=3 got=%d", calls)
	}
	if res != "done" {
		t.Fatalf("result: want=done got=%v", res)
	}
}

func TestTimeoutsForUnknownClassFallsBackToAPI(t *testing.T) {
	got := TimeoutsFor(domain.OperationClass("nonsense"))
	want := TimeoutsFor(domain.OpAPI)
	if got != want {
		t.Fatalf("fallback: want=%v got=%v", want, got)
	}
}
