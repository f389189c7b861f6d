package httpx

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestStatusErrorCarriesCode(t *testing.T) {
	err := &StatusError{Service: "tts", Code: 503, Body: "upstream down"}
	if err.HTTPStatusCode() != 503 {
		t.Fatalf("code: want=503 got=%d", err.HTTPStatusCode())
	}
	var se *StatusError
	if !errors.As(error(err), &se) {
		t.Fatalf("errors.As must recover StatusError")
	}
}

func TestIsRetryableError(t *testing.T) {
	if !IsRetryableError(&StatusError{Code: 503}) {
		t.Fatalf("503 must be retryable")
	}
	if !IsRetryableError(&StatusError{Code: 429}) {
		t.Fatalf("429 must be retryable")
	}
	if IsRetryableError(&StatusError{Code: 400}) {
		t.Fatalf("400 must not be retryable")
	}
	if !IsRetryableError(context.DeadlineExceeded) {
		t.Fatalf("deadline expiry must be retryable")
	}
	if IsRetryableError(errors.New("parse failure")) {
		t.Fatalf("arbitrary errors must not be retryable")
	}
	if IsRetryableError(nil) {
		t.Fatalf("nil is not an error")
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), nil, "svc", 3, func(ctx context.Context) (*http.Response, []byte, error) {
		calls++
		return nil, nil, &StatusError{Service: "svc", Code: 400, Body: "bad request"}
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("non-retryable must not retry: calls=%d", calls)
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	raw, err := Retry(context.Background(), nil, "svc", 3, func(ctx context.Context) (*http.Response, []byte, error) {
		calls++
		if calls < 3 {
			return nil, nil, &StatusError{Service: "svc", Code: 503, Body: "flaky"}
		}
		return nil, []byte("payload"), nil
	})
	if err != nil {
		t.Fatalf("want success on third attempt, got=%v", err)
	}
	if calls != 3 {
		t.Fatalf("attempts: want=3 got=%d", calls)
	}
	if string(raw) != "payload" {
		t.Fatalf("body: want=payload got=%q", raw)
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Retry(ctx, nil, "svc", 3, func(ctx context.Context) (*http.Response, []byte, error) {
		calls++
		return nil, nil, &StatusError{Code: 503}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got=%v", err)
	}
	if calls != 0 {
		t.Fatalf("canceled context must short-circuit before the first attempt: calls=%d", calls)
	}
}

func TestRetryAfterPrefersHeader(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"2"}}}
	if got := retryAfter(resp, 500*time.Millisecond); got != 2*time.Second {
		t.Fatalf("retry-after: want=2s got=%v", got)
	}
	if got := retryAfter(nil, 500*time.Millisecond); got != 500*time.Millisecond {
		t.Fatalf("fallback: want=500ms got=%v", got)
	}
	if got := retryAfter(resp, 0); got != 2*time.Second {
		t.Fatalf("header over zero fallback: want=2s got=%v", got)
	}
}

func TestJitterStaysNearBase(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		d := jitter(base)
		if d < 80*time.Millisecond || d > 120*time.Millisecond {
			t.Fatalf("jitter %v outside ±20%% of %v", d, base)
		}
	}
	if jitter(0) != 0 {
		t.Fatalf("zero base must not sleep")
	}
}
