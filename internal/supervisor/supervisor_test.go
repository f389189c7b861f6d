package supervisor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/platform/logger"
	"github.com/shortforge/contentpipe/internal/resilient"
)

func TestPersistAndLoadBreakerState(t *testing.T) {
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	caller := resilient.NewCaller(log, nil)
	// Trip one breaker open so the snapshot has something to say.
	boom := errors.New("boom")
	for i := 0; i < 6; i++ {
		caller.Call(context.Background(), "stock-search", domain.OpSearch, func(ctx context.Context) (any, error) {
			return nil, boom
		})
	}

	path := filepath.Join(t.TempDir(), "state", "circuit-breakers.json")
	s := &Supervisor{Caller: caller, Log: log, Config: Config{BreakerStatePath: path}}
	s.persistBreakerState()

	snap, err := LoadBreakerState(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap["stock-search|search"] != "open" {
		t.Fatalf("snapshot: want stock-search|search=open got=%v", snap)
	}
}

func TestLoadBreakerStateAbsentIsNotAnError(t *testing.T) {
	snap, err := LoadBreakerState(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("absent snapshot must not error: %v", err)
	}
	if snap != nil {
		t.Fatalf("want nil snapshot, got=%v", snap)
	}
}
