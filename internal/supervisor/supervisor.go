// Package supervisor owns process lifetime: startup reconciliation, the
// discovery/dispatch tick loop, periodic artifact garbage collection, and
// graceful drain on shutdown.
package supervisor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/shortforge/contentpipe/internal/artifactstore"
	"github.com/shortforge/contentpipe/internal/dashboard"
	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/observability"
	"github.com/shortforge/contentpipe/internal/platform/logger"
	"github.com/shortforge/contentpipe/internal/queue"
	"github.com/shortforge/contentpipe/internal/resilient"
	"github.com/shortforge/contentpipe/internal/statemachine"
)

// Config holds the supervisor's own timing knobs, distinct from any single
// stage's retry policy.
type Config struct {
	TickInterval  time.Duration
	GCInterval    time.Duration
	GCRetention   time.Duration
	DrainDeadline time.Duration

	// BreakerStatePath is where the circuit-breaker snapshot is persisted
	// on shutdown (state/circuit-breakers.json). Empty disables persistence.
	BreakerStatePath string
}

func DefaultConfig() Config {
	return Config{
		TickInterval:  5 * time.Second,
		GCInterval:    1 * time.Hour,
		GCRetention:   7 * 24 * time.Hour,
		DrainDeadline: 120 * time.Second,
	}
}

// Supervisor is the top-level run loop: one per process. It never talks to
// an external collaborator directly; everything flows through Discovery,
// Scheduler, and the artifact store.
type Supervisor struct {
	Discovery     *queue.Discovery
	Scheduler     *queue.Scheduler
	LocalStore    *statemachine.Store
	Dashboard     *dashboard.Adapter
	ArtifactStore *artifactstore.Store
	Caller        *resilient.Caller
	Metrics       *observability.Metrics
	Log           *logger.Logger
	Config        Config
}

// HealthReport is the process-wide status snapshot, suitable
// for a health-check endpoint or the `status` CLI command.
type HealthReport struct {
	QueueDepths    map[domain.StageName]int
	CircuitStates  map[string]string
	LastTickAt     time.Time
}

// Run performs startup reconciliation, starts the scheduler's worker
// pools, and blocks ticking discovery/GC until ctx is canceled. On
// cancellation it stops accepting new ticks and waits for in-flight stage
// executions to finish before returning.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := statemachine.Reconcile(ctx, s.LocalStore, s.Dashboard, s.ArtifactStore, s.Log); err != nil {
		return err
	}

	s.Scheduler.Start(ctx, s.Caller)

	tickCfg := s.Config
	if tickCfg.TickInterval <= 0 {
		tickCfg = DefaultConfig()
	}
	tickTicker := time.NewTicker(tickCfg.TickInterval)
	gcTicker := time.NewTicker(tickCfg.GCInterval)
	defer tickTicker.Stop()
	defer gcTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.Log != nil {
				s.Log.Info("supervisor: context canceled, draining in-flight stage executions")
			}
			s.drain(tickCfg.DrainDeadline)
			s.persistBreakerState()
			return nil
		case <-tickTicker.C:
			s.Discovery.Tick(ctx)
			s.publishQueueDepths()
		case <-gcTicker.C:
			s.runGC(ctx)
		}
	}
}

// RunOnce performs startup reconciliation, one discovery pass, and blocks
// until every queued stage execution has drained, then stops the worker
// pools. It is the `run-once` CLI mode: a single sweep over whatever the
// dashboard and local store currently hold.
func (s *Supervisor) RunOnce(ctx context.Context) error {
	if err := statemachine.Reconcile(ctx, s.LocalStore, s.Dashboard, s.ArtifactStore, s.Log); err != nil {
		return err
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	s.Scheduler.Start(workerCtx, s.Caller)

	s.Discovery.Tick(ctx)
	// Keep dispatching until nothing is queued, in flight, or freshly
	// eligible: a single pass still has to walk an item through every
	// remaining stage, each completion unlocking the next.
	idleTicks := 0
	poll := time.NewTicker(250 * time.Millisecond)
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			stopWorkers()
			s.drain(s.Config.DrainDeadline)
			s.persistBreakerState()
			return ctx.Err()
		case <-poll.C:
			if !s.Scheduler.Idle() {
				idleTicks = 0
				continue
			}
			s.Discovery.Dispatch(ctx)
			if !s.Scheduler.Idle() {
				idleTicks = 0
				continue
			}
			idleTicks++
			if idleTicks >= 3 {
				stopWorkers()
				s.drain(s.Config.DrainDeadline)
				s.persistBreakerState()
				return nil
			}
		}
	}
}

// drain waits for the worker pools to exit, hard-stopping at deadline.
func (s *Supervisor) drain(deadline time.Duration) {
	if deadline <= 0 {
		deadline = DefaultConfig().DrainDeadline
	}
	done := make(chan struct{})
	go func() {
		s.Scheduler.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(deadline):
		if s.Log != nil {
			s.Log.Error("supervisor: drain deadline exceeded, abandoning in-flight workers", "deadline", deadline.String())
		}
	}
}

// persistBreakerState writes the circuit-breaker snapshot so an operator
// can see pre-restart breaker positions; breakers themselves restart
// Closed and re-learn from live traffic.
func (s *Supervisor) persistBreakerState() {
	if s.Config.BreakerStatePath == "" || s.Caller == nil {
		return
	}
	snap := s.Caller.Breakers.Snapshot()
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return
	}
	tmp := s.Config.BreakerStatePath + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.Config.BreakerStatePath), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return
	}
	if err := os.Rename(tmp, s.Config.BreakerStatePath); err != nil && s.Log != nil {
		s.Log.Warn("supervisor: persist breaker state failed", "error", err)
	}
}

// LoadBreakerState reads the snapshot persisted by the previous run, for
// startup logging and the `status` command. Absence is not an error.
func LoadBreakerState(path string) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var snap map[string]string
	if err := json.Unmarshal(content, &snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Health returns the current queue-depth and circuit-breaker snapshot.
func (s *Supervisor) Health() HealthReport {
	report := HealthReport{
		QueueDepths: s.Scheduler.QueueDepths(),
		LastTickAt:  time.Now(),
	}
	if s.Caller != nil {
		report.CircuitStates = s.Caller.Breakers.Snapshot()
	}
	return report
}

func (s *Supervisor) publishQueueDepths() {
	if s.Metrics == nil {
		return
	}
	for stage, depth := range s.Scheduler.QueueDepths() {
		s.Metrics.SetQueueDepth(string(stage), depth)
	}
}

// RunGC performs one GC sweep on demand, for the `gc` CLI command, without
// waiting for the periodic ticker.
func (s *Supervisor) RunGC(ctx context.Context) {
	s.runGC(ctx)
}

// runGC sweeps artifacts for items that reached a terminal state at least
// GCRetention ago.
func (s *Supervisor) runGC(ctx context.Context) {
	items, err := s.LocalStore.All(ctx)
	if err != nil {
		if s.Log != nil {
			s.Log.Warn("supervisor: gc load local items failed", "error", err)
		}
		return
	}
	candidates := make([]artifactstore.GCCandidate, 0, len(items))
	for _, it := range items {
		if it.State.IsTerminal() {
			candidates = append(candidates, artifactstore.GCCandidate{ItemID: it.ItemID, ReachedTerm: it.UpdatedAt})
		}
	}
	if len(candidates) == 0 {
		return
	}
	removed, err := s.ArtifactStore.Sweep(candidates, s.Config.GCRetention, s.Log)
	if err != nil && s.Log != nil {
		s.Log.Warn("supervisor: gc sweep reported errors", "error", err, "removed", removed)
		return
	}
	if removed > 0 && s.Log != nil {
		s.Log.Info("supervisor: gc swept artifact directories", "removed", removed)
	}
}
