package queue

import (
	"context"
	"sync"
	"time"

	"github.com/shortforge/contentpipe/internal/artifactstore"
	"github.com/shortforge/contentpipe/internal/dashboard"
	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/observability"
	"github.com/shortforge/contentpipe/internal/pipelineerr"
	"github.com/shortforge/contentpipe/internal/platform/logger"
	"github.com/shortforge/contentpipe/internal/registry"
	"github.com/shortforge/contentpipe/internal/resilient"
	"github.com/shortforge/contentpipe/internal/statemachine"
)

// DefaultPoolSize is the worker-pool size table, indexed by
// stage. Asymmetric: scripting/metadata are CPU/LLM-call bound and run
// with more parallelism, assembling/captioning/publishing are rate-limit
// or single-child-process bound and run with one worker each.
var DefaultPoolSize = map[domain.StageName]int{
	domain.StageScripting:     4,
	domain.StageNarrating:     2,
	domain.StageSourcingClips: 2,
	domain.StageAssembling:    1,
	domain.StageCaptioning:    1,
	domain.StageMetadata:      4,
	domain.StagePublishing:    1,
}

// DefaultQueueCapacity is the per-stage bounded queue size.
const DefaultQueueCapacity = 64

// Scheduler owns one bounded queue and worker pool per stage. A job is a
// bare item id: workers re-load the item from the local state store right
// before executing, so a job sitting in the queue never goes stale.
type Scheduler struct {
	Registry   *registry.Registry
	Store      *artifactstore.Store
	Locks      *artifactstore.ItemLocks
	LocalStore *statemachine.Store
	Dashboard  *dashboard.Adapter
	Log        *logger.Logger
	Metrics    *observability.Metrics

	poolSize map[domain.StageName]int
	queues   map[domain.StageName]chan string
	inFlight *InFlightSet

	wg sync.WaitGroup
}

// NewScheduler builds one DefaultQueueCapacity queue per registered stage
// and takes per-stage worker counts from poolSize (nil falls back to
// DefaultPoolSize). It starts no goroutines yet; call Start.
func NewScheduler(reg *registry.Registry, store *artifactstore.Store, localStore *statemachine.Store, dash *dashboard.Adapter, log *logger.Logger, metrics *observability.Metrics, poolSize map[domain.StageName]int) *Scheduler {
	if poolSize == nil {
		poolSize = DefaultPoolSize
	}
	s := &Scheduler{
		Registry:   reg,
		Store:      store,
		Locks:      store.Locks,
		LocalStore: localStore,
		Dashboard:  dash,
		Log:        log,
		Metrics:    metrics,
		poolSize:   poolSize,
		queues:     map[domain.StageName]chan string{},
		inFlight:   NewInFlightSet(),
	}
	for _, name := range reg.Names() {
		s.queues[name] = make(chan string, DefaultQueueCapacity)
	}
	return s
}

// Start spawns the configured number of worker goroutines per stage. Every
// worker honors ctx cancellation at its next suspension point.
func (s *Scheduler) Start(ctx context.Context, caller *resilient.Caller) {
	for name, q := range s.queues {
		n := s.poolSize[name]
		if n <= 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			s.wg.Add(1)
			go s.worker(ctx, name, q, caller)
		}
	}
}

// Wait blocks until every worker goroutine has exited, used by graceful
// shutdown's drain step.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// QueueDepths reports the current backlog per stage, used by the
// supervisor's health report.
func (s *Scheduler) QueueDepths() map[domain.StageName]int {
	out := make(map[domain.StageName]int, len(s.queues))
	for name, q := range s.queues {
		out[name] = len(q)
	}
	return out
}

// Idle reports whether every per-stage queue is empty and no job is
// currently in-flight, used by the `run-once` CLI command to know when a
// single pass has fully drained.
func (s *Scheduler) Idle() bool {
	if s.inFlight.Len() > 0 {
		return false
	}
	for _, depth := range s.QueueDepths() {
		if depth > 0 {
			return false
		}
	}
	return true
}

// Enqueue submits itemID for stage if it is not already in-flight and the
// stage's queue has room. It returns false (and logs) when the queue is
// full so the caller never silently drops an item permanently: the next
// discovery tick will see it is no longer in-flight and retry.
func (s *Scheduler) Enqueue(stage domain.StageName, itemID string) bool {
	if !s.inFlight.TryAdd(itemID, string(stage)) {
		return false
	}
	q, ok := s.queues[stage]
	if !ok {
		s.inFlight.Remove(itemID, string(stage))
		if s.Log != nil {
			s.Log.Warn("enqueue: no queue for stage", "stage", stage, "item_id", itemID)
		}
		return false
	}
	select {
	case q <- itemID:
		if s.Metrics != nil {
			s.Metrics.SetQueueDepth(string(stage), len(q))
		}
		return true
	default:
		s.inFlight.Remove(itemID, string(stage))
		if s.Log != nil {
			s.Log.Warn("enqueue: stage queue full, dropping this tick", "stage", stage, "item_id", itemID)
		}
		return false
	}
}

func (s *Scheduler) worker(ctx context.Context, stage domain.StageName, q chan string, caller *resilient.Caller) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case itemID, ok := <-q:
			if !ok {
				return
			}
			s.runJob(ctx, stage, itemID)
			s.inFlight.Remove(itemID, string(stage))
			if s.Metrics != nil {
				s.Metrics.SetQueueDepth(string(stage), len(q))
			}
		}
	}
}

// runJob executes exactly one stage attempt for one item. The item's
// advisory lock is taken narrowly around each state-transition commit, not
// across the whole stage execution: stage adapters themselves acquire the
// same lock (VerifyArtifact, ListClips) while finalizing artifacts, and
// sync.Mutex is not reentrant. Two separate (item,stage) pairs can never be
// dispatched concurrently for the same item regardless, since an item's
// current State admits exactly one next stage at a time and the in-flight
// set refuses a duplicate (item,stage) enqueue — so the lock's
// job here is only to serialize a stage's commit against a concurrent GC
// sweep or reset, not against another worker racing the same stage.
func (s *Scheduler) runJob(ctx context.Context, stage domain.StageName, itemID string) {
	s.execute(ctx, stage, itemID)
}

func (s *Scheduler) execute(ctx context.Context, stage domain.StageName, itemID string) {
	log := s.Log
	it, err := s.LocalStore.Get(ctx, itemID)
	if err != nil || it == nil {
		if log != nil {
			log.Warn("runJob: item vanished before dispatch", "item_id", itemID, "stage", stage, "error", err)
		}
		return
	}

	stageDef, ok := s.Registry.Get(stage)
	if !ok {
		if log != nil {
			log.Error("runJob: no stage registered, dropping job", "item_id", itemID, "stage", stage)
		}
		return
	}
	t, ok := statemachine.TransitionForStage(stage)
	if !ok {
		if log != nil {
			log.Error("runJob: stage has no DAG transition, dropping job", "item_id", itemID, "stage", stage)
		}
		return
	}
	eligible := it.State == t.EntryState || it.State == domain.RetryableError(string(stage))
	if !eligible || !stageDef.Precondition(it) {
		// Superseded by a concurrent reset/reconciliation between enqueue
		// and dispatch; not an error, just stale work.
		return
	}

	it.EnsureMaps()
	attempt := it.StageAttempts[string(stage)] + 1
	it.StageAttempts[string(stage)] = attempt
	runningState := t.RunningState
	// Expected dashboard status reflects the item's *actual* current state,
	// not always t.EntryState: a resumed retryable_error(stage) item already
	// carries dashboard status "In Progress" from its earlier failed attempt,
	// not the fresh-entry status.
	expectedBeforeRun := statemachine.DashboardStatusFor(it.State)
	lockErr := s.Locks.WithLock(itemID, func() error {
		return statemachine.Commit(ctx, s.LocalStore, s.Dashboard, it, runningState, nil, expectedBeforeRun)
	})
	if lockErr != nil && log != nil {
		log.Warn("runJob: failed to commit running-state transition, continuing anyway", "item_id", itemID, "stage", stage, "error", lockErr)
	}

	start := time.Now()
	result, runErr := stageDef.Run(ctx, it)
	elapsed := time.Since(start)

	if runErr != nil {
		kind := resilient.Classify(runErr)
		if pe, ok2 := runErr.(*pipelineerr.Error); ok2 {
			kind = pe.Kind
		}
		if s.Metrics != nil {
			s.Metrics.ObserveStage(string(stage), "error", elapsed)
			s.Metrics.ObserveStageError(string(stage), string(kind))
		}
		next := statemachine.NextStateOnError(kind, stage, attempt, stageDef.MaxAttempts)
		if next.IsRetryable() {
			policy := resilient.DefaultRetryPolicy(stageDef.MaxAttempts)
			it.AfterTS = time.Now().Add(policy.Backoff(attempt))
		}
		errInfo := domain.ErrorInfo{
			Kind: string(kind), Message: runErr.Error(), Stage: string(stage), Timestamp: time.Now(),
		}
		commitErr := s.Locks.WithLock(itemID, func() error {
			return statemachine.CommitError(ctx, s.LocalStore, s.Dashboard, it, errInfo, next, statemachine.DashboardStatusFor(runningState))
		})
		if commitErr != nil && log != nil {
			log.Warn("runJob: failed to commit error transition", "item_id", itemID, "stage", stage, "error", commitErr)
		}
		if log != nil {
			log.Warn("stage failed", "item_id", itemID, "stage", stage, "kind", kind, "attempt", attempt, "next_state", next)
		}
		if s.Metrics != nil && next.IsFailed() {
			s.Metrics.ItemsFailed.Inc()
		}
		return
	}

	// A re-run that produced a fresh file supersedes the artifact the item
	// previously pointed at; the old file is deleted only once the new one
	// is durably committed.
	var superseded []string
	for kind, a := range result.Artifacts {
		if prev := it.Artifacts[string(kind)]; prev != "" && prev != a.Path {
			superseded = append(superseded, prev)
		}
		it.Artifacts[string(kind)] = a.Path
	}
	next := statemachine.NextStateOnSuccess(t)
	it.Error = nil
	commitErr := s.Locks.WithLock(itemID, func() error {
		return statemachine.Commit(ctx, s.LocalStore, s.Dashboard, it, next, result.FieldUpdates, statemachine.DashboardStatusFor(runningState))
	})
	if commitErr != nil && log != nil {
		log.Warn("runJob: failed to commit success transition", "item_id", itemID, "stage", stage, "error", commitErr)
	}
	if commitErr == nil {
		for _, prev := range superseded {
			if rmErr := s.Store.RemoveArtifact(itemID, prev); rmErr != nil && log != nil {
				log.Warn("runJob: failed to remove superseded artifact", "item_id", itemID, "stage", stage, "path", prev, "error", rmErr)
			}
		}
	}
	if s.Metrics != nil {
		s.Metrics.ObserveStage(string(stage), "ok", elapsed)
		if next == domain.StatePublished {
			s.Metrics.ItemsPublished.Inc()
		}
	}
	if log != nil {
		log.Info("stage succeeded", "item_id", itemID, "stage", stage, "attempt", attempt, "next_state", next)
	}
}
