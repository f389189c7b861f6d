package queue

import (
	"context"
	"time"

	"github.com/shortforge/contentpipe/internal/adapters"
	"github.com/shortforge/contentpipe/internal/dashboard"
	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/platform/logger"
	"github.com/shortforge/contentpipe/internal/statemachine"
)

// DiscoveryConfig controls how aggressively a Discovery tick seeds new
// work, separate from dispatch (which always runs every tick).
type DiscoveryConfig struct {
	IdeationEnabled    bool
	IdeationBatchSize  int
	TrendIngestEnabled bool
}

// Discovery is the supervisor's periodic scan: it creates
// new candidate items (ideation/trend-ingest), promotes operator-approved
// rows into the local state store (the approval watcher), and resolves
// every locally tracked item's next eligible stage into a scheduler
// enqueue. It holds no state of its own beyond its collaborators.
type Discovery struct {
	LocalStore  *statemachine.Store
	Dashboard   *dashboard.Adapter
	Scheduler   *Scheduler
	Ideation    *adapters.IdeationAdapter
	TrendIngest *adapters.TrendIngestAdapter
	Approval    *adapters.ApprovalWatcher
	Log         *logger.Logger
	Config      DiscoveryConfig
}

// Tick runs one full discovery pass. It never returns an error: every
// collaborator failure is logged and skipped so one broken source (a down
// trend API, a stale dashboard connection) never stalls the rest of the
// pipeline.
func (d *Discovery) Tick(ctx context.Context) {
	if d.Approval != nil {
		if n, err := d.Approval.Sync(ctx); err != nil {
			d.logWarn("discovery: approval sync failed", err)
		} else if n > 0 && d.Log != nil {
			d.Log.Info("discovery: approval watcher advanced items", "count", n)
		}
	}
	if d.Ideation != nil && d.Config.IdeationEnabled {
		batch := d.Config.IdeationBatchSize
		if batch <= 0 {
			batch = 1
		}
		if n, err := d.Ideation.GenerateIdeas(ctx, batch); err != nil {
			d.logWarn("discovery: ideation failed", err)
		} else if n > 0 && d.Log != nil {
			d.Log.Info("discovery: ideation created items", "count", n)
		}
	}
	if d.TrendIngest != nil && d.Config.TrendIngestEnabled {
		if n, err := d.TrendIngest.Ingest(ctx); err != nil {
			d.logWarn("discovery: trend ingest failed", err)
		} else if n > 0 && d.Log != nil {
			d.Log.Info("discovery: trend ingest created items", "count", n)
		}
	}
	d.Dispatch(ctx)
}

// Dispatch runs only the enqueue half of a tick: no new-item seeding, just
// resolving already-tracked items to their next eligible stage. The
// supervisor's run-once mode calls this between drain polls so one pass
// walks each item through every remaining stage.
func (d *Discovery) Dispatch(ctx context.Context) {
	d.dispatchReady(ctx)
	d.dispatchRetryable(ctx)
}

// dispatchReady enqueues every locally tracked item currently sitting in a
// state with an outgoing DAG edge.
func (d *Discovery) dispatchReady(ctx context.Context) {
	items, err := d.LocalStore.All(ctx)
	if err != nil {
		d.logWarn("discovery: load local items failed", err)
		return
	}
	for _, it := range items {
		t, ok := statemachine.TransitionForState(it.State)
		if !ok {
			continue
		}
		d.Scheduler.Enqueue(t.Stage, it.ItemID)
	}
}

// dispatchRetryable re-enqueues items whose backoff window has elapsed;
// the stage to resume is the one recorded on the item's
// last classified error.
func (d *Discovery) dispatchRetryable(ctx context.Context) {
	items, err := d.LocalStore.Retryable(ctx, time.Now())
	if err != nil {
		d.logWarn("discovery: load retryable items failed", err)
		return
	}
	for _, it := range items {
		if it.Error == nil || it.Error.Stage == "" {
			continue
		}
		d.Scheduler.Enqueue(domain.StageName(it.Error.Stage), it.ItemID)
	}
}

func (d *Discovery) logWarn(msg string, err error) {
	if d.Log != nil {
		d.Log.Warn(msg, "error", err)
	}
}
