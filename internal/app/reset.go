package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/statemachine"
)

// Reset re-enters itemID at the last state it successfully completed,
// undoing a terminal failure or a stuck retryable error: the only
// permitted backward transition, and operator-initiated only. It holds the
// item's artifact lock so it can never race a concurrent GC sweep.
func (a *App) Reset(ctx context.Context, itemID string) error {
	return a.ArtifactStore.Locks.WithLock(itemID, func() error {
		it, err := a.LocalStore.Get(ctx, itemID)
		if err != nil {
			return fmt.Errorf("load item %s: %w", itemID, err)
		}
		if it == nil {
			return fmt.Errorf("item %s not found", itemID)
		}
		if !it.State.IsFailed() && !it.State.IsRetryable() {
			return fmt.Errorf("item %s is in state %q, reset only applies to a failed or retryable_error state", itemID, it.State)
		}
		if it.Error == nil || it.Error.Stage == "" {
			return fmt.Errorf("item %s has no recorded failing stage to reset from", itemID)
		}
		t, ok := statemachine.TransitionForStage(domain.StageName(it.Error.Stage))
		if !ok {
			return fmt.Errorf("item %s: no known stage transition for %q", itemID, it.Error.Stage)
		}
		expected := statemachine.DashboardStatusFor(it.State)
		it.Error = nil
		it.AfterTS = time.Time{}
		return statemachine.Commit(ctx, a.LocalStore, a.Dashboard, it, t.EntryState, map[string]any{"error": ""}, expected)
	})
}
