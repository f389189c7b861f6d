package statemachine

import (
	"context"
	"fmt"

	"github.com/shortforge/contentpipe/internal/artifactstore"
	"github.com/shortforge/contentpipe/internal/dashboard"
	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/platform/logger"
)

// Reconcile runs once at startup: for every
// locally known item, compare its state against the dashboard row. If they
// already agree, nothing happens. If they disagree, the more-advanced side
// wins only when the artifacts it implies are verified present on disk;
// otherwise the less-advanced side wins and the item is left for discovery
// to re-queue the in-progress attempt.
func Reconcile(ctx context.Context, localStore *Store, dash *dashboard.Adapter, store *artifactstore.Store, log *logger.Logger) error {
	items, err := localStore.All(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: load local items: %w", err)
	}
	for _, it := range items {
		row, err := dash.GetItem(ctx, it.ItemID)
		if err != nil {
			log.Warn("reconcile: dashboard row missing for local item, skipping", "item_id", it.ItemID, "error", err)
			continue
		}
		dashState := stateForDashboardRow(row)
		if string(it.State) == string(dashState) {
			continue
		}
		if MoreAdvanced(it.State, dashState) {
			if artifactsVerified(it, store) {
				if err := reconcileDashboardToLocal(ctx, dash, it); err != nil {
					log.Warn("reconcile: failed to advance dashboard to local state", "item_id", it.ItemID, "error", err)
				} else {
					log.Info("reconcile: dashboard advanced to local state", "item_id", it.ItemID, "state", it.State)
				}
				continue
			}
			// Local claims more progress than its artifacts back up: the
			// dashboard's view wins, and the demoted item is re-queued by
			// the next discovery tick.
			it.State = dashState
			if err := localStore.Save(ctx, it); err != nil {
				log.Warn("reconcile: failed to demote local state", "item_id", it.ItemID, "error", err)
			} else {
				log.Info("reconcile: local state demoted to dashboard state (artifacts missing)", "item_id", it.ItemID, "state", dashState)
			}
			continue
		}
		// Dashboard claims more progress than local knows about (e.g. the
		// local state file was never written): local wins, since it is the
		// only side the worker itself updates mid-stage.
		if err := reconcileDashboardToLocal(ctx, dash, it); err != nil {
			log.Warn("reconcile: failed to align dashboard with local state", "item_id", it.ItemID, "error", err)
		}
	}
	return nil
}

// artifactsVerified checks that every artifact path the item references is
// present on disk. The item record carries only paths, so this is a
// presence check; content hashes are verified at finalize time.
func artifactsVerified(it *domain.Item, store *artifactstore.Store) bool {
	if len(it.Artifacts) == 0 {
		return true
	}
	for _, path := range it.Artifacts {
		if !store.ArtifactPresent(it.ItemID, path) {
			return false
		}
	}
	return true
}

func reconcileDashboardToLocal(ctx context.Context, dash *dashboard.Adapter, it *domain.Item) error {
	return dash.ForceUpdateFields(ctx, it.ItemID, map[string]any{
		"status": string(DashboardStatusFor(it.State)),
	})
}

// stateForDashboardRow infers the coarse internal State implied by a
// dashboard row when no finer-grained local record exists or agrees: the
// dashboard only carries the five coarse Status labels, so anything beyond
// pending_approval/approved/published/failed collapses to "approved" (the
// entry point discovery will re-resolve against artifacts already on disk).
func stateForDashboardRow(row dashboard.Row) domain.State {
	switch dashboard.Status(row.Status) {
	case dashboard.StatusPendingApproval:
		return domain.StatePendingApproval
	case dashboard.StatusApproved:
		return domain.StateApproved
	case dashboard.StatusCompleted:
		return domain.StatePublished
	case dashboard.StatusFailed:
		return domain.Failed("")
	default:
		return domain.StateApproved
	}
}
