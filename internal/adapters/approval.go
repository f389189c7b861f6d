package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/shortforge/contentpipe/internal/dashboard"
	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/platform/logger"
	"github.com/shortforge/contentpipe/internal/statemachine"
)

// ApprovalWatcher is the discovery-time bridge between operator action on
// the dashboard and the local state store: it notices rows an operator
// moved to Approved and either creates the corresponding local item (first
// sighting) or advances an already-tracked item out of pending_approval.
type ApprovalWatcher struct {
	Dashboard  *dashboard.Adapter
	LocalStore *statemachine.Store
	Log        *logger.Logger
}

func NewApprovalWatcher(dash *dashboard.Adapter, localStore *statemachine.Store, log *logger.Logger) *ApprovalWatcher {
	return &ApprovalWatcher{Dashboard: dash, LocalStore: localStore, Log: log}
}

// Sync pulls every dashboard row currently Approved and reconciles each
// against local state, returning the number of items newly advanced to
// domain.StateApproved.
func (w *ApprovalWatcher) Sync(ctx context.Context) (int, error) {
	rows, err := w.Dashboard.ListItems(ctx, dashboard.Filter{Status: string(dashboard.StatusApproved)})
	if err != nil {
		return 0, fmt.Errorf("approval watcher: list approved rows: %w", err)
	}
	advanced := 0
	for _, row := range rows {
		it, err := w.LocalStore.Get(ctx, row.ID)
		if err != nil {
			if w.Log != nil {
				w.Log.Warn("approval watcher: get local item failed", "item_id", row.ID, "error", err)
			}
			continue
		}
		now := time.Now()
		if it == nil {
			// An operator can approve a row the local store has never seen
			// (e.g. appended directly against the dashboard). Adopt it.
			it = &domain.Item{
				ItemID:      row.ID,
				Source:      domain.Source(row.Source),
				ConceptText: row.Title,
				State:       domain.StateApproved,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			it.EnsureMaps()
			if err := w.LocalStore.Save(ctx, it); err != nil {
				if w.Log != nil {
					w.Log.Warn("approval watcher: adopt item failed", "item_id", row.ID, "error", err)
				}
				continue
			}
			advanced++
			continue
		}
		if it.State != domain.StatePendingApproval {
			continue
		}
		it.State = domain.StateApproved
		it.UpdatedAt = now
		if err := w.LocalStore.Save(ctx, it); err != nil {
			if w.Log != nil {
				w.Log.Warn("approval watcher: advance item failed", "item_id", row.ID, "error", err)
			}
			continue
		}
		advanced++
	}
	return advanced, nil
}
