package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/shortforge/contentpipe/internal/dashboard"
	"github.com/shortforge/contentpipe/internal/domain"
)

// Commit applies the second and third steps of the three-step commit:
// artifact finalize already happened in the caller
// (the stage adapter's artifactstore.Acquisition.WriteAndFinalize calls),
// before Commit is ever invoked. The caller holds the item's advisory lock
// around this call, serializing it against a concurrent GC sweep or
// reset; ordinary stage re-dispatch is already excluded by the item's
// single current State plus the scheduler's in-flight set.
//
// A dashboard write failure after the local state write succeeds is not
// rolled back: it is the crash window
// Reconcile repairs at the next startup.
func Commit(ctx context.Context, localStore *Store, dash *dashboard.Adapter, it *domain.Item, next domain.State, dashboardFields map[string]any, expectedDashboardStatus dashboard.Status) error {
	it.State = next
	it.UpdatedAt = time.Now()

	if err := localStore.Save(ctx, it); err != nil {
		return fmt.Errorf("commit local state for %s: %w", it.ItemID, err)
	}

	fields := make(map[string]any, len(dashboardFields)+1)
	for k, v := range dashboardFields {
		fields[k] = v
	}
	fields["status"] = string(DashboardStatusFor(next))

	if err := dash.UpdateFields(ctx, it.ItemID, fields, string(expectedDashboardStatus)); err != nil {
		return fmt.Errorf("commit dashboard fields for %s: %w", it.ItemID, err)
	}
	return nil
}

// CommitError is the failure-path counterpart of Commit: it advances the
// item to the state NextStateOnError resolves to and always surfaces the
// classified error on the dashboard.
func CommitError(ctx context.Context, localStore *Store, dash *dashboard.Adapter, it *domain.Item, errInfo domain.ErrorInfo, next domain.State, expectedDashboardStatus dashboard.Status) error {
	it.Error = &errInfo
	return Commit(ctx, localStore, dash, it, next, map[string]any{
		"error": fmt.Sprintf("%s: %s", errInfo.Kind, errInfo.Message),
	}, expectedDashboardStatus)
}
