package app

import (
	"context"

	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/supervisor"
)

// StatusReport is the `status` CLI command's payload: per-item-state
// counts plus the supervisor's queue-depth/circuit-breaker snapshot.
type StatusReport struct {
	StateCounts map[domain.State]int
	Health      supervisor.HealthReport
}

// Status summarizes every locally tracked item's current state, for the
// `status` CLI command. It does not require the scheduler to be running.
func (a *App) Status(ctx context.Context) (StatusReport, error) {
	items, err := a.LocalStore.All(ctx)
	if err != nil {
		return StatusReport{}, err
	}
	counts := make(map[domain.State]int, len(items))
	for _, it := range items {
		counts[it.State]++
	}
	return StatusReport{StateCounts: counts, Health: a.Supervisor.Health()}, nil
}
