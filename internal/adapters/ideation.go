package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/shortforge/contentpipe/internal/dashboard"
	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/platform/logger"
	"github.com/shortforge/contentpipe/internal/resilient"
	"github.com/shortforge/contentpipe/internal/validation"
)

// IdeationAdapter is the discovery-time collaborator that seeds the
// dashboard with fresh pending_approval rows. It is invoked by the
// supervisor's discovery tick, not dispatched through the worker pool: the
// stage-transition DAG in package statemachine only begins at approved.
type IdeationAdapter struct {
	base
	TextGen   TextGenClient
	Dashboard *dashboard.Adapter
}

func NewIdeationAdapter(caller *resilient.Caller, dash *dashboard.Adapter, gen TextGenClient, log *logger.Logger) *IdeationAdapter {
	return &IdeationAdapter{
		base:      newBase(caller, nil, log, "ideation"),
		TextGen:   gen,
		Dashboard: dash,
	}
}

// GenerateIdeas asks TextGen for count fresh titles and appends each as a
// pending_approval dashboard row, skipping (and logging) any candidate that
// fails validation rather than aborting the whole batch. It returns the
// number of rows actually created.
func (a *IdeationAdapter) GenerateIdeas(ctx context.Context, count int) (int, error) {
	created := 0
	for i := 0; i < count; i++ {
		seed := fmt.Sprintf("ideation-%d-%d", time.Now().UnixNano(), i)
		raw, err := a.Caller.Do(ctx, "textgen", string(domain.StageIdeation), domain.OpGeneration,
			resilient.DefaultRetryPolicy(3), seed,
			func(cctx context.Context, key string) (any, error) {
				return a.TextGen.GenerateTitle(cctx, "")
			})
		if err != nil {
			if a.Log != nil {
				a.Log.Warn("ideation: generate title failed", "error", err)
			}
			continue
		}
		title, _ := raw.(string)
		if err := validation.CheckDangerous("title", title); err != nil {
			if a.Log != nil {
				a.Log.Warn("ideation: rejected unsafe title", "error", err)
			}
			continue
		}
		if err := validation.CheckLength("title", title, 1, 500); err != nil {
			if a.Log != nil {
				a.Log.Warn("ideation: rejected title length", "error", err)
			}
			continue
		}
		if _, err := a.Dashboard.AppendItem(ctx, string(domain.SourceAIIdeation), title); err != nil {
			if a.Log != nil {
				a.Log.Warn("ideation: append item failed", "error", err)
			}
			continue
		}
		created++
	}
	return created, nil
}
