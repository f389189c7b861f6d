package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/shortforge/contentpipe/internal/dashboard"
	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/pipelineerr"
	"github.com/shortforge/contentpipe/internal/platform/logger"
	"github.com/shortforge/contentpipe/internal/resilient"
	"github.com/shortforge/contentpipe/internal/validation"
)

// TrendIngestAdapter is the optional discovery-time collaborator: a
// Reddit-like source of currently trending topics.
// A nil TrendSource or one that degrades (auth/client error) yields zero
// candidates for the tick rather than failing discovery.
type TrendIngestAdapter struct {
	base
	Trend     TrendSource
	Dashboard *dashboard.Adapter
	MinScore  int
}

func NewTrendIngestAdapter(caller *resilient.Caller, dash *dashboard.Adapter, trend TrendSource, minScore int, log *logger.Logger) *TrendIngestAdapter {
	return &TrendIngestAdapter{
		base:      newBase(caller, nil, log, "trend_ingest"),
		Trend:     trend,
		Dashboard: dash,
		MinScore:  minScore,
	}
}

// Ingest lists trending candidates scoring at least MinScore and appends
// each as a pending_approval row. It returns the number of rows created.
func (a *TrendIngestAdapter) Ingest(ctx context.Context) (int, error) {
	if a.Trend == nil {
		return 0, nil
	}
	seed := fmt.Sprintf("trend-ingest-%d", time.Now().UnixNano())
	raw, err := a.Caller.Do(ctx, "trend", string(domain.StageTrendIngest), domain.OpAPI,
		resilient.DefaultRetryPolicy(3), seed,
		func(cctx context.Context, key string) (any, error) {
			return a.Trend.ListTrends(cctx, a.MinScore)
		})
	if err != nil {
		kind := resilient.Classify(err)
		if pe, ok := err.(*pipelineerr.Error); ok {
			kind = pe.Kind
		}
		if kind == pipelineerr.KindAuth || kind == pipelineerr.KindClient {
			if a.Log != nil {
				a.Log.Info("trend source unavailable this tick, treating as zero candidates", "kind", kind)
			}
			return 0, nil
		}
		return 0, err
	}
	candidates, _ := raw.([]TrendCandidate)
	created := 0
	for _, c := range candidates {
		if c.Score < a.MinScore {
			continue
		}
		if err := validation.CheckDangerous("title", c.Title); err != nil {
			continue
		}
		if err := validation.CheckLength("title", c.Title, 1, 500); err != nil {
			continue
		}
		if _, err := a.Dashboard.AppendItem(ctx, string(domain.SourceSocialTrend), c.Title); err != nil {
			if a.Log != nil {
				a.Log.Warn("trend_ingest: append item failed", "error", err)
			}
			continue
		}
		created++
	}
	return created, nil
}
