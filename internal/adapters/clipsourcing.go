package adapters

import (
	"context"
	"fmt"

	"github.com/shortforge/contentpipe/internal/artifactstore"
	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/pipelineerr"
	"github.com/shortforge/contentpipe/internal/platform/logger"
	"github.com/shortforge/contentpipe/internal/resilient"
)

// downloadResult is the Caller.Do payload for one clip download.
type downloadResult struct {
	content []byte
	ext     string
}

// ClipSourcingAdapter searches for and downloads stock footage: a
// search-class lookup followed by download-class transfers. Clips are a
// one-to-many artifact kind: the
// finalized files live under the store's stock_clip/<item_id>/ directory,
// enumerated later by artifactstore.Store.ListClips rather than tracked
// individually in Item.Artifacts, since that map holds one path per kind.
type ClipSourcingAdapter struct {
	base
	Search       StockSearchClient
	Downloader   Downloader
	ClipsPerItem int
}

func NewClipSourcingAdapter(caller *resilient.Caller, store *artifactstore.Store, search StockSearchClient, dl Downloader, clipsPerItem int, log *logger.Logger) *ClipSourcingAdapter {
	if clipsPerItem <= 0 {
		clipsPerItem = 3
	}
	return &ClipSourcingAdapter{
		base: newBase(caller, store, log, string(domain.StageSourcingClips)),
		Search: search, Downloader: dl, ClipsPerItem: clipsPerItem,
	}
}

func (a *ClipSourcingAdapter) Execute(ctx context.Context, item *domain.Item) (Result, error) {
	keyword := item.ConceptText
	seed := item.Fingerprint(string(domain.StageSourcingClips))
	raw, err := a.Caller.Do(ctx, "stock-search", string(domain.StageSourcingClips), domain.OpSearch,
		resilient.DefaultRetryPolicy(4), seed,
		func(cctx context.Context, key string) (any, error) {
			return a.Search.Search(cctx, keyword, a.ClipsPerItem)
		})
	if err != nil {
		return Result{}, err
	}
	candidates, _ := raw.([]ClipCandidate)

	portrait := make([]ClipCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Orientation == "portrait" && c.DurationS > 0 {
			portrait = append(portrait, c)
		}
	}
	if len(portrait) == 0 {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StageSourcingClips), "no portrait-orientation candidates returned", nil)
	}
	if len(portrait) > a.ClipsPerItem {
		portrait = portrait[:a.ClipsPerItem]
	}

	// A re-run supersedes the previous clip set: clear it before the new
	// downloads land so assembly never concats stale and fresh clips.
	if cleared, clearErr := a.Store.ClearKind(domain.ArtifactStockClip, item.ItemID); clearErr != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageSourcingClips), fmt.Sprintf("clear superseded clips: %v", clearErr), clearErr)
	} else if cleared > 0 && a.Log != nil {
		a.Log.Info("clip sourcing: removed superseded clips", "count", cleared)
	}

	written := 0
	var first *domain.Artifact
	for i, c := range portrait {
		dlSeed := fmt.Sprintf("%s-%d", seed, i)
		dlRaw, dlErr := a.Caller.Do(ctx, "stock-download", string(domain.StageSourcingClips), domain.OpDownload,
			resilient.DefaultRetryPolicy(4), dlSeed,
			func(cctx context.Context, key string) (any, error) {
				content, ext, e := a.Downloader.Download(cctx, c.URL)
				if e != nil {
					return nil, e
				}
				return downloadResult{content: content, ext: ext}, nil
			})
		if dlErr != nil {
			if a.Log != nil {
				a.Log.Warn("clip sourcing: download failed, skipping candidate", "url", c.URL, "error", dlErr)
			}
			continue
		}
		dl, _ := dlRaw.(downloadResult)
		if len(dl.content) == 0 {
			continue
		}
		acq, acqErr := a.Store.Acquire(domain.ArtifactStockClip, item.ItemID, extOrDefault(dl.ext, ".mp4"))
		if acqErr != nil {
			if a.Log != nil {
				a.Log.Warn("clip sourcing: acquire failed", "error", acqErr)
			}
			continue
		}
		path, hash, size, finErr := acq.WriteAndFinalize(dl.content)
		acq.Abort()
		if finErr != nil {
			if a.Log != nil {
				a.Log.Warn("clip sourcing: finalize failed", "error", finErr)
			}
			continue
		}
		if first == nil {
			first = &domain.Artifact{
				ItemID: item.ItemID, Kind: domain.ArtifactStockClip, Path: path,
				SizeBytes: size, SHA256: hash, ProducedBy: string(domain.StageSourcingClips),
			}
		}
		written++
	}
	if written == 0 || first == nil {
		return Result{}, pipelineerr.New(pipelineerr.KindTransient, string(domain.StageSourcingClips), "every candidate download failed", nil)
	}

	// The item record tracks one representative clip per kind; assembly
	// enumerates the full set with Store.ListClips.
	return Result{
		Artifacts: map[domain.ArtifactKind]domain.Artifact{domain.ArtifactStockClip: *first},
	}, nil
}
