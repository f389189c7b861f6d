package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shortforge/contentpipe/internal/artifactstore"
	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/pipelineerr"
	"github.com/shortforge/contentpipe/internal/platform/logger"
	"github.com/shortforge/contentpipe/internal/resilient"
)

// publishResult is the Caller.Do payload for the upload call.
type publishResult struct {
	url string
}

// PublishingAdapter uploads the captioned video and its metadata to the
// publishing target. Auth token construction is the concrete Publisher's
// concern; this adapter only supplies the idempotency key and
// interprets the classified result.
type PublishingAdapter struct {
	base
	Publisher   Publisher
	MadeForKids bool
	CategoryID  int
}

func NewPublishingAdapter(caller *resilient.Caller, store *artifactstore.Store, pub Publisher, madeForKids bool, categoryID int, log *logger.Logger) *PublishingAdapter {
	return &PublishingAdapter{
		base:        newBase(caller, store, log, string(domain.StagePublishing)),
		Publisher:   pub,
		MadeForKids: madeForKids,
		CategoryID:  categoryID,
	}
}

func (a *PublishingAdapter) Execute(ctx context.Context, item *domain.Item) (Result, error) {
	videoPath, ok := item.Artifacts[string(domain.ArtifactCaptionedVideo)]
	if !ok || videoPath == "" {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StagePublishing), "required input missing: captioned_video artifact", nil)
	}
	metaPath, ok := item.Artifacts[string(domain.ArtifactMetadataJSON)]
	if !ok || metaPath == "" {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StagePublishing), "required input missing: metadata_json artifact", nil)
	}
	doc, err := readMetadataDoc(metaPath)
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StagePublishing), fmt.Sprintf("read metadata artifact: %v", err), err)
	}

	seed := item.Fingerprint(string(domain.StagePublishing))
	raw, err := a.Caller.Do(ctx, "publisher", string(domain.StagePublishing), domain.OpAPI,
		resilient.DefaultRetryPolicy(3), seed,
		func(cctx context.Context, key string) (any, error) {
			url, e := a.Publisher.Upload(cctx, videoPath, doc.Title, doc.Description, doc.Tags, a.MadeForKids, a.CategoryID, key)
			if e != nil {
				return nil, e
			}
			return publishResult{url: url}, nil
		})
	if err != nil {
		return Result{}, err
	}
	res, _ := raw.(publishResult)
	if res.url == "" {
		return Result{}, pipelineerr.New(pipelineerr.KindUnexpected, string(domain.StagePublishing), "publisher returned empty publication url", nil)
	}

	item.PublicationURL = res.url
	return Result{
		FieldUpdates: map[string]any{"published_url": res.url},
	}, nil
}

func readMetadataDoc(path string) (metadataDoc, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return metadataDoc{}, err
	}
	var doc metadataDoc
	if err := json.Unmarshal(content, &doc); err != nil {
		return metadataDoc{}, err
	}
	return doc, nil
}
