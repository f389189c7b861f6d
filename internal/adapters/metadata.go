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
	"github.com/shortforge/contentpipe/internal/validation"
)

// metadataDoc is the shape persisted as the metadata_json artifact.
type metadataDoc struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// MetadataAdapter synthesizes the publish-time title/description/tags from
// the finalized script.
type MetadataAdapter struct {
	base
	TextGen TextGenClient
}

func NewMetadataAdapter(caller *resilient.Caller, store *artifactstore.Store, gen TextGenClient, log *logger.Logger) *MetadataAdapter {
	return &MetadataAdapter{base: newBase(caller, store, log, string(domain.StageMetadata)), TextGen: gen}
}

func (a *MetadataAdapter) Execute(ctx context.Context, item *domain.Item) (Result, error) {
	scriptPath, ok := item.Artifacts[string(domain.ArtifactScript)]
	if !ok || scriptPath == "" {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StageMetadata), "required input missing: script artifact", nil)
	}
	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageMetadata), fmt.Sprintf("read script artifact: %v", err), err)
	}

	seed := item.Fingerprint(string(domain.StageMetadata))
	raw, err := a.Caller.Do(ctx, "textgen", string(domain.StageMetadata), domain.OpGeneration,
		resilient.DefaultRetryPolicy(4), seed,
		func(cctx context.Context, key string) (any, error) {
			title, desc, tags, e := a.TextGen.GenerateMetadata(cctx, string(script))
			if e != nil {
				return nil, e
			}
			return metadataDoc{Title: title, Description: desc, Tags: tags}, nil
		})
	if err != nil {
		return Result{}, err
	}
	doc, _ := raw.(metadataDoc)
	if err := validation.CheckDangerous("title", doc.Title); err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StageMetadata), err.Error(), err)
	}
	if err := validation.CheckLength("title", doc.Title, 1, 100); err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StageMetadata), err.Error(), err)
	}
	if err := validation.CheckDangerous("description", doc.Description); err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StageMetadata), err.Error(), err)
	}
	for _, tag := range doc.Tags {
		if err := validation.CheckDangerous("tag", tag); err != nil {
			return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StageMetadata), err.Error(), err)
		}
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindUnexpected, string(domain.StageMetadata), fmt.Sprintf("marshal metadata: %v", err), err)
	}
	acq, err := a.Store.Acquire(domain.ArtifactMetadataJSON, item.ItemID, ".json")
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageMetadata), fmt.Sprintf("acquire metadata artifact: %v", err), err)
	}
	path, hash, size, err := acq.WriteAndFinalize(payload)
	acq.Abort()
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageMetadata), fmt.Sprintf("finalize metadata artifact: %v", err), err)
	}

	artifact := domain.Artifact{
		ItemID: item.ItemID, Kind: domain.ArtifactMetadataJSON, Path: path,
		SizeBytes: size, SHA256: hash, ProducedBy: string(domain.StageMetadata),
	}
	return Result{
		Artifacts:    map[domain.ArtifactKind]domain.Artifact{domain.ArtifactMetadataJSON: artifact},
		FieldUpdates: map[string]any{},
	}, nil
}
