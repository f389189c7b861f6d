package adapters

import (
	"context"
	"fmt"

	"github.com/shortforge/contentpipe/internal/artifactstore"
	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/pipelineerr"
	"github.com/shortforge/contentpipe/internal/platform/logger"
	"github.com/shortforge/contentpipe/internal/resilient"
	"github.com/shortforge/contentpipe/internal/validation"
)

// ScriptingAdapter turns an item's concept text into a ~160-word script.
type ScriptingAdapter struct {
	base
	TextGen TextGenClient
}

func NewScriptingAdapter(caller *resilient.Caller, store *artifactstore.Store, gen TextGenClient, log *logger.Logger) *ScriptingAdapter {
	return &ScriptingAdapter{base: newBase(caller, store, log, string(domain.StageScripting)), TextGen: gen}
}

// Execute implements registry.Execute.
func (a *ScriptingAdapter) Execute(ctx context.Context, item *domain.Item) (Result, error) {
	seed := item.Fingerprint(string(domain.StageScripting))
	raw, err := a.Caller.Do(ctx, "textgen", string(domain.StageScripting), domain.OpGeneration,
		resilient.DefaultRetryPolicy(4), seed,
		func(cctx context.Context, key string) (any, error) {
			return a.TextGen.GenerateScript(cctx, item.ConceptText)
		})
	if err != nil {
		return Result{}, err
	}
	script, _ := raw.(string)
	if err := validation.CheckDangerous("script", script); err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StageScripting), err.Error(), err)
	}
	if err := validation.CheckLength("script", script, 50, 4000); err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StageScripting), err.Error(), err)
	}

	acq, err := a.Store.Acquire(domain.ArtifactScript, item.ItemID, ".txt")
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageScripting), fmt.Sprintf("acquire script artifact: %v", err), err)
	}
	path, hash, size, err := acq.WriteAndFinalize([]byte(script))
	acq.Abort()
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageScripting), fmt.Sprintf("finalize script artifact: %v", err), err)
	}

	artifact := domain.Artifact{
		ItemID: item.ItemID, Kind: domain.ArtifactScript, Path: path,
		SizeBytes: size, SHA256: hash, ProducedBy: string(domain.StageScripting),
	}
	return Result{
		Artifacts:    map[domain.ArtifactKind]domain.Artifact{domain.ArtifactScript: artifact},
		FieldUpdates: map[string]any{"script": script},
	}, nil
}
