package app

import (
	"fmt"

	"github.com/shortforge/contentpipe/internal/adapters"
	"github.com/shortforge/contentpipe/internal/artifactstore"
	"github.com/shortforge/contentpipe/internal/config"
	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/platform/logger"
	"github.com/shortforge/contentpipe/internal/registry"
	"github.com/shortforge/contentpipe/internal/resilient"
)

// stageSpec is the declarative shape buildRegistry turns into a
// registry.Stage: every worker-dispatched stage shares the same
// registration shell (max attempts, operation class, duration bucket,
// required-inputs precondition), differing only in which adapter runs.
type stageSpec struct {
	name           domain.StageName
	requiredInputs []domain.ArtifactKind
	produces       []domain.ArtifactKind
	maxAttempts    int
	class          domain.OperationClass
	bucket         domain.DurationBucket
	run            registry.Execute
}

// buildRegistry wires the seven worker-dispatched stages into a
// registry.Registry using the already-constructed collaborator set.
// Ideation, trend-ingest, and approval are discovery-time pseudo-stages and
// are not registered here; see app.New's Discovery wiring.
func buildRegistry(cfg config.Config, caller *resilient.Caller, store *artifactstore.Store, collab collaboratorSet, log *logger.Logger) (*registry.Registry, error) {
	scripting := adapters.NewScriptingAdapter(caller, store, collab.textGen, log)
	narrating := adapters.NewNarrationAdapter(caller, store, collab.tts, log)
	sourcingClips := adapters.NewClipSourcingAdapter(caller, store, collab.stock, collab.stock, cfg.ClipsPerItem, log)
	assembling := adapters.NewAssemblingAdapter(store, collab.muxer, cfg.TargetDurationSec, log)
	captioning := adapters.NewCaptioningAdapter(caller, store, collab.aligner, collab.muxer, log)
	metadata := adapters.NewMetadataAdapter(caller, store, collab.textGen, log)
	publishing := adapters.NewPublishingAdapter(caller, store, collab.publisher, cfg.PublishMadeForKids, cfg.PublishCategoryID, log)

	specs := []stageSpec{
		{
			name: domain.StageScripting, requiredInputs: nil,
			produces: []domain.ArtifactKind{domain.ArtifactScript},
			maxAttempts: 4, class: domain.OpGeneration, bucket: domain.DurationShort,
			run: scripting.Execute,
		},
		{
			name: domain.StageNarrating, requiredInputs: []domain.ArtifactKind{domain.ArtifactScript},
			produces: []domain.ArtifactKind{domain.ArtifactNarration},
			maxAttempts: 4, class: domain.OpGeneration, bucket: domain.DurationShort,
			run: narrating.Execute,
		},
		{
			name: domain.StageSourcingClips, requiredInputs: []domain.ArtifactKind{domain.ArtifactNarration},
			produces: []domain.ArtifactKind{domain.ArtifactStockClip},
			maxAttempts: 4, class: domain.OpSearch, bucket: domain.DurationShort,
			run: sourcingClips.Execute,
		},
		{
			name: domain.StageAssembling, requiredInputs: []domain.ArtifactKind{domain.ArtifactNarration, domain.ArtifactStockClip},
			produces: []domain.ArtifactKind{domain.ArtifactAssembledVideo},
			maxAttempts: 3, class: domain.OpAPI, bucket: domain.DurationLong,
			run: assembling.Execute,
		},
		{
			name: domain.StageCaptioning, requiredInputs: []domain.ArtifactKind{domain.ArtifactScript, domain.ArtifactNarration, domain.ArtifactAssembledVideo},
			produces: []domain.ArtifactKind{domain.ArtifactCaptionedVideo},
			maxAttempts: 3, class: domain.OpGeneration, bucket: domain.DurationLong,
			run: captioning.Execute,
		},
		{
			name: domain.StageMetadata, requiredInputs: []domain.ArtifactKind{domain.ArtifactScript},
			produces: []domain.ArtifactKind{domain.ArtifactMetadataJSON},
			maxAttempts: 4, class: domain.OpGeneration, bucket: domain.DurationShort,
			run: metadata.Execute,
		},
		{
			name: domain.StagePublishing, requiredInputs: []domain.ArtifactKind{domain.ArtifactCaptionedVideo, domain.ArtifactMetadataJSON},
			produces: nil,
			maxAttempts: 3, class: domain.OpAPI, bucket: domain.DurationLong,
			run: publishing.Execute,
		},
	}

	reg := registry.New()
	for _, spec := range specs {
		spec := spec
		s := &registry.Stage{
			Name:            spec.name,
			RequiredInputs:  spec.requiredInputs,
			Produces:        spec.produces,
			Precondition:    func(it *domain.Item) bool { return hasAll(it, spec.requiredInputs) },
			IdempotencySeed: func(it *domain.Item) string { return it.Fingerprint(string(spec.name)) },
			MaxAttempts:     spec.maxAttempts,
			OperationClass:  spec.class,
			DurationBucket:  spec.bucket,
			Run:             spec.run,
		}
		if err := reg.Register(s); err != nil {
			return nil, fmt.Errorf("register stage %q: %w", spec.name, err)
		}
	}
	return reg, nil
}

// hasAll reports whether item already carries a finalized artifact for
// every kind in want; an empty want list is vacuously satisfied.
func hasAll(item *domain.Item, want []domain.ArtifactKind) bool {
	for _, k := range want {
		if item.Artifacts[string(k)] == "" {
			return false
		}
	}
	return true
}
