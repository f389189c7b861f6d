package adapters

import (
	"context"
	"fmt"
	"os"

	"github.com/shortforge/contentpipe/internal/artifactstore"
	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/pipelineerr"
	"github.com/shortforge/contentpipe/internal/platform/logger"
)

// AssemblingAdapter muxes the sourced clips and narration audio into one
// video. Assembly has no external collaborator call of its own
// (the Muxer is a local child process), so it runs outside the Resilient
// Call Layer's breaker/bulkhead machinery but still honors ctx cancellation
// by killing the child process.
type AssemblingAdapter struct {
	base
	Muxer             Muxer
	TargetDurationSec float64
}

func NewAssemblingAdapter(store *artifactstore.Store, muxer Muxer, targetDurationSec float64, log *logger.Logger) *AssemblingAdapter {
	return &AssemblingAdapter{
		base:              newBase(nil, store, log, string(domain.StageAssembling)),
		Muxer:             muxer,
		TargetDurationSec: targetDurationSec,
	}
}

func (a *AssemblingAdapter) Execute(ctx context.Context, item *domain.Item) (Result, error) {
	audioPath, ok := item.Artifacts[string(domain.ArtifactNarration)]
	if !ok || audioPath == "" {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StageAssembling), "required input missing: narration artifact", nil)
	}
	clipPaths, err := a.Store.ListClips(item.ItemID)
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageAssembling), fmt.Sprintf("list clips: %v", err), err)
	}
	if len(clipPaths) == 0 {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StageAssembling), "no stock clips finalized for item", nil)
	}

	acq, err := a.Store.Acquire(domain.ArtifactAssembledVideo, item.ItemID, ".mp4")
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageAssembling), fmt.Sprintf("acquire assembled-video artifact: %v", err), err)
	}
	defer acq.Abort()

	if err := a.Muxer.AssembleVideo(ctx, clipPaths, audioPath, a.TargetDurationSec, acq.TempPath()); err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindUnexpected, string(domain.StageAssembling), fmt.Sprintf("assemble video: %v", err), err)
	}
	content, err := os.ReadFile(acq.TempPath())
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageAssembling), fmt.Sprintf("read muxer output: %v", err), err)
	}
	path, hash, size, err := acq.WriteAndFinalize(content)
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageAssembling), fmt.Sprintf("finalize assembled-video artifact: %v", err), err)
	}

	artifact := domain.Artifact{
		ItemID: item.ItemID, Kind: domain.ArtifactAssembledVideo, Path: path,
		SizeBytes: size, SHA256: hash, ProducedBy: string(domain.StageAssembling),
	}
	return Result{
		Artifacts:    map[domain.ArtifactKind]domain.Artifact{domain.ArtifactAssembledVideo: artifact},
		FieldUpdates: map[string]any{"video_path": path},
	}, nil
}
