package adapters

import (
	"context"
	"fmt"
	"os"

	"github.com/shortforge/contentpipe/internal/artifactstore"
	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/pipelineerr"
	"github.com/shortforge/contentpipe/internal/platform/logger"
	"github.com/shortforge/contentpipe/internal/resilient"
)

// CaptioningAdapter recovers word-level timing between the script and
// narration audio, then burns captions into the assembled video. The
// alignment is a generation-class call; the burn-in itself is a local
// child process like Assembling.
type CaptioningAdapter struct {
	base
	Aligner CaptionAligner
	Muxer   Muxer
}

func NewCaptioningAdapter(caller *resilient.Caller, store *artifactstore.Store, aligner CaptionAligner, muxer Muxer, log *logger.Logger) *CaptioningAdapter {
	return &CaptioningAdapter{
		base:    newBase(caller, store, log, string(domain.StageCaptioning)),
		Aligner: aligner,
		Muxer:   muxer,
	}
}

func (a *CaptioningAdapter) Execute(ctx context.Context, item *domain.Item) (Result, error) {
	scriptPath, ok := item.Artifacts[string(domain.ArtifactScript)]
	if !ok || scriptPath == "" {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StageCaptioning), "required input missing: script artifact", nil)
	}
	audioPath, ok := item.Artifacts[string(domain.ArtifactNarration)]
	if !ok || audioPath == "" {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StageCaptioning), "required input missing: narration artifact", nil)
	}
	videoPath, ok := item.Artifacts[string(domain.ArtifactAssembledVideo)]
	if !ok || videoPath == "" {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StageCaptioning), "required input missing: assembled_video artifact", nil)
	}

	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageCaptioning), fmt.Sprintf("read script artifact: %v", err), err)
	}
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageCaptioning), fmt.Sprintf("read narration artifact: %v", err), err)
	}

	seed := item.Fingerprint(string(domain.StageCaptioning))
	raw, err := a.Caller.Do(ctx, "caption-align", string(domain.StageCaptioning), domain.OpGeneration,
		resilient.DefaultRetryPolicy(3), seed,
		func(cctx context.Context, key string) (any, error) {
			return a.Aligner.Align(cctx, string(script), audio)
		})
	if err != nil {
		return Result{}, err
	}
	words, _ := raw.([]WordTiming)
	if len(words) == 0 {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StageCaptioning), "aligner returned no word timings", nil)
	}

	acq, err := a.Store.Acquire(domain.ArtifactCaptionedVideo, item.ItemID, ".mp4")
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageCaptioning), fmt.Sprintf("acquire captioned-video artifact: %v", err), err)
	}
	defer acq.Abort()

	if err := a.Muxer.BurnCaptions(ctx, videoPath, words, acq.TempPath()); err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindUnexpected, string(domain.StageCaptioning), fmt.Sprintf("burn captions: %v", err), err)
	}
	content, err := os.ReadFile(acq.TempPath())
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageCaptioning), fmt.Sprintf("read muxer output: %v", err), err)
	}
	path, hash, size, err := acq.WriteAndFinalize(content)
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageCaptioning), fmt.Sprintf("finalize captioned-video artifact: %v", err), err)
	}

	artifact := domain.Artifact{
		ItemID: item.ItemID, Kind: domain.ArtifactCaptionedVideo, Path: path,
		SizeBytes: size, SHA256: hash, ProducedBy: string(domain.StageCaptioning),
	}
	return Result{
		Artifacts:    map[domain.ArtifactKind]domain.Artifact{domain.ArtifactCaptionedVideo: artifact},
		FieldUpdates: map[string]any{"video_path": path},
	}, nil
}
