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

// maxAudioBytes bounds a narration file at roughly 20 minutes of mono
// 64kbps audio, well above any realistic ~160-word narration; this guards
// against a misbehaving TTS collaborator streaming an unbounded response.
const maxAudioBytes = 40 * 1024 * 1024

// ttsResult is the Caller.Do payload for one Synthesize call.
type ttsResult struct {
	audio   []byte
	ext     string
	timings []WordTiming
}

// NarrationAdapter synthesizes narration audio from a finalized script.
type NarrationAdapter struct {
	base
	TTS TTSClient
}

func NewNarrationAdapter(caller *resilient.Caller, store *artifactstore.Store, tts TTSClient, log *logger.Logger) *NarrationAdapter {
	return &NarrationAdapter{base: newBase(caller, store, log, string(domain.StageNarrating)), TTS: tts}
}

func (a *NarrationAdapter) Execute(ctx context.Context, item *domain.Item) (Result, error) {
	scriptPath, ok := item.Artifacts[string(domain.ArtifactScript)]
	if !ok || scriptPath == "" {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StageNarrating), "required input missing: script artifact", nil)
	}
	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageNarrating), fmt.Sprintf("read script artifact: %v", err), err)
	}

	seed := item.Fingerprint(string(domain.StageNarrating))
	raw, err := a.Caller.Do(ctx, "tts", string(domain.StageNarrating), domain.OpGeneration,
		resilient.DefaultRetryPolicy(4), seed,
		func(cctx context.Context, key string) (any, error) {
			audio, ext, timings, e := a.TTS.Synthesize(cctx, string(script))
			if e != nil {
				return nil, e
			}
			return ttsResult{audio: audio, ext: ext, timings: timings}, nil
		})
	if err != nil {
		return Result{}, err
	}
	res, _ := raw.(ttsResult)
	if len(res.audio) == 0 {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StageNarrating), "tts returned empty audio", nil)
	}
	if len(res.audio) > maxAudioBytes {
		return Result{}, pipelineerr.New(pipelineerr.KindValidation, string(domain.StageNarrating), "tts audio exceeds size bound", nil)
	}

	acq, err := a.Store.Acquire(domain.ArtifactNarration, item.ItemID, extOrDefault(res.ext, ".mp3"))
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageNarrating), fmt.Sprintf("acquire narration artifact: %v", err), err)
	}
	path, hash, size, err := acq.WriteAndFinalize(res.audio)
	acq.Abort()
	if err != nil {
		return Result{}, pipelineerr.New(pipelineerr.KindResource, string(domain.StageNarrating), fmt.Sprintf("finalize narration artifact: %v", err), err)
	}

	artifact := domain.Artifact{
		ItemID: item.ItemID, Kind: domain.ArtifactNarration, Path: path,
		SizeBytes: size, SHA256: hash, ProducedBy: string(domain.StageNarrating),
	}
	return Result{
		Artifacts:    map[domain.ArtifactKind]domain.Artifact{domain.ArtifactNarration: artifact},
		FieldUpdates: map[string]any{"audio_path": path},
	}, nil
}
