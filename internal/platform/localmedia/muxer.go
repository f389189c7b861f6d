// Package localmedia implements adapters.Muxer as a thin wrapper around an
// ffmpeg child process: exec.CommandContext with a hard timeout, narrowed
// to the pipeline's concat/loop/scale-and-pad/mux-audio/burn-subtitles
// needs.
package localmedia

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shortforge/contentpipe/internal/adapters"
	"github.com/shortforge/contentpipe/internal/platform/logger"
)

// Muxer shells out to ffmpeg. exec.CommandContext ties the child process
// lifetime to ctx: cancellation kills it rather than leaving it orphaned.
type Muxer struct {
	log        *logger.Logger
	ffmpegPath string
	workRoot   string
	timeout    time.Duration
}

func New(log *logger.Logger, workRoot string, timeout time.Duration) *Muxer {
	if workRoot == "" {
		workRoot = filepath.Join(os.TempDir(), "contentpipe-media")
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Muxer{log: log.With("client", "Muxer"), ffmpegPath: "ffmpeg", workRoot: workRoot, timeout: timeout}
}

func (m *Muxer) AssertReady(ctx context.Context) error {
	if _, err := exec.LookPath(m.ffmpegPath); err != nil {
		return fmt.Errorf("missing required binary %q in PATH: %w", m.ffmpegPath, err)
	}
	return os.MkdirAll(m.workRoot, 0o755)
}

// AssembleVideo concats clipPaths in lexical path order, loops that
// sequence as needed and trims the result to targetDurationSec (or to the
// end of the audio, whichever comes first), scales-and-pads to 1080x1920,
// and muxes in audioPath. Output lands at outPath.
func (a *Muxer) AssembleVideo(ctx context.Context, clipPaths []string, audioPath string, targetDurationSec float64, outPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("assemble video: no clips")
	}
	if err := a.AssertReady(ctx); err != nil {
		return err
	}
	concatList, cleanup, err := a.writeConcatList(clipPaths)
	if err != nil {
		return err
	}
	defer cleanup()

	args := []string{
		"-y",
		"-stream_loop", "-1", "-f", "concat", "-safe", "0", "-i", concatList,
		"-i", audioPath,
		"-t", fmt.Sprintf("%.3f", targetDurationSec),
		"-vf", "scale=1080:1920:force_original_aspect_ratio=decrease,pad=1080:1920:(ow-iw)/2:(oh-ih)/2",
		"-c:v", "libx264", "-c:a", "aac", "-shortest",
		outPath,
	}
	return a.run(ctx, args)
}

// BurnCaptions hard-subs word-level timings into videoPath, writing
// outPath.
func (a *Muxer) BurnCaptions(ctx context.Context, videoPath string, words []adapters.WordTiming, outPath string) error {
	if err := a.AssertReady(ctx); err != nil {
		return err
	}
	srtPath, cleanup, err := a.writeSRT(words)
	if err != nil {
		return err
	}
	defer cleanup()

	escaped := strings.ReplaceAll(srtPath, "'", "'\\''")
	args := []string{
		"-y",
		"-i", videoPath,
		"-vf", fmt.Sprintf("subtitles='%s'", escaped),
		"-c:a", "copy",
		outPath,
	}
	return a.run(ctx, args)
}

func (a *Muxer) run(ctx context.Context, args []string) error {
	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	cmd := exec.CommandContext(runCtx, a.ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if a.log != nil {
			a.log.Warn("ffmpeg failed", "args", strings.Join(args, " "), "output", string(out), "error", err)
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, string(out))
	}
	return nil
}

func (a *Muxer) writeConcatList(clipPaths []string) (path string, cleanup func(), err error) {
	if err := os.MkdirAll(a.workRoot, 0o755); err != nil {
		return "", func() {}, err
	}
	sorted := append([]string(nil), clipPaths...)
	sort.Strings(sorted)
	var sb strings.Builder
	for _, p := range sorted {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", func() {}, err
		}
		sb.WriteString(fmt.Sprintf("file '%s'\n", strings.ReplaceAll(abs, "'", "'\\''")))
	}
	f, err := os.CreateTemp(a.workRoot, "concat-*.txt")
	if err != nil {
		return "", func() {}, err
	}
	defer f.Close()
	if _, err := f.WriteString(sb.String()); err != nil {
		os.Remove(f.Name())
		return "", func() {}, err
	}
	return f.Name(), func() { _ = os.Remove(f.Name()) }, nil
}

func (a *Muxer) writeSRT(words []adapters.WordTiming) (path string, cleanup func(), err error) {
	if err := os.MkdirAll(a.workRoot, 0o755); err != nil {
		return "", func() {}, err
	}
	var sb strings.Builder
	for i, w := range words {
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString("\n")
		sb.WriteString(srtTimestamp(w.StartSec))
		sb.WriteString(" --> ")
		sb.WriteString(srtTimestamp(w.EndSec))
		sb.WriteString("\n")
		sb.WriteString(w.Word)
		sb.WriteString("\n\n")
	}
	f, err := os.CreateTemp(a.workRoot, "captions-*.srt")
	if err != nil {
		return "", func() {}, err
	}
	defer f.Close()
	if _, err := f.WriteString(sb.String()); err != nil {
		os.Remove(f.Name())
		return "", func() {}, err
	}
	return f.Name(), func() { _ = os.Remove(f.Name()) }, nil
}

func srtTimestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := time.Duration(sec * float64(time.Second))
	h := total / time.Hour
	total -= h * time.Hour
	m := total / time.Minute
	total -= m * time.Minute
	s := total / time.Second
	total -= s * time.Second
	ms := total / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
