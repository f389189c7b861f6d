package adapters

import "context"

// TextGenClient is the text-generation collaborator: title
// generation, ~160-word script synthesis, and title/description/tag
// metadata, all under the `generation` operation class.
type TextGenClient interface {
	GenerateTitle(ctx context.Context, conceptText string) (string, error)
	GenerateScript(ctx context.Context, conceptText string) (string, error)
	GenerateMetadata(ctx context.Context, script string) (title, description string, tags []string, err error)
}

// TTSClient is the text-to-speech collaborator: synthesizes mono narration
// audio and either returns word timings directly or leaves them to be
// recovered by a CaptionAligner.
type TTSClient interface {
	Synthesize(ctx context.Context, script string) (audio []byte, mimeExt string, timings []WordTiming, err error)
}

// TrendSource is the optional Reddit-like trend-ingest collaborator. A
// nil TrendSource, or one whose error classifies as auth or client (a 403,
// for instance), is treated as "zero candidates this tick", not
// a stage failure.
type TrendSource interface {
	ListTrends(ctx context.Context, minScore int) ([]TrendCandidate, error)
}

// StockSearchClient searches for stock footage by keyword.
type StockSearchClient interface {
	Search(ctx context.Context, keyword string, limit int) ([]ClipCandidate, error)
}

// Downloader fetches a stock clip URL in full. The stockmedia
// implementation issues one GET per clip; it neither splits the transfer
// into chunks nor resumes a partial download.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, string, error) // content, file extension
}

// Muxer is the media-muxing child-process collaborator: concat/trim/scale,
// mux audio, and burn subtitles. It has no operation class of
// its own; cancellation is honored by killing the child process.
type Muxer interface {
	AssembleVideo(ctx context.Context, clipPaths []string, audioPath string, targetDurationSec float64, outPath string) error
	BurnCaptions(ctx context.Context, videoPath string, words []WordTiming, outPath string) error
}

// CaptionAligner recovers word-level timing between a script and its
// narration audio. The captioning stage calls it on every run; word
// timings returned by the TTS collaborator are not used for captions.
type CaptionAligner interface {
	Align(ctx context.Context, script string, audio []byte) ([]WordTiming, error)
}

// Publisher performs the authenticated upload. The publish implementation
// sends the whole video in one request; the upload is not split into chunks.
type Publisher interface {
	Upload(ctx context.Context, videoPath, title, description string, tags []string, madeForKids bool, categoryID int, idempotencyKey string) (publicationURL string, err error)
}
