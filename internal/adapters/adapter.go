// Package adapters holds the ten thin stage adapters: one per pipeline
// step, each collaborator-backed one translating Item + inputs → resilient
// call → artifact; the approval watcher only reads the dashboard. Adapters carry no process-wide state; every collaborator is
// injected at construction.
package adapters

import (
	"github.com/shortforge/contentpipe/internal/artifactstore"
	"github.com/shortforge/contentpipe/internal/platform/logger"
	"github.com/shortforge/contentpipe/internal/registry"
	"github.com/shortforge/contentpipe/internal/resilient"
)

// Result is the registry's stage-execution result type, re-exported so
// adapter files don't need a second import for the same thing.
type Result = registry.Result

// WordTiming is one word's position in narration audio, the shared
// currency between narration (which may emit it directly) and caption
// timing (which derives it from script + audio).
type WordTiming struct {
	Word      string
	StartSec  float64
	EndSec    float64
}

// ClipCandidate is one stock-footage search result.
type ClipCandidate struct {
	URL        string
	Width      int
	Height     int
	DurationS  float64
	Orientation string // "portrait" | "landscape" | "square"
}

// TrendCandidate is one trend-ingest search result.
type TrendCandidate struct {
	Title string
	Score int
}

// base is embedded by every adapter: the resilient caller and artifact
// store every stage needs, plus a stage-scoped logger.
type base struct {
	Caller *resilient.Caller
	Store  *artifactstore.Store
	Log    *logger.Logger
}

func newBase(caller *resilient.Caller, store *artifactstore.Store, log *logger.Logger, stage string) base {
	return base{Caller: caller, Store: store, Log: log.With("stage", stage)}
}

// extOrDefault guards against a collaborator returning an empty file
// extension.
func extOrDefault(ext, def string) string {
	if ext == "" {
		return def
	}
	return ext
}
