// Package registry is the declarative stage graph: the single
// source of truth for which artifact kinds and dashboard fields a stage
// consumes and produces, its precondition, idempotency seed, retry budget,
// and operation class. It is the dispatch table the Work Queue and
// Supervisor use to turn "item in state X" into "run stage Y".
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/shortforge/contentpipe/internal/domain"
)

// Result is what a stage adapter hands back on success: the artifacts it
// finalized and any dashboard field writes that should ride along with the
// state transition.
type Result struct {
	Artifacts    map[domain.ArtifactKind]domain.Artifact
	FieldUpdates map[string]any
}

// Execute is the uniform shape every stage adapter implements:
// given an item and a cancellable context, perform the work and return the
// artifacts/field updates to commit, or a classified error.
type Execute func(ctx context.Context, item *domain.Item) (Result, error)

// Stage is one node of the pipeline graph.
type Stage struct {
	Name            domain.StageName
	RequiredInputs  []domain.ArtifactKind
	Produces        []domain.ArtifactKind
	Precondition    func(item *domain.Item) bool
	IdempotencySeed func(item *domain.Item) string
	MaxAttempts     int
	OperationClass  domain.OperationClass
	DurationBucket  domain.DurationBucket
	Run             Execute
}

// Registry is a concurrency-safe stage_name -> Stage map. Registration is
// expected to happen once at process startup; lookups happen concurrently
// from every stage worker.
type Registry struct {
	mu     sync.RWMutex
	stages map[domain.StageName]*Stage
}

func New() *Registry {
	return &Registry{stages: map[domain.StageName]*Stage{}}
}

// Register adds a stage, rejecting a nil stage, an empty name, a nil Run,
// or a duplicate registration: each is a wiring error that must be caught
// at startup, not discovered mid-pipeline.
func (r *Registry) Register(s *Stage) error {
	if s == nil {
		return fmt.Errorf("registry: nil stage")
	}
	if s.Name == "" {
		return fmt.Errorf("registry: stage name is empty")
	}
	if s.Run == nil {
		return fmt.Errorf("registry: stage %q has no Run implementation", s.Name)
	}
	if s.MaxAttempts <= 0 {
		return fmt.Errorf("registry: stage %q has non-positive max_attempts", s.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stages[s.Name]; exists {
		return fmt.Errorf("registry: stage %q already registered", s.Name)
	}
	r.stages[s.Name] = s
	return nil
}

// Get returns the stage registered for name.
func (r *Registry) Get(name domain.StageName) (*Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stages[name]
	return s, ok
}

// Names lists every registered stage, for health reporting and worker-pool
// construction.
func (r *Registry) Names() []domain.StageName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.StageName, 0, len(r.stages))
	for n := range r.stages {
		out = append(out, n)
	}
	return out
}
