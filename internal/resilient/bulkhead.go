package resilient

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BulkheadRegistry caps concurrent in-flight calls per service, so one
// overloaded collaborator cannot starve the others of worker goroutines.
type BulkheadRegistry struct {
	mu    sync.Mutex
	sems  map[string]*semaphore.Weighted
	limit int64
}

func NewBulkheadRegistry(limitPerService int) *BulkheadRegistry {
	if limitPerService <= 0 {
		limitPerService = 8
	}
	return &BulkheadRegistry{sems: map[string]*semaphore.Weighted{}, limit: int64(limitPerService)}
}

func (r *BulkheadRegistry) get(service string) *semaphore.Weighted {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sems[service]
	if !ok {
		s = semaphore.NewWeighted(r.limit)
		r.sems[service] = s
	}
	return s
}

// Acquire blocks until a slot for service is free or ctx is done (the
// caller's queue timeout).
func (r *BulkheadRegistry) Acquire(ctx context.Context, service string) error {
	return r.get(service).Acquire(ctx, 1)
}

func (r *BulkheadRegistry) Release(service string) {
	r.get(service).Release(1)
}
