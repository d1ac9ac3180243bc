// Package registry keeps a bounded memory of recently performed operation ids.
package registry

import (
	"context"
	"sync"
)

// DefaultLimit is the size of one generation.
const DefaultLimit = 100

// Register is a set of ids split into two generations of at most limit
// entries each. Ids fill the older generation first, then the newer one.
// When both are full the older generation is dropped wholesale, the newer
// one takes its place and a fresh generation opens. It therefore remembers
// at least limit and at most 2*limit ids.
//
// Register is safe for concurrent use.
type Register struct {
	mu    sync.Mutex
	limit int
	older map[string]struct{}
	newer map[string]struct{}
}

// New creates a Register. A non-positive limit falls back to DefaultLimit.
func New(limit int) *Register {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Register{
		limit: limit,
		older: make(map[string]struct{}, limit),
		newer: make(map[string]struct{}, limit),
	}
}

// Verify records id and returns true if it is new. An id already present in
// either generation returns false and is not recorded again.
func (r *Register) Verify(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.contains(id) {
		return false, nil
	}
	r.add(id)
	return true, nil
}

// Release forgets id.
func (r *Register) Release(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.older, id)
	delete(r.newer, id)
	return nil
}

// Len returns how many ids are currently remembered.
func (r *Register) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.older) + len(r.newer)
}

func (r *Register) contains(id string) bool {
	if _, ok := r.older[id]; ok {
		return true
	}
	_, ok := r.newer[id]
	return ok
}

func (r *Register) add(id string) {
	switch {
	case len(r.older) < r.limit:
		r.older[id] = struct{}{}
	case len(r.newer) < r.limit:
		r.newer[id] = struct{}{}
	default:
		r.older = r.newer
		r.newer = make(map[string]struct{}, r.limit)
		r.newer[id] = struct{}{}
	}
}
