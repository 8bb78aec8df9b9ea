// Package hashring implements the key hasher and weighted bucket ring used
// to pick a server for a qualified key (spec components: key hasher,
// bucket ring). It deliberately does not implement virtual-node consistent
// hashing: each server occupies exactly `weight` consecutive slots in a
// flat array, and selection is a plain `hash mod len(buckets)` plus a
// perturbation walk on failure. That is everything the wire-compatibility
// requirement in this spec actually needs.
package hashring

import (
	"sync"
)

var _ Ring = (*BucketRing)(nil)

type (
	// Ring is the interface the client facade selects servers through.
	Ring interface {
		SetServers(entries []Entry)
		At(index int) (any, bool)
		Len() int
		Nodes() []any
		Count() int
	}

	// Entry pairs an opaque node reference with its bucket weight.
	Entry struct {
		Node   any
		Weight int
	}

	// BucketRing is a weight-replicated flat array of node references,
	// rebuilt atomically whenever the server list changes.
	BucketRing struct {
		mu      sync.RWMutex
		buckets []any
		nodes   []any
	}
)

// NewBucketRing returns an empty BucketRing.
func NewBucketRing() *BucketRing {
	return &BucketRing{}
}

// SetServers replaces the ring's contents atomically: server i appears
// exactly entries[i].Weight times, consecutively (a weight below 1 counts
// as 1). The previous bucket
// assignment is entirely discarded; only multiplicities are observable by
// callers, never ordering.
func (r *BucketRing) SetServers(entries []Entry) {
	total := 0
	for _, e := range entries {
		if e.Weight < 1 {
			e.Weight = 1
		}
		total += e.Weight
	}

	buckets := make([]any, 0, total)
	nodes := make([]any, 0, len(entries))
	for _, e := range entries {
		weight := e.Weight
		if weight < 1 {
			weight = 1
		}
		for i := 0; i < weight; i++ {
			buckets = append(buckets, e.Node)
		}
		nodes = append(nodes, e.Node)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.buckets = buckets
	r.nodes = nodes
}

// At returns the node occupying bucket index (wrapped modulo the ring
// length). It reports false for an empty ring.
func (r *BucketRing) At(index int) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.buckets) == 0 {
		return nil, false
	}
	i := index % len(r.buckets)
	if i < 0 {
		i += len(r.buckets)
	}
	return r.buckets[i], true
}

// Len returns the current number of buckets (sum of server weights).
func (r *BucketRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buckets)
}

// Nodes returns every distinct server currently in the ring, one entry per
// server regardless of its weight.
func (r *BucketRing) Nodes() []any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]any, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Count returns the number of distinct servers in the ring.
func (r *BucketRing) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
