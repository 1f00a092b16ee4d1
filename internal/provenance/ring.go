package provenance

import (
	"sync"
	"time"
)

// DefaultRingSize bounds the in-memory provenance buffer.
const DefaultRingSize = 256

// EntryKind discriminates ring entries.
type EntryKind string

const (
	// EntryStore is a store-task event.
	EntryStore EntryKind = "store"
	// EntryFusion is a fusion-stage event.
	EntryFusion EntryKind = "fusion"
)

// Entry is one recorded provenance event.
type Entry struct {
	Time   time.Time   `json:"time"`
	Kind   EntryKind   `json:"kind"`
	Store  StoreEvent  `json:"store,omitempty"`
	Fusion FusionEvent `json:"fusion,omitempty"`
}

// Ring is a bounded in-memory sink holding the most recent events.
// Safe for concurrent use.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewRing creates a ring sink with the given capacity (DefaultRingSize if <= 0).
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{entries: make([]Entry, size)}
}

// StoreQueried implements Sink.
func (r *Ring) StoreQueried(ev StoreEvent) {
	r.add(Entry{Time: time.Now(), Kind: EntryStore, Store: ev})
}

// FusionApplied implements Sink.
func (r *Ring) FusionApplied(ev FusionEvent) {
	r.add(Entry{Time: time.Now(), Kind: EntryFusion, Fusion: ev})
}

func (r *Ring) add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = e
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
}

// Recent returns the buffered events, oldest first.
func (r *Ring) Recent() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]Entry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}
