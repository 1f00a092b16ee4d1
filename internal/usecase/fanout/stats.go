package fanout

import (
	"sync"
	"time"
)

// StoreStats is a snapshot of one store's rolling statistics.
type StoreStats struct {
	TotalQueries   int64
	Successes      int64
	TotalLatencyMS int64
}

// ErrorRate returns the observed failure fraction (0 with no samples).
func (s StoreStats) ErrorRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.TotalQueries-s.Successes) / float64(s.TotalQueries)
}

// AvgLatencyMS returns the mean observed latency (0 with no samples).
func (s StoreStats) AvgLatencyMS() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.TotalLatencyMS) / float64(s.TotalQueries)
}

// storeStats is the mutable per-store record. Each store has its own lock so
// concurrent tasks for different stores never contend.
type storeStats struct {
	mu    sync.Mutex
	stats StoreStats
}

// StatRegistry tracks rolling statistics per store across requests.
type StatRegistry struct {
	mu     sync.RWMutex
	stores map[string]*storeStats
}

// NewStatRegistry creates an empty registry.
func NewStatRegistry() *StatRegistry {
	return &StatRegistry{stores: make(map[string]*storeStats)}
}

func (r *StatRegistry) get(store string) *storeStats {
	r.mu.RLock()
	ss, ok := r.stores[store]
	r.mu.RUnlock()
	if ok {
		return ss
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ss, ok = r.stores[store]; ok {
		return ss
	}
	ss = &storeStats{}
	r.stores[store] = ss
	return ss
}

// Record updates a store's statistics after a completed or failed task.
func (r *StatRegistry) Record(store string, success bool, latency time.Duration) {
	ss := r.get(store)
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.stats.TotalQueries++
	if success {
		ss.stats.Successes++
	}
	ss.stats.TotalLatencyMS += latency.Milliseconds()
}

// Snapshot returns a copy of a store's statistics.
func (r *StatRegistry) Snapshot(store string) StoreStats {
	ss := r.get(store)
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.stats
}
