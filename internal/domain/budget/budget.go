// Package budget models the per-request performance budget that bounds the
// fan-out: how long, how wide, and how much to bring back.
package budget

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/memfed/internal/domain"
)

// Budget limits.
const (
	DefaultMaxLatencyMS    = 500
	MaxMaxLatencyMS        = 10_000
	DefaultMaxStores       = 4
	DefaultMaxPerStore     = 20
	MaxMaxPerStore         = 200
	DefaultMaxTotal        = 50
	MaxMaxTotal            = 500
	DefaultTimeoutBufferMS = 50
)

// Budget bounds one recall request. Read-only after construction.
type Budget struct {
	maxLatencyMS    int64
	maxStores       int
	maxPerStore     int
	maxTotal        int
	timeoutBufferMS int64
}

// New validates and normalizes a performance budget. Zero values take
// defaults; out-of-range values are clamped.
func New(maxLatencyMS int64, maxStores, maxPerStore, maxTotal int, timeoutBufferMS int64) (Budget, error) {
	if maxLatencyMS < 0 || maxStores < 0 || maxPerStore < 0 || maxTotal < 0 || timeoutBufferMS < 0 {
		return Budget{}, fmt.Errorf("%w: negative budget value", domain.ErrInvalidBudget)
	}
	if maxLatencyMS == 0 {
		maxLatencyMS = DefaultMaxLatencyMS
	}
	if maxLatencyMS > MaxMaxLatencyMS {
		maxLatencyMS = MaxMaxLatencyMS
	}
	if maxStores == 0 {
		maxStores = DefaultMaxStores
	}
	if maxPerStore == 0 {
		maxPerStore = DefaultMaxPerStore
	}
	if maxPerStore > MaxMaxPerStore {
		maxPerStore = MaxMaxPerStore
	}
	if maxTotal == 0 {
		maxTotal = DefaultMaxTotal
	}
	if maxTotal > MaxMaxTotal {
		maxTotal = MaxMaxTotal
	}
	if timeoutBufferMS == 0 {
		timeoutBufferMS = DefaultTimeoutBufferMS
	}
	if timeoutBufferMS >= maxLatencyMS {
		return Budget{}, fmt.Errorf(
			"%w: timeout buffer %dms must be below max latency %dms",
			domain.ErrInvalidBudget, timeoutBufferMS, maxLatencyMS,
		)
	}

	return Budget{
		maxLatencyMS:    maxLatencyMS,
		maxStores:       maxStores,
		maxPerStore:     maxPerStore,
		maxTotal:        maxTotal,
		timeoutBufferMS: timeoutBufferMS,
	}, nil
}

// Default returns the default budget.
func Default() Budget {
	b, _ := New(0, 0, 0, 0, 0)
	return b
}

// MaxLatencyMS returns the aggregate latency limit in milliseconds.
func (b *Budget) MaxLatencyMS() int64 { return b.maxLatencyMS }

// MaxLatency returns the aggregate latency limit as a duration.
func (b *Budget) MaxLatency() time.Duration {
	return time.Duration(b.maxLatencyMS) * time.Millisecond
}

// MaxStores returns the store fan-out cap.
func (b *Budget) MaxStores() int { return b.maxStores }

// MaxPerStore returns the per-store result cap.
func (b *Budget) MaxPerStore() int { return b.maxPerStore }

// MaxTotal returns the total result cap.
func (b *Budget) MaxTotal() int { return b.maxTotal }

// TimeoutBufferMS returns the aggregation buffer in milliseconds.
func (b *Budget) TimeoutBufferMS() int64 { return b.timeoutBufferMS }

// StoreDeadline returns the effective per-store timeout for an allocated
// slice: the allocation capped by max latency minus the aggregation buffer.
func (b *Budget) StoreDeadline(allocatedMS int64) time.Duration {
	capMS := b.maxLatencyMS - b.timeoutBufferMS
	if allocatedMS <= 0 || allocatedMS > capMS {
		allocatedMS = capMS
	}
	return time.Duration(allocatedMS) * time.Millisecond
}
