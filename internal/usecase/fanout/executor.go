// Package fanout dispatches one task per planned store under individual and
// aggregate deadlines, isolating each store's failures from the rest.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memfed/internal/domain/budget"
	"github.com/kailas-cloud/memfed/internal/domain/plan"
	"github.com/kailas-cloud/memfed/internal/domain/result"
	"github.com/kailas-cloud/memfed/internal/domain/store"
	"github.com/kailas-cloud/memfed/internal/metrics"
	"github.com/kailas-cloud/memfed/internal/provenance"
)

// Executor runs the scatter-gather across store adapters.
type Executor struct {
	adapters map[string]store.Adapter
	stats    *StatRegistry
	breaker  *Breaker
	prov     provenance.Sink
	logger   *zap.Logger
}

// NewExecutor creates an executor over the given adapters.
func NewExecutor(
	adapters []store.Adapter,
	stats *StatRegistry,
	breaker *Breaker,
	prov provenance.Sink,
	logger *zap.Logger,
) *Executor {
	byName := make(map[string]store.Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	return &Executor{
		adapters: byName,
		stats:    stats,
		breaker:  breaker,
		prov:     prov,
		logger:   logger,
	}
}

// Stats exposes the shared statistics registry.
func (e *Executor) Stats() *StatRegistry { return e.stats }

// Breaker exposes the shared circuit breaker.
func (e *Executor) Breaker() *Breaker { return e.breaker }

type outcome struct {
	store string
	res   result.StoreResult
}

// Execute dispatches one task per planned store and returns a complete map
// keyed by every planned store name. Tasks not finished by the aggregate
// deadline are abandoned and recorded as timeouts; the call never blocks
// waiting for an abandoned task to acknowledge cancellation.
func (e *Executor) Execute(
	ctx context.Context, requestID string, p *plan.Plan, b budget.Budget,
) map[string]result.StoreResult {
	aggCtx, cancel := context.WithTimeout(ctx, b.MaxLatency())
	defer cancel()

	// Buffered so abandoned tasks can still complete without leaking.
	ch := make(chan outcome, len(p.Stores))
	for _, sp := range p.Stores {
		go e.runStore(aggCtx, requestID, p, sp, b, ch)
	}

	results := make(map[string]result.StoreResult, len(p.Stores))
	remaining := len(p.Stores)
collect:
	for remaining > 0 {
		select {
		case o := <-ch:
			results[o.store] = o.res
			remaining--
		case <-aggCtx.Done():
			break collect
		}
	}

	if remaining > 0 {
		metrics.BudgetHitsTotal.Inc()
	}
	for _, sp := range p.Stores {
		if _, ok := results[sp.Store]; !ok {
			results[sp.Store] = result.StoreResult{
				Store:     sp.Store,
				Status:    result.StatusTimeout,
				LatencyMS: b.MaxLatencyMS(),
				ErrDetail: "abandoned at aggregate deadline",
			}
		}
	}
	return results
}

// runStore executes one store task within its allocated slice. Always sends
// exactly one outcome and records statistics, even on panic.
func (e *Executor) runStore(
	ctx context.Context, requestID string, p *plan.Plan, sp plan.StorePlan,
	b budget.Budget, ch chan<- outcome,
) {
	start := time.Now()
	res := result.StoreResult{Store: sp.Store}

	defer func() {
		if r := recover(); r != nil {
			res.Status = result.StatusError
			res.ErrDetail = fmt.Sprintf("store task panic: %v", r)
			res.LatencyMS = time.Since(start).Milliseconds()
			e.logger.Error("store task panicked",
				zap.String("store", sp.Store), zap.Any("panic", r))
		}
		e.finish(requestID, sp, &res)
		ch <- outcome{store: sp.Store, res: res}
	}()

	adapter, ok := e.adapters[sp.Store]
	if !ok {
		res.Status = result.StatusError
		res.ErrDetail = "no adapter registered"
		res.LatencyMS = time.Since(start).Milliseconds()
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, b.StoreDeadline(sp.AllocatedMS))
	defer cancel()

	batch, err := adapter.Query(taskCtx, e.nativeQuery(p, sp), b.MaxPerStore())
	res.LatencyMS = time.Since(start).Milliseconds()

	switch {
	case err != nil && (errors.Is(err, context.DeadlineExceeded) || taskCtx.Err() != nil):
		res.Status = result.StatusTimeout
		res.ErrDetail = err.Error()
	case err != nil:
		res.Status = result.StatusError
		res.ErrDetail = err.Error()
	case len(batch.Items) == 0:
		res.Status = result.StatusEmpty
		res.Candidates = batch.Total
	default:
		res.Status = result.StatusSuccess
		res.Items = batch.Items
		res.Candidates = batch.Total
	}
}

// finish updates statistics, the breaker, metrics, and provenance for one
// completed or failed task. An empty result counts as a healthy response.
func (e *Executor) finish(requestID string, sp plan.StorePlan, res *result.StoreResult) {
	success := res.Status == result.StatusSuccess || res.Status == result.StatusEmpty
	latency := time.Duration(res.LatencyMS) * time.Millisecond

	e.stats.Record(sp.Store, success, latency)
	e.breaker.RecordResult(sp.Store, success, time.Now())

	metrics.StoreQueriesTotal.WithLabelValues(sp.Store, string(res.Status)).Inc()
	metrics.StoreQueryDuration.WithLabelValues(sp.Store).Observe(latency.Seconds())

	e.prov.StoreQueried(provenance.StoreEvent{
		RequestID:   requestID,
		Store:       sp.Store,
		QueryKind:   string(sp.Query),
		LatencyMS:   res.LatencyMS,
		Success:     success,
		ResultCount: len(res.Items),
	})

	if !success {
		e.logger.Warn("store task failed",
			zap.String("store", sp.Store),
			zap.String("status", string(res.Status)),
			zap.String("detail", res.ErrDetail),
			zap.Int64("latency_ms", res.LatencyMS),
		)
	}
}

// nativeQuery adapts the generic planned query into the store's native shape.
func (e *Executor) nativeQuery(p *plan.Plan, sp plan.StorePlan) store.NativeQuery {
	q := store.NativeQuery{
		Text: p.Query,
		Kind: sp.Query,
	}
	switch sp.Query {
	case store.QueryTraversal:
		q.Entities = p.Entities
	case store.QueryTemporal:
		q.From = p.From
		q.To = p.To
	case store.QueryFulltext:
		q.Boosts = map[string]float64{"content": 1.0}
	case store.QuerySimilarity:
		// Plain text query; the adapter embeds it.
	}
	return q
}
