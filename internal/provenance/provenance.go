// Package provenance is the lineage side-channel: every store task and
// fusion stage emits an event describing what contributed to the bundle.
// Sinks are fire-and-forget; the pipeline never blocks on them and never
// fails because of them.
package provenance

// StoreEvent describes one completed (or failed) store task.
type StoreEvent struct {
	RequestID   string
	Store       string
	QueryKind   string
	QueryText   string
	LatencyMS   int64
	Success     bool
	ResultCount int
}

// ConfidenceDelta records how fusion adjusted one result's score.
type ConfidenceDelta struct {
	ID    string
	Delta float64
}

// FusionEvent describes one completed fusion stage.
type FusionEvent struct {
	RequestID    string
	Strategy     string
	InputCount   int
	OutputCount  int
	DedupRemoved int
	Deltas       []ConfidenceDelta
}

// Sink receives provenance events. Implementations must return quickly and
// must not propagate errors into the pipeline.
type Sink interface {
	StoreQueried(ev StoreEvent)
	FusionApplied(ev FusionEvent)
}

// Noop discards all events.
type Noop struct{}

// StoreQueried implements Sink.
func (Noop) StoreQueried(StoreEvent) {}

// FusionApplied implements Sink.
func (Noop) FusionApplied(FusionEvent) {}

// Multi fans events out to several sinks.
type Multi []Sink

// StoreQueried implements Sink.
func (m Multi) StoreQueried(ev StoreEvent) {
	for _, s := range m {
		s.StoreQueried(ev)
	}
}

// FusionApplied implements Sink.
func (m Multi) FusionApplied(ev FusionEvent) {
	for _, s := range m {
		s.FusionApplied(ev)
	}
}
