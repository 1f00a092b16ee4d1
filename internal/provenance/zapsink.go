package provenance

import "go.uber.org/zap"

// ZapSink logs provenance events at debug level.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a logging sink.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

// StoreQueried implements Sink.
func (s *ZapSink) StoreQueried(ev StoreEvent) {
	s.logger.Debug("store queried",
		zap.String("request_id", ev.RequestID),
		zap.String("store", ev.Store),
		zap.String("query_kind", ev.QueryKind),
		zap.Int64("latency_ms", ev.LatencyMS),
		zap.Bool("success", ev.Success),
		zap.Int("results", ev.ResultCount),
	)
}

// FusionApplied implements Sink.
func (s *ZapSink) FusionApplied(ev FusionEvent) {
	s.logger.Debug("fusion applied",
		zap.String("request_id", ev.RequestID),
		zap.String("strategy", ev.Strategy),
		zap.Int("input", ev.InputCount),
		zap.Int("output", ev.OutputCount),
		zap.Int("dedup_removed", ev.DedupRemoved),
	)
}
