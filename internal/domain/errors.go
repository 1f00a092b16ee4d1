// Package domain holds cross-component errors and shared identifiers
// for the recall assembly pipeline.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIntent signals a malformed recall request.
	ErrInvalidIntent = errors.New("invalid recall intent")
	// ErrInvalidBudget signals an unusable performance budget.
	ErrInvalidBudget = errors.New("invalid performance budget")
	// ErrStoreTimeout signals a store task that missed its deadline.
	ErrStoreTimeout = errors.New("store query timeout")
	// ErrStoreUnavailable signals an adapter failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrCircuitOpen signals a store skipped because its circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrNoStoresAvailable signals that planning selected zero stores.
	ErrNoStoresAvailable = errors.New("no stores available for query")
	// ErrDiversification signals a diversification algorithm failure.
	ErrDiversification = errors.New("diversification failed")
	// ErrFeatureExtraction signals a feature extractor failure.
	ErrFeatureExtraction = errors.New("feature extraction failed")
)

// AssemblyError is the single error shape that crosses the orchestrator
// boundary. Everything below it recovers locally.
type AssemblyError struct {
	BundleID  string
	RequestID string
	Err       error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("bundle assembly failed (bundle=%s request=%s): %v", e.BundleID, e.RequestID, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// NewAssemblyError wraps err with bundle and request identifiers.
func NewAssemblyError(bundleID, requestID string, err error) error {
	return &AssemblyError{BundleID: bundleID, RequestID: requestID, Err: err}
}
