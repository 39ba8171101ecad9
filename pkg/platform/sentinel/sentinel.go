package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about rows in a regional store, not validation failures:
//   - ErrNotFound: row does not exist in store
//   - ErrConflict: optimistic concurrency token did not match the stored row
//   - ErrDependency: a foreign key could not be satisfied (referenced row missing,
//     or dependent rows still present on delete)
//   - ErrDuplicate: a unique constraint rejected the write
//   - ErrUnavailable: store or broker temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrDependency  = errors.New("dependency not satisfied")
	ErrDuplicate   = errors.New("duplicate key")
	ErrUnavailable = errors.New("unavailable")
)
