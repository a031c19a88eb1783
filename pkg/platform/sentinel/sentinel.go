package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Event stores, snapshot stores,
// caches and buses return these (optionally wrapped) so repositories can
// translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: aggregate stream, snapshot or cache entry does not exist
// - ErrConflict: the stored stream version differs from the expected one
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, malformed identities), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
