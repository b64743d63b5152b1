package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Graph store backends return
// these (optionally wrapped) so services can translate them into domain
// errors without knowing which backend is in play.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: node or edge endpoint does not exist in the store
// - ErrConflict: a concurrent writer won; retry may succeed
// - ErrUnavailable: store temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
