package coordinator

import "errors"

// Sentinel errors surfaced to callers. Everything else is logged and either
// swallowed (partial failures) or wrapped in one of these.
var (
	// ErrNotReady is returned when the index has not been initialized yet.
	ErrNotReady = errors.New("index not ready")

	// ErrInvalidArgument is returned for malformed requests, such as an
	// empty query or a missing file path.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a referenced file or document does not
	// exist.
	ErrNotFound = errors.New("not found")

	// ErrQueryFailed is returned when query execution fails for any
	// internal reason. Details are logged, not exposed.
	ErrQueryFailed = errors.New("query failed")
)
