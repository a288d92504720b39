package domain

import "errors"

var (
	// ErrInvalidConfig signals invalid parameters, e.g. overlap >= window size.
	// Fatal: no partial operation is attempted.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrModelUnavailable signals that the embedding backend cannot be reached
	// or the embedding model failed to load.
	ErrModelUnavailable = errors.New("embedding model unavailable")
	// ErrBackendUnreachable signals an inference backend that stayed
	// unreachable after the retry budget was exhausted.
	ErrBackendUnreachable = errors.New("inference backend unreachable")
	// ErrModelNotLoaded signals a responding server that reports no active
	// model matching the configured name.
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrDimensionMismatch signals a vector whose dimension does not match the
	// index's established dimension. Fatal for that add batch only; existing
	// entries are untouched.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrBackendRejected signals a well-formed error response from the backend
	// (e.g. invalid parameters). Never retried.
	ErrBackendRejected = errors.New("backend rejected request")
)
