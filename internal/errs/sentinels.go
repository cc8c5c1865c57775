// Package errs contains sentinel errors and the normalized error variant used across layers
// and services for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service/transport layers.
var (
	// ErrInvalidArgument indicates a request that failed validation before any side effect.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnauthorized indicates a bad, expired or missing token, or an inactive subject.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an authorization deny.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the requested entity or reference does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a unique constraint violation (e.g., email taken).
	ErrConflict = errors.New("conflict")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates no response within the RPC bound. The remote outcome is unknown.
	ErrTimeout = errors.New("timeout")

	// ErrUnavailable indicates the destination service could not be reached.
	ErrUnavailable = errors.New("unavailable")

	// ErrRemote indicates an explicit rejection from a downstream service.
	ErrRemote = errors.New("remote error")

	// ErrInconsistency indicates that a compensating action itself failed.
	ErrInconsistency = errors.New("internal inconsistency")

	// ErrInternal indicates an unexpected failure.
	ErrInternal = errors.New("internal error")
)
