package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Credential lifecycle errors
	//
	// ErrAuthExpired means the stored refresh token has been revoked or is
	// otherwise invalid upstream. It is never retried; the user has to run
	// the authorization flow again.
	ErrAuthExpired    = fmt.Errorf("refresh token expired or revoked")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")

	// Upstream errors
	//
	// ErrUpstreamUnavailable covers transient network and service faults
	// and is retryable. ErrMalformedItem flags a single fetched play item
	// that failed shape validation; the item is skipped, the run continues.
	ErrUpstreamUnavailable = fmt.Errorf("upstream service unavailable")
	ErrMalformedItem       = fmt.Errorf("malformed play item")

	// Storage errors
	ErrPersistence  = fmt.Errorf("persistence failure")
	ErrUserNotFound = fmt.Errorf("user not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
