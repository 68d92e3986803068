package ai

import "errors"

// Typed failure classes for provider calls. Implementations wrap these so the
// registry can distinguish transient failures from configuration problems.
var (
	// ErrTimeout indicates a provider call exceeded its deadline.
	ErrTimeout = errors.New("provider call timed out")

	// ErrUnauthorized indicates the provider rejected the configured credential.
	ErrUnauthorized = errors.New("provider rejected credentials")

	// ErrRateLimited indicates the provider throttled the call.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrEmptyCompletion indicates the provider returned no usable text.
	ErrEmptyCompletion = errors.New("provider returned empty completion")
)
