package provider

import "errors"

var (
	// ErrNoProviders indicates the registry has no generators registered.
	ErrNoProviders = errors.New("no providers registered")

	// ErrAllProvidersFailed indicates every candidate generator failed.
	// The last underlying failure is wrapped alongside this sentinel.
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrUnknownProvider indicates a provider name that was never registered.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrDuplicateProvider indicates a name registered twice.
	ErrDuplicateProvider = errors.New("provider already registered")
)
