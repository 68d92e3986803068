package mock

import (
	"context"
	"fmt"
	"time"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields and optional
// artificial latency, which registry tests use to exercise speed scoring.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, uses default canned behavior.
	GenerateFunc func(ctx context.Context, prompt string, temperature float64) (string, error)

	// Latency is slept before every call when non-zero.
	Latency time.Duration

	// Err is returned by every call when set and GenerateFunc is nil.
	Err error

	name      string
	callCount int
}

// NewMockGenerator creates a mock generator with default canned behavior.
// Note: Returns concrete type to allow test assertions via GetMockGenerator().
func NewMockGenerator(name string) *MockGenerator {
	return &MockGenerator{name: name}
}

// Name returns the identifier given at construction.
func (m *MockGenerator) Name() string {
	return m.name
}

// Generate produces a canned answer echoing the prompt, or delegates to the
// injected GenerateFunc. The injected Err takes precedence over the default.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	m.callCount++

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, temperature)
	}

	if m.Err != nil {
		return "", m.Err
	}

	return fmt.Sprintf("mock answer from %s: %s", m.name, prompt), nil
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	return m.callCount
}

// Reset clears the call count and any injected behavior.
func (m *MockGenerator) Reset() {
	m.callCount = 0
	m.GenerateFunc = nil
	m.Err = nil
	m.Latency = 0
}
