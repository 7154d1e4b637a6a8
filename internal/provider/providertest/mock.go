// Package providertest provides test helpers for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/packrat-ai/packrat/internal/provider"
)

// MockCompleter is a configurable test double for provider.Completer.
// Set CompleteFunc to control behavior; an unset func panics on call.
// AvailableFunc defaults to available. Safe for concurrent use.
type MockCompleter struct {
	CompleteFunc  func(ctx context.Context, req provider.Request) (string, error)
	AvailableFunc func() bool

	mu            sync.Mutex
	completeCalls int
	lastRequest   provider.Request
}

var _ provider.Completer = (*MockCompleter)(nil)

// Complete delegates to CompleteFunc, tracking call count and the last
// request seen.
func (m *MockCompleter) Complete(ctx context.Context, req provider.Request) (string, error) {
	m.mu.Lock()
	m.completeCalls++
	m.lastRequest = req
	m.mu.Unlock()
	return m.CompleteFunc(ctx, req)
}

// Available delegates to AvailableFunc, defaulting to true.
func (m *MockCompleter) Available() bool {
	if m.AvailableFunc == nil {
		return true
	}
	return m.AvailableFunc()
}

// Calls returns the number of Complete invocations so far.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completeCalls
}

// LastRequest returns the most recent request passed to Complete.
func (m *MockCompleter) LastRequest() provider.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}
