// Package provider is the boundary to the external text-completion service.
// Concrete implementations wrap a vendor SDK; callers depend only on the
// Completer interface so the engine and its tests never touch the network
// directly.
package provider

import (
	"context"
	"errors"
)

// Sentinel errors for completion calls.
var (
	// ErrUnavailable indicates no usable credential or model is configured.
	ErrUnavailable = errors.New("provider: completion service unavailable")

	// ErrEmptyResponse indicates the service returned a success status with
	// no usable text content.
	ErrEmptyResponse = errors.New("provider: empty response")
)

// Request is one completion call.
type Request struct {
	// Model is the service model identifier.
	Model string

	// System is the system instruction.
	System string

	// User is the user message.
	User string

	// MaxTokens bounds the response length.
	MaxTokens int
}

// Completer performs completion calls. Any non-success status from the
// service is surfaced as a hard error for that call; the caller decides the
// fallback policy.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)

	// Available reports whether the service can be called at all (a
	// credential and endpoint are configured). Callers that must never fall
	// back to lossy behavior check this before starting work.
	Available() bool
}
