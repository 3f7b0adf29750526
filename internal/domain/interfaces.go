package domain

import (
	"context"
)

// ModelGateway defines the interface for the upstream model provider.
type ModelGateway interface {
	Name() string

	// Complete handles unary requests (non-streaming). Failures are returned
	// as a provider *APIError.
	Complete(ctx context.Context, prompt []PromptMessage, model string, temperature float32) (string, error)

	// CompleteStream returns a channel of events.
	// The channel MUST be closed by the gateway when done, and any failure
	// MUST be delivered as the last event rather than returned.
	CompleteStream(ctx context.Context, prompt []PromptMessage, model string, temperature float32) <-chan StreamEvent
}
