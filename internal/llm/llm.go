package llm

import (
	"context"
	"errors"
)

// Client abstracts chat-completion providers for document analysis.
type Client interface {
	Complete(ctx context.Context, system, user string) (Completion, error)
}

// Completion is a single model response.
type Completion struct {
	Content    string
	Model      string
	TokensUsed int
}

// ErrUnavailable means the provider could not produce a response: transport
// failure, timeout, non-2xx status, or an empty/malformed body. Callers may
// substitute a fallback analysis when they see it.
var ErrUnavailable = errors.New("llm unavailable")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// Complete always reports the provider as unavailable.
func (PlaceholderClient) Complete(ctx context.Context, system, user string) (Completion, error) {
	_ = ctx
	_ = system
	_ = user
	return Completion{}, ErrUnavailable
}

var _ Client = PlaceholderClient{}
