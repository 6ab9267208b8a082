package model

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("empty model response")

// Request is one single-prompt completion call. Sampling fields left at zero
// are sent as zero; callers fill them from configuration.
type Request struct {
	System           string
	Prompt           string
	Temperature      float32
	TopP             float32
	TopK             float32
	ResponseMIMEType string
}

// CompletionResponse is the common response model for model providers.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Provider is the model provider abstraction used by the tutor.
type Provider interface {
	Generate(ctx context.Context, req Request) (CompletionResponse, error)
}
