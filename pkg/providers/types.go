package providers

import "context"

// GenerationOptions are the knobs forwarded to the completion API.
type GenerationOptions struct {
	Temperature     float64
	TopP            float64
	MaxOutputTokens int
}

// CompletionProvider generates a single text completion for a prompt.
// An empty result with a nil error means the provider answered but
// produced nothing usable; callers treat that as a soft failure.
type CompletionProvider interface {
	Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error)
	ModelName() string
}
