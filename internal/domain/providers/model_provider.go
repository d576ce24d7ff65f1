package providers

import "context"

// GenerativeModel is the outbound contract to the language model provider.
// Generate is used both for structured extraction (JSON-shaped text expected)
// and for free-form response composition (plain text expected).
type GenerativeModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Embedder is the subset of GenerativeModel the context store depends on.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
