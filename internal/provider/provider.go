package provider

import "context"

// Generator is a single text-generation backend.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}
