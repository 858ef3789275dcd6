package llm

import (
	"context"
	"fmt"
)

// Generator abstracts text generation so the pipeline can run against the
// real API or the local stub.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// StubGenerator returns canned text for local development without an API
// key. Enabled via the llm_stub feature flag.
type StubGenerator struct{}

// Generate returns a deterministic placeholder derived from the prompt.
func (StubGenerator) Generate(_ context.Context, _ string, userPrompt string, _ int) (string, error) {
	preview := userPrompt
	if len(preview) > 80 {
		preview = preview[:80]
	}
	return fmt.Sprintf("[stub output for prompt: %q]", preview), nil
}
