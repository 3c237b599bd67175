package llm

import "context"

// Params are the recognized generation options. Timeouts and retries are the
// caller's responsibility (the RAG engine), not the client's.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Stop        []string
}

// Client turns a prompt into text, blocking until generation finishes.
type Client interface {
	Generate(ctx context.Context, prompt string, params Params) (string, error)
}
