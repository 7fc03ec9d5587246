// Package grading invokes the language-model backend with a tiered
// fallback protocol: structured output first, then JSON-mode chat. It
// returns raw text; parsing and repair belong to the normalizer.
package grading

import "context"

// Request carries one grading call to the backend.
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float64

	// SchemaName and Schema are set only on the structured-output path.
	SchemaName string
	Schema     map[string]any
}

// Backend is the chat/completion capability the invoker talks to. Both
// methods return the model's rendered output text.
type Backend interface {
	// CompleteStructured requests output with the schema enforced
	// server-side.
	CompleteStructured(ctx context.Context, req Request) (string, error)

	// CompleteJSON requests a JSON-shaped object without server-side
	// schema enforcement; the schema travels textually inside the
	// user instruction.
	CompleteJSON(ctx context.Context, req Request) (string, error)
}
