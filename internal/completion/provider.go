// Package completion implements single-turn LLM completion clients. One
// request maps to one response; no retry, no streaming, no state carried
// between calls.
package completion

import "context"

// Provider produces a completion for a prompt.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
