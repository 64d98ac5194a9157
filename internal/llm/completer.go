// Package llm provides the model-completion capability consumed by the
// planner and the aggregator's synthesize strategy.
package llm

import "context"

// Role identifies who authored a message in a completion request.
type Role string

const (
	// RoleSystem carries instructions that frame the whole exchange.
	RoleSystem Role = "system"
	// RoleUser carries the caller's input.
	RoleUser Role = "user"
	// RoleAssistant carries prior model output for multi-turn requests.
	RoleAssistant Role = "assistant"
)

// Message is one role/content pair in a completion request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Completer generates text from a list of messages. Implementations must
// honor ctx cancellation and return the generated text verbatim.
type Completer interface {
	Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error)
}

// CompleterFunc adapts a plain function to the Completer interface.
type CompleterFunc func(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	return f(ctx, messages, temperature, maxTokens)
}
