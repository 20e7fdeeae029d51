// Package model abstracts the LLM providers the pipeline can generate
// code, tests, and documentation with.
package model

import "context"

// ChatModel is the interface every LLM provider adapter implements.
//
// Adapters handle provider-specific authentication and message formats,
// respect context cancellation, and translate provider errors into plain
// Go errors. The pipeline treats a failed call as an expected failure of
// the calling step, so adapters should return errors rather than panic.
type ChatModel interface {
	// Chat sends the conversation to the provider and returns its reply.
	Chat(ctx context.Context, messages []Message) (ChatOut, error)
}

// Message is a single turn in an LLM conversation.
type Message struct {
	// Role is one of the Role* constants.
	Role string

	// Content is the message text.
	Content string
}

// Standard conversation roles, aligned with the major providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatOut is a provider's reply.
type ChatOut struct {
	// Text is the generated response.
	Text string

	// TokensUsed is the total token count the provider reported for the
	// call, 0 when the provider does not report usage.
	TokensUsed int
}
