// Package llm defines the provider-neutral client contract used by the
// domain handlers.
package llm

import "context"

type Message struct {
	// user|model|system
	Role    string
	Content string
}

// Tool is a function declaration surfaced to the model. ParameterSchema is
// a JSON Schema object serialized as a string.
type Tool struct {
	Name            string
	Description     string
	ParameterSchema string
}

type Request struct {
	Model    string
	System   string
	Messages []Message
	Tools    []Tool

	// ForceJSON asks the provider for a JSON response body.
	ForceJSON bool

	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// ToolCall is one model-issued structured function call. RawArguments is
// the argument object exactly as the model produced it.
type ToolCall struct {
	Name         string
	RawArguments string
}

type Response struct {
	Text      string
	ToolCalls []ToolCall
}

type Client interface {
	Chat(ctx context.Context, req Request) (*Response, error)
}
