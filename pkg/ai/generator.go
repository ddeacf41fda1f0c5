package ai

import "context"

// Message is one role/content pair in a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SamplingParams control generation. Zero values mean provider defaults.
type SamplingParams struct {
	MaxTokens   int
	Temperature float64
}

// TextGenerator generates free text from a message list and sampling
// parameters.
type TextGenerator interface {
	Generate(ctx context.Context, messages []Message, params SamplingParams) (string, error)
}
