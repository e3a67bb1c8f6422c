package providers

import "context"

// TokenUsage reports token consumption for one generative invocation.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerationResult is the raw outcome of one generative invocation.
type GenerationResult struct {
	Content string     `json:"content"`
	Usage   TokenUsage `json:"usage"`
	Model   string     `json:"model"`
}

// GenerationProvider is the opaque generative capability. Both paths are
// black boxes with bounded latency; each invocation carries its own
// deadline through ctx.
type GenerationProvider interface {
	InvokeText(ctx context.Context, systemPrompt, userPrompt string) (*GenerationResult, error)
	InvokeVision(ctx context.Context, systemPrompt, userPrompt, imageBase64, mediaType string) (*GenerationResult, error)
}
