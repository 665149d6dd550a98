// Package llm is the narrow gateway to AI text generation. The engine
// talks to a Provider; whether that is the fake echo used in tests or a
// real OpenAI-backed client is decided once at startup.
package llm

import "context"

// Request is one generation attempt. RequestPayload carries the full
// structured payload (prompt, context, slot numbers) exactly as it is
// audited into llm_traces.
type Request struct {
	GameID         string
	RoleID         string
	Status         string
	Prompt         string
	PromptVersion  string
	RequestPayload map[string]any
}

// Response is a successful generation. AssistantText is always non-empty.
type Response struct {
	AssistantText string
	Metadata      map[string]any
}

// Provider generates assistant text for a request.
type Provider interface {
	ProviderName() string
	ModelName() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// ValidationError marks structurally invalid provider output (or input).
// It is never retried.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

// ErrorType classifies an error for trace rows.
func ErrorType(err error) string {
	if _, ok := err.(*ValidationError); ok {
		return "ValidationError"
	}
	return "ProviderError"
}
