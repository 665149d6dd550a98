package llm

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// completionFunc performs one chat completion. Swappable in tests.
type completionFunc func(ctx context.Context, prompt string) (string, error)

// OpenAI is the real provider. One retry is attempted when the error text
// mentions a rate limit or timeout; validation errors are never retried.
type OpenAI struct {
	model      string
	call       completionFunc
	maxRetries int
}

// NewOpenAI builds a provider over the OpenAI chat-completions API.
func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	call := func(ctx context.Context, prompt string) (string, error) {
		completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
		})
		if err != nil {
			return "", err
		}
		if len(completion.Choices) == 0 {
			return "", nil
		}
		return completion.Choices[0].Message.Content, nil
	}
	return &OpenAI{model: model, call: call, maxRetries: 1}
}

// newOpenAIWithCaller is the test seam.
func newOpenAIWithCaller(model string, call completionFunc, maxRetries int) *OpenAI {
	return &OpenAI{model: model, call: call, maxRetries: maxRetries}
}

func (o *OpenAI) ProviderName() string { return "openai" }

func (o *OpenAI) ModelName() string { return o.model }

func (o *OpenAI) Generate(ctx context.Context, req Request) (Response, error) {
	text, err := o.call(ctx, req.Prompt)
	for attempt := 0; err != nil && attempt < o.maxRetries && retryable(err); attempt++ {
		text, err = o.call(ctx, req.Prompt)
	}
	if err != nil {
		return Response{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Response{}, &ValidationError{Detail: "empty assistant text"}
	}
	return Response{
		AssistantText: text,
		Metadata:      map[string]any{"provider": "openai", "model": o.model},
	}, nil
}

func retryable(err error) bool {
	if _, ok := err.(*ValidationError); ok {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate") || strings.Contains(msg, "timeout")
}
