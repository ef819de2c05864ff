// Package llm provides chat completion with function calling behind a
// single Provider interface, so the agent loop can switch between OpenAI,
// Ollama, Anthropic, Gemini, and a mock without changing shape.
//
// Example usage:
//
//	client, _ := llm.NewClient(
//	    llm.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    llm.WithModel("gpt-4o-mini"),
//	)
//	defer client.Close()
//
//	resp, _ := client.Complete(ctx, &llm.Request{
//	    Messages: []llm.Message{llm.NewUserMessage("Hello!")},
//	})
//	if len(resp.ToolCalls) > 0 {
//	    // the model wants a function executed before it can answer
//	}
package llm

import (
	"context"

	"github.com/lumenrobotics/go-aria/pkg/tools"
)

// Provider is the completion interface all backends implement.
type Provider interface {
	// Complete generates the next assistant turn from a message history.
	// The response carries either text or tool call requests, never both
	// meaningfully; callers should check ToolCalls first.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Request for a chat completion.
type Request struct {
	// Messages is the conversation history, system turn first.
	Messages []Message

	// Model overrides the provider's default model.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0-2.0).
	Temperature float64

	// Schemas are the functions the model may request.
	Schemas []tools.Schema
}

// Response from a completion.
type Response struct {
	// Message is the assistant turn to append to the history. For tool
	// call responses it carries the serialized calls so the wire history
	// stays well formed.
	Message Message

	// ToolCalls are the parsed function call requests, empty when the
	// model answered with text.
	ToolCalls []tools.Call

	// FinishReason indicates why generation stopped (stop, length, tool_calls).
	FinishReason string

	// Usage tracks token consumption.
	Usage Usage

	// Model used for generation.
	Model string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}

// Usage tracks token consumption for billing and limits.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Status reports whether a provider came up. Constructors never panic or
// exit; a backend that cannot start is reported here and the caller
// decides whether that is fatal.
type Status struct {
	Available bool
	Provider  string
	Reason    string
}

// Up returns an available status for the named provider.
func Up(provider string) Status {
	return Status{Available: true, Provider: provider}
}

// Down returns an unavailable status with the reason.
func Down(provider, reason string) Status {
	return Status{Available: false, Provider: provider, Reason: reason}
}
