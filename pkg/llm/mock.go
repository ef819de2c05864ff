package llm

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenrobotics/go-aria/pkg/tools"
)

// Mock implements Provider for testing.
type Mock struct {
	// CompleteFunc is called when Complete is invoked.
	CompleteFunc func(ctx context.Context, req *Request) (*Response, error)

	// HealthFunc is called when Health is invoked.
	HealthFunc func(ctx context.Context) error

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu       sync.Mutex
	calls    []MockCall
	requests []*Request
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Time   time.Time
}

// NewMock creates a mock provider that answers every request with a
// canned reply.
func NewMock() *Mock {
	return WithReply("Mock response")
}

// WithReply returns a mock whose completions always contain text.
func WithReply(text string) *Mock {
	return &Mock{
		CompleteFunc: func(ctx context.Context, req *Request) (*Response, error) {
			return &Response{
				Message:      NewAssistantMessage(text),
				FinishReason: "stop",
				Usage:        Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			}, nil
		},
		HealthFunc: func(ctx context.Context) error { return nil },
	}
}

// WithError returns a mock that always returns the given error.
func WithError(err error) *Mock {
	return &Mock{
		CompleteFunc: func(ctx context.Context, req *Request) (*Response, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error { return err },
	}
}

// WithToolLoop returns a mock that requests the same function on every
// completion and never produces text. Useful for exercising depth limits.
func WithToolLoop(name string, args map[string]any) *Mock {
	return &Mock{
		CompleteFunc: func(ctx context.Context, req *Request) (*Response, error) {
			id := uuid.NewString()
			wire := ToolCall{ID: id, Name: name, Arguments: marshalArgs(args)}
			return &Response{
				Message: Message{
					Role:      RoleAssistant,
					ToolCalls: []ToolCall{wire},
				},
				ToolCalls:    []tools.Call{{ID: id, Name: name, Args: args}},
				FinishReason: "tool_calls",
			}, nil
		},
		HealthFunc: func(ctx context.Context) error { return nil },
	}
}

// Complete calls CompleteFunc and records the call.
func (m *Mock) Complete(ctx context.Context, req *Request) (*Response, error) {
	m.record("Complete", req)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return nil, WrapError("mock", ErrProviderUnavailable)
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", nil)
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.record("Close", nil)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// record adds a call to the tracking list.
func (m *Mock) record(method string, req *Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Time: time.Now()})
	if req != nil {
		m.requests = append(m.requests, req)
	}
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Requests returns the completion requests received so far.
func (m *Mock) Requests() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*Request, len(m.requests))
	copy(result, m.requests)
	return result
}

// LastRequest returns the most recent completion request, or nil.
func (m *Mock) LastRequest() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.requests = nil
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
