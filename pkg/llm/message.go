package llm

import (
	"encoding/json"
	"log/slog"

	"github.com/lumenrobotics/go-aria/pkg/tools"
)

// Role defines message roles in a conversation.
type Role string

const (
	// RoleSystem is for system instructions.
	RoleSystem Role = "system"

	// RoleUser is for user messages.
	RoleUser Role = "user"

	// RoleAssistant is for assistant responses.
	RoleAssistant Role = "assistant"

	// RoleTool is for tool/function results.
	RoleTool Role = "tool"
)

// Message represents a chat message in a conversation.
type Message struct {
	// Role identifies the message sender.
	Role Role `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content"`

	// Name is optional, used for tool messages.
	Name string `json:"name,omitempty"`

	// ToolCalls are function calls requested by the assistant, in the
	// provider's serialized form.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID identifies which tool call this message responds to.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall is the serialized form of a function call request, as it
// appears inside assistant messages on the wire.
type ToolCall struct {
	// ID uniquely identifies this tool call.
	ID string `json:"id"`

	// Name of the function to call.
	Name string `json:"name"`

	// Arguments as a JSON string.
	Arguments string `json:"arguments"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolMessage creates a tool result message.
func NewToolMessage(toolCallID, name, content string) Message {
	return Message{Role: RoleTool, ToolCallID: toolCallID, Name: name, Content: content}
}

// parseCalls decodes serialized tool calls into dispatchable requests.
// Malformed argument JSON yields an empty argument map and a warning; the
// dispatcher's validation reports the missing parameters to the model.
func parseCalls(calls []ToolCall, logger *slog.Logger) []tools.Call {
	if len(calls) == 0 {
		return nil
	}
	out := make([]tools.Call, len(calls))
	for i, call := range calls {
		args := map[string]any{}
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil && logger != nil {
				logger.Warn("malformed tool call arguments",
					"tool", call.Name,
					"error", err,
				)
			}
		}
		out[i] = tools.Call{ID: call.ID, Name: call.Name, Args: args}
	}
	return out
}

// marshalArgs serializes an argument map for the wire form of a call.
func marshalArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
