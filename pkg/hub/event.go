// Package hub fans agent runtime events out to dashboard websocket
// clients using a channel-based broadcast loop.
package hub

import "time"

// Event is the JSON envelope every dashboard frame carries.
type Event struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

// Event kinds emitted by the agent runtime.
const (
	KindState         = "state"
	KindUserTurn      = "user_turn"
	KindAssistantTurn = "assistant_turn"
	KindToolCall      = "tool_call"
	KindError         = "error"
	KindStatus        = "status"
)
