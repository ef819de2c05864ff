package agent

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lumenrobotics/go-aria/pkg/llm"
)

// runesPerToken is a rough rune-to-token ratio for English chat text,
// used only for logging and dashboards, never for hard limits.
const runesPerToken = 2.7

// Turn is one entry in a conversation's history.
type Turn struct {
	// Role identifies who produced the turn.
	Role llm.Role `json:"role"`

	// Content is the turn's text. Empty for assistant turns that only
	// request tool calls.
	Content string `json:"content"`

	// ToolCalls are the function calls an assistant turn requested.
	ToolCalls []llm.ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool result turn back to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Name is the function name on tool result turns.
	Name string `json:"name,omitempty"`

	// At is when the turn was appended.
	At time.Time `json:"at"`
}

// Conversation is the ordered turn history for one agent session. It is
// append-only: turns are never edited in place, only added or dropped
// from the oldest end by Truncate. Safe for concurrent use; the loop is
// the only writer, dashboards and tests read.
type Conversation struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewConversation returns a history seeded with a system turn when
// systemPrompt is non-empty.
func NewConversation(systemPrompt string) *Conversation {
	c := &Conversation{}
	if systemPrompt != "" {
		c.turns = append(c.turns, Turn{
			Role:    llm.RoleSystem,
			Content: systemPrompt,
			At:      time.Now(),
		})
	}
	return c
}

// Append adds a turn to the end of the history, stamping At when unset.
func (c *Conversation) Append(t Turn) {
	if t.At.IsZero() {
		t.At = time.Now()
	}
	c.mu.Lock()
	c.turns = append(c.turns, t)
	c.mu.Unlock()
}

// Turns returns a copy of the history.
func (c *Conversation) Turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns, system turn included.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// Messages converts the history to the model's wire form.
func (c *Conversation) Messages() []llm.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return messagesFrom(c.turns)
}

// Truncate drops the oldest non-system turns until at most budget
// remain. System turns always survive regardless of age. Tool result
// turns orphaned at the window edge (their requesting assistant turn
// was dropped) are dropped too so the remaining history stays valid on
// the wire. Returns the number of turns removed. A budget <= 0 keeps
// everything.
func (c *Conversation) Truncate(budget int) int {
	if budget <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for c.countNonSystem() > budget {
		if !c.dropOldestNonSystem() {
			break
		}
		dropped++
	}
	for {
		i := c.firstNonSystem()
		if i < 0 || c.turns[i].Role != llm.RoleTool {
			break
		}
		c.turns = append(c.turns[:i], c.turns[i+1:]...)
		dropped++
	}
	return dropped
}

// EstimatedTokens approximates the history's size in model tokens.
func (c *Conversation) EstimatedTokens() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	runes := 0
	for _, t := range c.turns {
		runes += utf8.RuneCountInString(t.Content)
		for _, call := range t.ToolCalls {
			runes += utf8.RuneCountInString(call.Name) + utf8.RuneCountInString(call.Arguments)
		}
	}
	return int(float64(runes) / runesPerToken)
}

func (c *Conversation) countNonSystem() int {
	n := 0
	for _, t := range c.turns {
		if t.Role != llm.RoleSystem {
			n++
		}
	}
	return n
}

func (c *Conversation) firstNonSystem() int {
	for i, t := range c.turns {
		if t.Role != llm.RoleSystem {
			return i
		}
	}
	return -1
}

func (c *Conversation) dropOldestNonSystem() bool {
	i := c.firstNonSystem()
	if i < 0 {
		return false
	}
	c.turns = append(c.turns[:i], c.turns[i+1:]...)
	return true
}

// messagesFrom converts turns to wire messages.
func messagesFrom(turns []Turn) []llm.Message {
	out := make([]llm.Message, len(turns))
	for i, t := range turns {
		out[i] = llm.Message{
			Role:       t.Role,
			Content:    t.Content,
			Name:       t.Name,
			ToolCalls:  t.ToolCalls,
			ToolCallID: t.ToolCallID,
		}
	}
	return out
}
