package agent_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lumenrobotics/go-aria/pkg/agent"
	"github.com/lumenrobotics/go-aria/pkg/llm"
)

func TestConversationSeedsSystemTurn(t *testing.T) {
	c := agent.NewConversation("You are a helpful robot.")
	turns := c.Turns()
	if len(turns) != 1 {
		t.Fatalf("expected 1 seeded turn, got %d", len(turns))
	}
	if turns[0].Role != llm.RoleSystem || turns[0].Content != "You are a helpful robot." {
		t.Errorf("unexpected seed turn: %+v", turns[0])
	}

	if got := agent.NewConversation("").Len(); got != 0 {
		t.Errorf("empty prompt should seed nothing, got %d turns", got)
	}
}

func TestConversationAppendStampsTime(t *testing.T) {
	c := agent.NewConversation("")

	c.Append(agent.Turn{Role: llm.RoleUser, Content: "hi"})
	if c.Turns()[0].At.IsZero() {
		t.Error("expected At to be stamped on append")
	}

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.Append(agent.Turn{Role: llm.RoleAssistant, Content: "hello", At: fixed})
	if at := c.Turns()[1].At; !at.Equal(fixed) {
		t.Errorf("explicit At was overwritten: %v", at)
	}
}

func TestConversationTurnsReturnsCopy(t *testing.T) {
	c := agent.NewConversation("system")
	c.Append(agent.Turn{Role: llm.RoleUser, Content: "original"})

	turns := c.Turns()
	turns[1].Content = "mutated"

	if got := c.Turns()[1].Content; got != "original" {
		t.Errorf("mutating the copy changed the history: %q", got)
	}
}

func TestConversationMessages(t *testing.T) {
	c := agent.NewConversation("be brief")
	c.Append(agent.Turn{Role: llm.RoleUser, Content: "hi"})
	c.Append(agent.Turn{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "get_time", Arguments: "{}"}},
	})
	c.Append(agent.Turn{Role: llm.RoleTool, Content: "12:00", ToolCallID: "call-1", Name: "get_time"})

	msgs := c.Messages()
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Role != llm.RoleSystem || msgs[1].Role != llm.RoleUser {
		t.Errorf("unexpected roles: %v, %v", msgs[0].Role, msgs[1].Role)
	}
	if len(msgs[2].ToolCalls) != 1 || msgs[2].ToolCalls[0].ID != "call-1" {
		t.Errorf("tool calls not carried to wire form: %+v", msgs[2])
	}
	if msgs[3].ToolCallID != "call-1" || msgs[3].Name != "get_time" || msgs[3].Content != "12:00" {
		t.Errorf("tool result not carried to wire form: %+v", msgs[3])
	}
}

func TestTruncateKeepsMostRecent(t *testing.T) {
	c := agent.NewConversation("system prompt")
	for i := 1; i <= 7; i++ {
		role := llm.RoleUser
		if i%2 == 0 {
			role = llm.RoleAssistant
		}
		c.Append(agent.Turn{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}

	if dropped := c.Truncate(4); dropped != 3 {
		t.Errorf("expected 3 dropped turns, got %d", dropped)
	}

	turns := c.Turns()
	if len(turns) != 5 {
		t.Fatalf("expected system + 4 recent turns, got %d", len(turns))
	}
	if turns[0].Role != llm.RoleSystem {
		t.Errorf("system turn must survive truncation, got role %v", turns[0].Role)
	}
	for i, want := range []string{"turn 4", "turn 5", "turn 6", "turn 7"} {
		if turns[i+1].Content != want {
			t.Errorf("turn %d: expected %q, got %q", i+1, want, turns[i+1].Content)
		}
	}
}

func TestTruncateNoopUnderBudget(t *testing.T) {
	c := agent.NewConversation("system")
	c.Append(agent.Turn{Role: llm.RoleUser, Content: "a"})
	c.Append(agent.Turn{Role: llm.RoleAssistant, Content: "b"})

	if dropped := c.Truncate(4); dropped != 0 {
		t.Errorf("expected no drops under budget, got %d", dropped)
	}
	if dropped := c.Truncate(0); dropped != 0 {
		t.Errorf("budget 0 must keep everything, dropped %d", dropped)
	}
	if c.Len() != 3 {
		t.Errorf("expected 3 turns, got %d", c.Len())
	}
}

func TestTruncateDropsOrphanedToolResults(t *testing.T) {
	c := agent.NewConversation("system")
	c.Append(agent.Turn{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "probe", Arguments: "{}"}},
	})
	c.Append(agent.Turn{Role: llm.RoleTool, Content: "ok", ToolCallID: "call-1", Name: "probe"})
	c.Append(agent.Turn{Role: llm.RoleUser, Content: "and now?"})
	c.Append(agent.Turn{Role: llm.RoleAssistant, Content: "done"})

	// Budget 3 drops the assistant call request; its result must not
	// survive alone at the head of the window.
	if dropped := c.Truncate(3); dropped != 2 {
		t.Errorf("expected 2 dropped turns, got %d", dropped)
	}

	turns := c.Turns()
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d: %+v", len(turns), turns)
	}
	if turns[1].Role != llm.RoleUser || turns[2].Role != llm.RoleAssistant {
		t.Errorf("unexpected roles after truncation: %v, %v", turns[1].Role, turns[2].Role)
	}
}

func TestEstimatedTokens(t *testing.T) {
	c := agent.NewConversation("")
	if got := c.EstimatedTokens(); got != 0 {
		t.Errorf("empty history should estimate 0 tokens, got %d", got)
	}

	c.Append(agent.Turn{Role: llm.RoleUser, Content: strings.Repeat("a", 27)})
	if got := c.EstimatedTokens(); got < 9 || got > 10 {
		t.Errorf("expected roughly 10 tokens for 27 runes, got %d", got)
	}
}
