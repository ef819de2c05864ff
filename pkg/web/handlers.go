package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/lumenrobotics/go-aria/pkg/agent"
	"github.com/lumenrobotics/go-aria/pkg/hub"
	"github.com/lumenrobotics/go-aria/pkg/tools"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Agent    string                `json:"agent"`
	URID     string                `json:"urid"`
	Mode     string                `json:"mode"`
	State    string                `json:"state"`
	Uptime   string                `json:"uptime"`
	Metrics  agent.MetricsSnapshot `json:"metrics"`
	Backends []BackendStatus       `json:"backends"`
	Clients  int                   `json:"clients"`
}

// ConversationEntry is one turn as rendered for the dashboard.
type ConversationEntry struct {
	Time    string `json:"time"`
	Role    string `json:"role"`
	Message string `json:"message"`
	Tool    string `json:"tool,omitempty"`
}

// ToolInfo describes one dispatchable function.
type ToolInfo struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Params      []tools.Param `json:"params,omitempty"`
}

// triggerRequest is the body of POST /api/tools/:name.
type triggerRequest struct {
	Args map[string]any `json:"args"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(StatusResponse{
		Agent:    s.deps.AgentName,
		URID:     s.deps.URID,
		Mode:     s.deps.Mode,
		State:    s.deps.Loop.State().String(),
		Uptime:   time.Since(s.startedAt).Round(time.Second).String(),
		Metrics:  s.deps.Loop.Metrics(),
		Backends: s.deps.Backends,
		Clients:  s.deps.Hub.ClientCount(),
	})
}

func (s *Server) handleConversation(c *fiber.Ctx) error {
	turns := s.deps.Loop.Conversation().Turns()
	entries := lo.Map(turns, func(t agent.Turn, _ int) ConversationEntry {
		return ConversationEntry{
			Time:    t.At.Format("15:04:05"),
			Role:    string(t.Role),
			Message: t.Content,
			Tool:    t.Name,
		}
	})
	return c.JSON(entries)
}

func (s *Server) handleListTools(c *fiber.Ctx) error {
	infos := lo.Map(s.deps.Schemas, func(sc tools.Schema, _ int) ToolInfo {
		return ToolInfo{Name: sc.Name, Description: sc.Description, Params: sc.Params}
	})
	return c.JSON(infos)
}

// handleTriggerTool dispatches one call by hand, through the same
// validation the model's requests go through.
func (s *Server) handleTriggerTool(c *fiber.Ctx) error {
	if s.deps.Dispatcher == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no dispatcher configured",
		})
	}

	var req triggerRequest
	if err := c.BodyParser(&req); err != nil {
		req.Args = map[string]any{}
	}
	if req.Args == nil {
		req.Args = map[string]any{}
	}

	call := tools.NewCall(c.Params("name"), req.Args)
	result := s.deps.Dispatcher.Dispatch(call)

	s.deps.Hub.BroadcastEvent(hub.KindToolCall, fiber.Map{
		"name":     result.Name,
		"content":  result.Content,
		"is_error": result.IsError,
		"manual":   true,
	})

	status := fiber.StatusOK
	switch {
	case errors.Is(result.Err, tools.ErrUnknownFunction):
		status = fiber.StatusNotFound
	case errors.Is(result.Err, tools.ErrInvalidArgument):
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(result)
}

// handleInterrupt is the dashboard's barge-in button.
func (s *Server) handleInterrupt(c *fiber.Ctx) error {
	s.deps.Loop.Interrupt()
	return c.JSON(fiber.Map{"interrupted": true})
}
