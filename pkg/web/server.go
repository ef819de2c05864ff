// Package web serves the runtime's debug dashboard: a small HTTP API
// over the live conversation, backend statuses, and tool table, plus a
// websocket stream of runtime events fanned out through pkg/hub.
//
// The dashboard is observational. The only mutating endpoints are the
// manual tool trigger, which goes through the same dispatcher the
// language model uses, and the interrupt button, which is the barge-in
// path.
package web

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/lumenrobotics/go-aria/pkg/agent"
	"github.com/lumenrobotics/go-aria/pkg/hub"
	"github.com/lumenrobotics/go-aria/pkg/tools"
)

// BackendStatus is one adapter's availability as shown on the dashboard.
type BackendStatus struct {
	Capability string `json:"capability"` // "stt", "tts", "llm"
	Provider   string `json:"provider"`
	Available  bool   `json:"available"`
	Reason     string `json:"reason,omitempty"`
}

// Deps are the runtime pieces the dashboard observes. Loop and Hub are
// required; a nil Dispatcher disables the manual tool trigger.
type Deps struct {
	AgentName string
	URID      string
	Mode      string

	Loop       *agent.Loop
	Dispatcher *tools.Dispatcher
	Schemas    []tools.Schema
	Backends   []BackendStatus
	Hub        *hub.Hub

	Logger *slog.Logger
}

// Server is the dashboard HTTP server.
type Server struct {
	deps   Deps
	app    *fiber.App
	logger *slog.Logger

	startedAt time.Time
}

// NewServer builds the server and its routes. Call Listen to serve.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{
		deps:      deps,
		logger:    deps.Logger.With("component", "web"),
		startedAt: time.Now(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "aria dashboard",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/conversation", s.handleConversation)
	api.Get("/tools", s.handleListTools)
	api.Post("/tools/:name", s.handleTriggerTool)
	api.Post("/interrupt", s.handleInterrupt)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Listen serves on the given port until Shutdown. It blocks.
func (s *Server) Listen(port string) error {
	s.logger.Info("dashboard listening", "addr", "http://localhost:"+port)
	return s.app.Listen(":" + port)
}

// Shutdown stops the server, waiting briefly for in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(2 * time.Second)
}

// handleEventsWS attaches a dashboard client to the event hub and
// blocks until the peer disconnects.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	client := hub.NewClient(s.deps.Hub, c)
	if client == nil {
		c.Close()
		return
	}
	client.Run()
}
