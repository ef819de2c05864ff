// Package aria wires a named agent configuration into a running
// conversation: it resolves the configuration, constructs the STT, LLM,
// and TTS adapters through their factories, binds the built-in tools,
// and drives the agent loop with audio or console input.
package aria

import (
	"os"
	"path/filepath"

	"github.com/lumenrobotics/go-aria/internal/config"
)

// DefaultSystemPrompt seeds agents whose configuration leaves the
// prompt empty.
const DefaultSystemPrompt = `You are Aria, a warm and attentive voice companion.

BEHAVIOR:
- Keep replies short and conversational - one or two sentences. They are
  spoken aloud, so no lists, no markdown, no code.
- Use your tools to act instead of describing what you would do.
- When told a fact about someone, store it with remember_person.
- If a tool reports a problem, tell the user plainly and move on.
- Never mention tools, functions, or that you are a language model.`

// Config holds all application configuration. Flag parsing is done in
// cmd/aria; this struct is data only.
type Config struct {
	// AgentName selects the configuration to run.
	AgentName string

	// Debug enables verbose logging.
	Debug bool

	// TextOnly forces console input even when a microphone works.
	TextOnly bool

	// Dashboard enables the web debug dashboard.
	Dashboard bool

	// MemoryPath is the JSON memory file; used when no MONGO_URI is
	// set. Empty picks the default under the user's home directory.
	MemoryPath string

	// Env is the process environment snapshot, loaded once in cmd.
	Env config.Env
}

// DefaultConfig returns the standard application defaults.
func DefaultConfig() Config {
	return Config{
		AgentName: "companion",
		Dashboard: true,
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.AgentName == "" {
		return &ConfigError{Field: "AgentName", Message: "agent name is required"}
	}
	return nil
}

// memoryPath resolves the JSON memory file location.
func (c *Config) memoryPath() string {
	if c.MemoryPath != "" {
		return c.MemoryPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/tmp"
	}
	return filepath.Join(home, ".aria", "memory.json")
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
