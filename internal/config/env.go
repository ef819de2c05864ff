// Package config captures process environment configuration for go-aria.
//
// The environment is read exactly once at startup into an immutable Env
// snapshot that is passed into adapters. Packages outside cmd/ must not
// call os.Getenv for runtime options.
package config

import (
	"os"

	"github.com/google/uuid"

	"github.com/lumenrobotics/go-aria/pkg/llm"
)

// Defaults for environment-driven options.
const (
	DefaultDashboardPort = "8090"
	DefaultAgentsDir     = "./agents"
)

// Env is an immutable snapshot of the process environment.
type Env struct {
	// RobotIP is the target device address (ROBOT_IP). Empty means no
	// physical device; device-bound tools report themselves unavailable.
	RobotIP string

	// URID identifies this session/robot (URID). A fresh UUID is
	// generated when unset so logs and stores always have an identity.
	URID string

	// OllamaBaseURL is the local LLM endpoint (OLLAMA_BASE_URL).
	OllamaBaseURL string

	// WhisperBaseURL points at a local whisper server speaking the
	// OpenAI transcription route (WHISPER_BASE_URL). Empty means the
	// hosted API.
	WhisperBaseURL string

	// Cloud backend credentials. Presence selects cloud mode for the
	// corresponding adapter; absence selects offline/local mode.
	OpenAIKey     string
	ElevenLabsKey string
	AnthropicKey  string
	GeminiKey     string

	// MongoURI enables persistent memory when set (MONGO_URI).
	MongoURI string

	// DashboardPort is the debug dashboard listen port (DASHBOARD_PORT).
	DashboardPort string

	// AgentsDir holds user-defined agent configuration files (AGENTS_DIR).
	AgentsDir string
}

// LoadEnv reads the process environment into an Env snapshot.
func LoadEnv() Env {
	env := Env{
		RobotIP:        os.Getenv("ROBOT_IP"),
		URID:           os.Getenv("URID"),
		OllamaBaseURL:  os.Getenv("OLLAMA_BASE_URL"),
		WhisperBaseURL: os.Getenv("WHISPER_BASE_URL"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		ElevenLabsKey:  os.Getenv("ELEVENLABS_API_KEY"),
		AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
		GeminiKey:      os.Getenv("GEMINI_API_KEY"),
		MongoURI:       os.Getenv("MONGO_URI"),
		DashboardPort:  os.Getenv("DASHBOARD_PORT"),
		AgentsDir:      os.Getenv("AGENTS_DIR"),
	}

	if env.URID == "" {
		env.URID = uuid.NewString()
	}
	if env.OllamaBaseURL == "" {
		env.OllamaBaseURL = llm.DefaultOllamaBaseURL
	}
	if env.DashboardPort == "" {
		env.DashboardPort = DefaultDashboardPort
	}
	if env.AgentsDir == "" {
		env.AgentsDir = DefaultAgentsDir
	}
	return env
}

// HasCloudLLM reports whether any cloud LLM credential is present.
func (e Env) HasCloudLLM() bool {
	return e.OpenAIKey != "" || e.AnthropicKey != "" || e.GeminiKey != ""
}
