package registry

import (
	"github.com/lumenrobotics/go-aria/internal/config"
	"github.com/lumenrobotics/go-aria/pkg/llm"
	"github.com/lumenrobotics/go-aria/pkg/tts"
)

// Default models for the built-in agents.
const (
	DefaultCloudModel = "gpt-4o-mini"
	DefaultLocalModel = "llama3.2"
)

// Builtins returns the agent configurations that ship with the runtime:
//
//   - companion: picks cloud or offline backends from the credentials in env
//   - offline:   ollama + local whisper + piper, no network required
//   - cloud:     openai + elevenlabs
//   - echo:      all mock backends, for demos and tests
//
// System prompts are left empty; the application fills its default.
func Builtins(env config.Env) []AgentConfig {
	companion := offlineConfig(env)
	companion.Name = "companion"
	if env.HasCloudLLM() {
		companion = cloudConfig(env)
		companion.Name = "companion"
		companion.LLM, companion.Model = cloudLLM(env)
		companion.TTS, companion.Voice = cloudTTS(env)
	}

	offline := offlineConfig(env)
	cloud := cloudConfig(env)
	echo := AgentConfig{
		Name:  "echo",
		STT:   "mock",
		TTS:   "mock",
		LLM:   "mock",
		Model: "echo",
	}

	return []AgentConfig{companion, offline, cloud, echo}
}

// RegisterBuiltins registers the built-in agents on r.
func RegisterBuiltins(r *Registry, env config.Env) error {
	for _, cfg := range Builtins(env) {
		if err := r.Register(cfg); err != nil {
			return err
		}
	}
	return nil
}

// cloudLLM picks the first cloud backend with a credential.
func cloudLLM(env config.Env) (backend, model string) {
	switch {
	case env.OpenAIKey != "":
		return "openai", DefaultCloudModel
	case env.AnthropicKey != "":
		return "anthropic", llm.DefaultAnthropicModel
	case env.GeminiKey != "":
		return "gemini", llm.DefaultGeminiModel
	}
	return "openai", DefaultCloudModel
}

// cloudTTS prefers ElevenLabs, then OpenAI speech, then local piper.
func cloudTTS(env config.Env) (backend, voice string) {
	switch {
	case env.ElevenLabsKey != "":
		return "elevenlabs", tts.DefaultElevenLabsVoice
	case env.OpenAIKey != "":
		return "openai", tts.DefaultOpenAIVoice
	}
	return "piper", ""
}

func offlineConfig(env config.Env) AgentConfig {
	return AgentConfig{
		Name:     "offline",
		STT:      "whisper",
		TTS:      "piper",
		LLM:      "ollama",
		Model:    DefaultLocalModel,
		BaseURL:  env.OllamaBaseURL,
		Mode:     ModeOffline,
		DeviceIP: env.RobotIP,
	}
}

func cloudConfig(env config.Env) AgentConfig {
	return AgentConfig{
		Name:     "cloud",
		STT:      "whisper",
		TTS:      "elevenlabs",
		LLM:      "openai",
		Model:    DefaultCloudModel,
		Voice:    tts.DefaultElevenLabsVoice,
		Mode:     ModeCloud,
		DeviceIP: env.RobotIP,
	}
}
