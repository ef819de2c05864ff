package registry_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lumenrobotics/go-aria/internal/config"
	"github.com/lumenrobotics/go-aria/pkg/registry"
	"github.com/lumenrobotics/go-aria/pkg/tools"
)

func validConfig() registry.AgentConfig {
	return registry.AgentConfig{
		Name:  "test",
		STT:   "mock",
		TTS:   "mock",
		LLM:   "mock",
		Model: "test-model",
	}
}

func TestResolveUnknownName(t *testing.T) {
	r := registry.NewRegistry()
	_, err := r.Resolve("nope")
	if !errors.Is(err, registry.ErrConfigNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrConfigNotFound", err)
	}
}

func TestResolveAppliesDefaults(t *testing.T) {
	r := registry.NewRegistry()
	if err := r.Register(validConfig()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	cfg, err := r.Resolve("test")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.SilenceTimeout != registry.DefaultSilenceTimeout {
		t.Errorf("SilenceTimeout = %v, want %v", cfg.SilenceTimeout, registry.DefaultSilenceTimeout)
	}
	if cfg.MaxToolDepth != registry.DefaultMaxToolDepth {
		t.Errorf("MaxToolDepth = %d, want %d", cfg.MaxToolDepth, registry.DefaultMaxToolDepth)
	}
	if cfg.TurnBudget != registry.DefaultTurnBudget {
		t.Errorf("TurnBudget = %d, want %d", cfg.TurnBudget, registry.DefaultTurnBudget)
	}
	if cfg.LLMTimeout != registry.DefaultCloudTimeout {
		t.Errorf("LLMTimeout = %v, want %v", cfg.LLMTimeout, registry.DefaultCloudTimeout)
	}
}

func TestResolveOfflineTimeout(t *testing.T) {
	r := registry.NewRegistry()
	cfg := validConfig()
	cfg.Mode = registry.ModeOffline
	if err := r.Register(cfg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := r.Resolve("test")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.LLMTimeout != registry.DefaultLocalTimeout {
		t.Errorf("LLMTimeout = %v, want %v", got.LLMTimeout, registry.DefaultLocalTimeout)
	}
}

func TestResolveRejectsDuplicateSchemaNames(t *testing.T) {
	cfg := validConfig()
	cfg.Schemas = []tools.Schema{
		{Name: "get_time", Description: "a"},
		{Name: "get_time", Description: "b"},
	}

	r := registry.NewRegistry()
	if err := r.Register(cfg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err := r.Resolve("test")
	if !errors.Is(err, registry.ErrConfigInvalid) {
		t.Fatalf("Resolve() error = %v, want ErrConfigInvalid", err)
	}
}

func TestResolveRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*registry.AgentConfig)
	}{
		{"no stt", func(c *registry.AgentConfig) { c.STT = "" }},
		{"no tts", func(c *registry.AgentConfig) { c.TTS = "" }},
		{"no llm", func(c *registry.AgentConfig) { c.LLM = "" }},
		{"no model", func(c *registry.AgentConfig) { c.Model = "" }},
		{"bad mode", func(c *registry.AgentConfig) { c.Mode = "turbo" }},
		{"negative depth", func(c *registry.AgentConfig) { c.MaxToolDepth = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			r := registry.NewRegistry()
			if err := r.Register(cfg); err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			if _, err := r.Resolve("test"); !errors.Is(err, registry.ErrConfigInvalid) {
				t.Errorf("Resolve() error = %v, want ErrConfigInvalid", err)
			}
		})
	}
}

func TestResolveReturnsCopy(t *testing.T) {
	cfg := validConfig()
	cfg.Schemas = []tools.Schema{{Name: "get_time", Description: "clock"}}

	r := registry.NewRegistry()
	if err := r.Register(cfg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	first, err := r.Resolve("test")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	first.Schemas[0].Name = "mutated"
	first.Model = "mutated"

	second, err := r.Resolve("test")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if second.Schemas[0].Name != "get_time" {
		t.Errorf("schema name = %q, registry was mutated through a resolved copy", second.Schemas[0].Name)
	}
	if second.Model != "test-model" {
		t.Errorf("model = %q, registry was mutated through a resolved copy", second.Model)
	}
}

func TestBuiltins(t *testing.T) {
	t.Run("offline without credentials", func(t *testing.T) {
		r := registry.NewRegistry()
		env := config.Env{OllamaBaseURL: "http://localhost:11434/v1"}
		if err := registry.RegisterBuiltins(r, env); err != nil {
			t.Fatalf("RegisterBuiltins() error = %v", err)
		}

		for _, name := range []string{"companion", "offline", "cloud", "echo"} {
			if _, err := r.Resolve(name); err != nil {
				t.Errorf("Resolve(%q) error = %v", name, err)
			}
		}

		companion, _ := r.Resolve("companion")
		if companion.LLM != "ollama" {
			t.Errorf("companion LLM = %q, want ollama without credentials", companion.LLM)
		}
		if companion.Mode != registry.ModeOffline {
			t.Errorf("companion Mode = %q, want offline", companion.Mode)
		}
	})

	t.Run("cloud with credentials", func(t *testing.T) {
		r := registry.NewRegistry()
		env := config.Env{OpenAIKey: "sk-test", ElevenLabsKey: "el-test"}
		if err := registry.RegisterBuiltins(r, env); err != nil {
			t.Fatalf("RegisterBuiltins() error = %v", err)
		}

		companion, err := r.Resolve("companion")
		if err != nil {
			t.Fatalf("Resolve(companion) error = %v", err)
		}
		if companion.LLM != "openai" {
			t.Errorf("companion LLM = %q, want openai with credentials", companion.LLM)
		}
		if companion.TTS != "elevenlabs" {
			t.Errorf("companion TTS = %q, want elevenlabs with credentials", companion.TTS)
		}
	})

	t.Run("openai key alone covers speech", func(t *testing.T) {
		r := registry.NewRegistry()
		env := config.Env{OpenAIKey: "sk-test"}
		if err := registry.RegisterBuiltins(r, env); err != nil {
			t.Fatalf("RegisterBuiltins() error = %v", err)
		}

		companion, _ := r.Resolve("companion")
		if companion.LLM != "openai" || companion.TTS != "openai" {
			t.Errorf("companion = %s/%s, want openai/openai", companion.LLM, companion.TTS)
		}
	})

	t.Run("cloud llm without cloud tts", func(t *testing.T) {
		r := registry.NewRegistry()
		env := config.Env{AnthropicKey: "ak-test"}
		if err := registry.RegisterBuiltins(r, env); err != nil {
			t.Fatalf("RegisterBuiltins() error = %v", err)
		}

		companion, _ := r.Resolve("companion")
		if companion.LLM != "anthropic" || companion.TTS != "piper" {
			t.Errorf("companion = %s/%s, want anthropic/piper", companion.LLM, companion.TTS)
		}
	})
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	agent := `{
		"stt": "mock",
		"tts": "mock",
		"llm": "ollama",
		"model": "llama3.2",
		"mode": "offline",
		"llm_timeout_ms": 45000,
		"schemas": [
			{"name": "get_time", "description": "Tell the current time."}
		]
	}`
	if err := os.WriteFile(filepath.Join(dir, "kitchen.json"), []byte(agent), 0644); err != nil {
		t.Fatal(err)
	}

	r := registry.NewRegistry()
	if err := r.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}

	cfg, err := r.Resolve("kitchen")
	if err != nil {
		t.Fatalf("Resolve(kitchen) error = %v", err)
	}
	if cfg.LLMTimeout != 45*time.Second {
		t.Errorf("LLMTimeout = %v, want 45s", cfg.LLMTimeout)
	}
	if len(cfg.Schemas) != 1 || cfg.Schemas[0].Name != "get_time" {
		t.Errorf("Schemas = %+v, want one get_time schema", cfg.Schemas)
	}
}

func TestLoadDirMalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	r := registry.NewRegistry()
	err := r.LoadDir(dir)
	if !errors.Is(err, registry.ErrConfigInvalid) {
		t.Fatalf("LoadDir() error = %v, want ErrConfigInvalid", err)
	}
}

func TestLoadDirMissingDirectory(t *testing.T) {
	r := registry.NewRegistry()
	if err := r.LoadDir(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Fatalf("LoadDir() on missing dir error = %v, want nil", err)
	}
}
