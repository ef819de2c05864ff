// Package registry holds named agent configurations and resolves them for
// the runtime. A configuration names the backends an agent runs on (STT,
// LLM, TTS), the model and voice, the system prompt, and the function
// schemas the agent may call. Configurations are registered once and
// resolved by name; Resolve returns a validated deep copy so callers can
// never mutate a registered configuration.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lumenrobotics/go-aria/pkg/tools"
)

// Sentinel errors for configuration resolution.
var (
	// ErrConfigNotFound is returned by Resolve when no configuration is
	// registered under the requested name.
	ErrConfigNotFound = errors.New("registry: agent config not found")

	// ErrConfigInvalid is returned by Resolve when a registered
	// configuration is malformed, for example when two function schemas
	// share a name or a required backend field is empty.
	ErrConfigInvalid = errors.New("registry: agent config invalid")
)

// Loop option defaults applied by Resolve when a field is zero.
const (
	DefaultSilenceTimeout = 800 * time.Millisecond
	DefaultMaxToolDepth   = 5
	DefaultTurnBudget     = 32
	DefaultCloudTimeout   = 30 * time.Second
	DefaultLocalTimeout   = 120 * time.Second // local models are slow
)

// Agent modes. Mode selects the default LLM timeout and is reported on the
// dashboard; it does not by itself pick backends.
const (
	ModeOffline = "offline"
	ModeCloud   = "cloud"
)

// AgentConfig describes one runnable agent. The struct is data only:
// backend identifiers are resolved through the stt/tts/llm factories at
// startup, and schema handlers are bound by the application.
type AgentConfig struct {
	// Name is the key the agent is resolved by, e.g. "companion".
	Name string `json:"name"`

	// Backend identifiers, resolved through each package's factory.
	STT string `json:"stt"` // "whisper", "mock"
	TTS string `json:"tts"` // "elevenlabs", "elevenlabs-ws", "openai", "piper", "mock"
	LLM string `json:"llm"` // "openai", "ollama", "anthropic", "gemini", "mock"

	// Model is the LLM model identifier, e.g. "gpt-4o-mini" or "llama3.2".
	Model string `json:"model"`

	// BaseURL overrides the LLM endpoint (required for ollama).
	BaseURL string `json:"base_url,omitempty"`

	// Voice is the TTS voice identifier.
	Voice string `json:"voice,omitempty"`

	// Mode is ModeOffline or ModeCloud; empty defaults to ModeCloud.
	Mode string `json:"mode,omitempty"`

	// DeviceIP is the address of the robot body, if any.
	DeviceIP string `json:"device_ip,omitempty"`

	// SystemPrompt seeds the conversation.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Schemas are the functions exposed to the LLM. Handlers are bound at
	// startup; configurations loaded from JSON declare schemas unbound.
	Schemas []tools.Schema `json:"schemas,omitempty"`

	// Loop options. Zero values take the package defaults at Resolve time.
	SilenceTimeout time.Duration `json:"silence_timeout,omitempty"`
	MaxToolDepth   int           `json:"max_tool_depth,omitempty"`
	TurnBudget     int           `json:"turn_budget,omitempty"`
	LLMTimeout     time.Duration `json:"llm_timeout,omitempty"`
}

// clone returns a deep copy. Schemas share handlers (funcs are immutable)
// but the slice itself is copied, as are param slices.
func (c AgentConfig) clone() AgentConfig {
	out := c
	if c.Schemas != nil {
		out.Schemas = make([]tools.Schema, len(c.Schemas))
		for i, s := range c.Schemas {
			cs := s
			if s.Params != nil {
				cs.Params = append([]tools.Param(nil), s.Params...)
			}
			out.Schemas[i] = cs
		}
	}
	return out
}

// validate checks structural invariants. It does not touch the network or
// the backend factories; unknown backend identifiers surface at startup.
func (c AgentConfig) validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is empty", ErrConfigInvalid)
	}
	if c.STT == "" {
		return fmt.Errorf("%w: %q has no stt backend", ErrConfigInvalid, c.Name)
	}
	if c.TTS == "" {
		return fmt.Errorf("%w: %q has no tts backend", ErrConfigInvalid, c.Name)
	}
	if c.LLM == "" {
		return fmt.Errorf("%w: %q has no llm backend", ErrConfigInvalid, c.Name)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: %q has no model", ErrConfigInvalid, c.Name)
	}
	if c.Mode != "" && c.Mode != ModeOffline && c.Mode != ModeCloud {
		return fmt.Errorf("%w: %q has unknown mode %q", ErrConfigInvalid, c.Name, c.Mode)
	}
	if c.MaxToolDepth < 0 {
		return fmt.Errorf("%w: %q has negative max_tool_depth", ErrConfigInvalid, c.Name)
	}
	if c.TurnBudget < 0 {
		return fmt.Errorf("%w: %q has negative turn_budget", ErrConfigInvalid, c.Name)
	}
	// NewTable rejects duplicate schema names.
	if _, err := tools.NewTable(c.Schemas); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrConfigInvalid, c.Name, err)
	}
	return nil
}

// withDefaults fills zero loop options on a copy.
func (c AgentConfig) withDefaults() AgentConfig {
	if c.Mode == "" {
		c.Mode = ModeCloud
	}
	if c.SilenceTimeout == 0 {
		c.SilenceTimeout = DefaultSilenceTimeout
	}
	if c.MaxToolDepth == 0 {
		c.MaxToolDepth = DefaultMaxToolDepth
	}
	if c.TurnBudget == 0 {
		c.TurnBudget = DefaultTurnBudget
	}
	if c.LLMTimeout == 0 {
		if c.Mode == ModeOffline {
			c.LLMTimeout = DefaultLocalTimeout
		} else {
			c.LLMTimeout = DefaultCloudTimeout
		}
	}
	return c
}

// Registry is a thread-safe store of agent configurations.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]AgentConfig
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{configs: make(map[string]AgentConfig)}
}

// Register stores a configuration under its name, replacing any previous
// entry. Registering under an empty name fails; all other validation is
// deferred to Resolve so a bad file never blocks the rest of the registry.
func (r *Registry) Register(cfg AgentConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: name is empty", ErrConfigInvalid)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg.clone()
	return nil
}

// Resolve returns a validated copy of the named configuration with loop
// defaults applied. The registry itself is never mutated.
func (r *Registry) Resolve(name string) (AgentConfig, error) {
	r.mu.RLock()
	cfg, ok := r.configs[name]
	r.mu.RUnlock()
	if !ok {
		return AgentConfig{}, fmt.Errorf("%w: %q (known: %v)", ErrConfigNotFound, name, r.Names())
	}
	if err := cfg.validate(); err != nil {
		return AgentConfig{}, err
	}
	return cfg.withDefaults().clone(), nil
}

// Names returns the registered agent names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
