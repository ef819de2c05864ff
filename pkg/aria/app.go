package aria

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lumenrobotics/go-aria/pkg/agent"
	"github.com/lumenrobotics/go-aria/pkg/audio"
	"github.com/lumenrobotics/go-aria/pkg/device"
	"github.com/lumenrobotics/go-aria/pkg/hub"
	"github.com/lumenrobotics/go-aria/pkg/llm"
	"github.com/lumenrobotics/go-aria/pkg/memory"
	"github.com/lumenrobotics/go-aria/pkg/registry"
	"github.com/lumenrobotics/go-aria/pkg/stt"
	"github.com/lumenrobotics/go-aria/pkg/tools"
	"github.com/lumenrobotics/go-aria/pkg/tts"
	"github.com/lumenrobotics/go-aria/pkg/web"
)

// App is the application orchestrator. It owns every component's
// lifecycle: New resolves configuration, Init constructs and wires the
// adapters, Run drives the loop until the context ends, Shutdown
// releases resources.
type App struct {
	cfg      Config
	agentCfg registry.AgentConfig
	logger   *slog.Logger

	sttProvider stt.Provider
	ttsProvider tts.Provider
	llmProvider llm.Provider
	statuses    []web.BackendStatus

	mem     *memory.Memory
	dev     device.Controller
	player  *audio.Player
	speaker *Speaker
	source  audio.Source

	dispatcher *tools.Dispatcher
	schemas    []tools.Schema
	loop       *agent.Loop

	events    *hub.Hub
	dashboard *web.Server
}

// New resolves the named agent configuration. Configuration errors are
// the only failures that should terminate the process before a
// conversation starts, and they all surface here or in Init.
func New(cfg Config, reg *registry.Registry) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	agentCfg, err := reg.Resolve(cfg.AgentName)
	if err != nil {
		return nil, err
	}
	if agentCfg.SystemPrompt == "" {
		agentCfg.SystemPrompt = DefaultSystemPrompt
	}
	return &App{
		cfg:      cfg,
		agentCfg: agentCfg,
		logger:   slog.Default().With("agent", agentCfg.Name),
	}, nil
}

// Agent returns the resolved agent configuration.
func (a *App) Agent() registry.AgentConfig {
	return a.agentCfg
}

// Init constructs all components. Optional backends that cannot be
// built degrade and are reported; only an unusable language model or a
// broken tool table is fatal.
func (a *App) Init() error {
	fmt.Printf("🤖 aria — agent %q (%s mode)\n", a.agentCfg.Name, a.agentCfg.Mode)

	a.initMemory()
	a.initDevice()

	if err := a.initLLM(); err != nil {
		return err
	}
	a.initSTT()
	a.initTTS()

	if err := a.initTools(); err != nil {
		return err
	}
	if err := a.initLoop(); err != nil {
		return err
	}
	a.initDashboard()

	for _, st := range a.statuses {
		if st.Available {
			fmt.Printf("   %s: %s ✅\n", st.Capability, st.Provider)
		} else {
			fmt.Printf("   %s: %s ⚠️  %s\n", st.Capability, st.Provider, st.Reason)
		}
	}
	return nil
}

// Run starts the input source, the event hub, and the dashboard, then
// blocks in the agent loop until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.events != nil {
		go a.events.Run(ctx)
	}
	if a.dashboard != nil {
		go func() {
			if err := a.dashboard.Listen(a.cfg.Env.DashboardPort); err != nil {
				a.logger.Warn("dashboard server stopped", "error", err)
			}
		}()
	}

	a.source = a.pickSource()
	if err := a.source.Start(ctx); err != nil {
		return fmt.Errorf("starting %s input: %w", a.source.Name(), err)
	}
	defer a.source.Stop()

	if a.source.Name() == "console" {
		fmt.Println("\n⌨️  Type to talk (Ctrl+C to exit)")
	} else {
		fmt.Println("\n🎤 Listening! Speak to start a conversation (Ctrl+C to exit)")
	}

	return a.loop.Run(ctx, a.source.Utterances())
}

// Shutdown releases all resources. Safe after a failed Init.
func (a *App) Shutdown() {
	fmt.Println("\n👋 Goodbye!")

	if a.dashboard != nil {
		a.dashboard.Shutdown()
	}
	if a.source != nil {
		a.source.Close()
	}
	if a.speaker != nil {
		a.speaker.Stop()
	}
	for _, p := range []interface{ Close() error }{a.sttProvider, a.ttsProvider, a.llmProvider} {
		if p != nil {
			p.Close()
		}
	}
	if a.mem != nil {
		a.mem.Close()
	}
}

func (a *App) initMemory() {
	if a.cfg.Env.MongoURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store, err := memory.NewMongoStore(ctx, a.cfg.Env.MongoURI, a.cfg.Env.URID)
		if err == nil {
			a.mem = memory.NewWithStore(store)
			fmt.Printf("📝 Memory synced via MongoDB (urid %s)\n", a.cfg.Env.URID)
			return
		}
		a.logger.Warn("mongo unavailable, falling back to file memory", "error", err)
	}
	path := a.cfg.memoryPath()
	a.mem = memory.NewWithFile(path)
	fmt.Printf("📝 Memory loaded from %s\n", path)
}

func (a *App) initDevice() {
	if a.agentCfg.DeviceIP == "" {
		return
	}
	ctrl := device.NewHTTPController(a.agentCfg.DeviceIP)
	status, err := ctrl.DaemonStatus()
	if err != nil {
		a.logger.Warn("device daemon unreachable, device tools degrade", "ip", a.agentCfg.DeviceIP, "error", err)
		return
	}
	if status != "running" {
		a.logger.Warn("device daemon not running", "status", status)
	}
	a.dev = ctrl
	fmt.Printf("🔌 Device connected at %s\n", a.agentCfg.DeviceIP)
}

// initLLM builds the language model provider. Unlike the speech
// adapters there is no useful degraded mode for a non-mock agent, so an
// unavailable backend is an initialization failure.
func (a *App) initLLM() error {
	p, status := llm.New(a.agentCfg.LLM, llm.Config{
		BaseURL: a.agentCfg.BaseURL,
		APIKey:  a.llmKey(),
		Model:   a.agentCfg.Model,
		Timeout: a.agentCfg.LLMTimeout,
		Logger:  a.logger,
	})
	a.record("llm", status.Provider, status.Available, status.Reason)
	if !status.Available {
		return fmt.Errorf("llm backend %q unavailable: %s", a.agentCfg.LLM, status.Reason)
	}
	a.llmProvider = p
	return nil
}

// initSTT builds the transcriber. Failure is not fatal: the loop runs
// on console input instead.
func (a *App) initSTT() {
	if a.agentCfg.STT == stt.BackendWhisper && a.cfg.Env.WhisperBaseURL == "" && a.cfg.Env.OpenAIKey == "" {
		a.record("stt", a.agentCfg.STT, false,
			"no OPENAI_API_KEY and no WHISPER_BASE_URL, using console input")
		return
	}

	opts := []stt.Option{stt.WithLogger(a.logger)}
	if a.cfg.Env.WhisperBaseURL != "" {
		opts = append(opts, stt.WithBaseURL(a.cfg.Env.WhisperBaseURL))
	}
	if a.cfg.Env.OpenAIKey != "" {
		opts = append(opts, stt.WithAPIKey(a.cfg.Env.OpenAIKey))
	}

	p, status := stt.New(a.agentCfg.STT, opts...)
	a.record("stt", status.Provider, status.Available, status.Reason)
	if status.Available {
		a.sttProvider = p
	}
}

// initTTS builds the synthesizer as a fallback chain behind the
// configured backend: piper when installed, then the mock, which logs
// what it would have spoken. A cloud API failure mid-session degrades
// to the next provider instead of losing the reply.
func (a *App) initTTS() {
	opts := []tts.Option{tts.WithLogger(a.logger)}
	if a.agentCfg.Voice != "" {
		opts = append(opts, tts.WithVoice(a.agentCfg.Voice))
	}
	switch a.agentCfg.TTS {
	case tts.BackendElevenLabs, tts.BackendElevenLabsWS:
		opts = append(opts,
			tts.WithAPIKey(a.cfg.Env.ElevenLabsKey),
			tts.WithOutputFormat(tts.EncodingPCM22),
		)
	case tts.BackendOpenAI:
		opts = append(opts,
			tts.WithAPIKey(a.cfg.Env.OpenAIKey),
			tts.WithOutputFormat(tts.EncodingPCM24),
		)
	}

	p, status := tts.New(a.agentCfg.TTS, opts...)
	a.record("tts", status.Provider, status.Available, status.Reason)
	if !status.Available {
		a.logger.Warn("tts unavailable, replies degrade to the fallback chain",
			"backend", a.agentCfg.TTS,
			"reason", status.Reason,
		)
	}
	a.ttsProvider = ttsChain(p, status.Available, a.agentCfg.TTS, a.logger)

	a.player = audio.NewPlayer(a.logger)
	var spk device.SpeakerController
	if a.dev != nil {
		spk = a.dev
	}
	a.speaker = NewSpeaker(a.ttsProvider, a.player, spk, a.logger)
}

// ttsChain orders the synthesis fallbacks behind the configured
// backend. The mock terminates every chain, so Synthesize never fails
// outright. A mock backend gets no chain; its config is the fallback.
func ttsChain(primary tts.Provider, available bool, backend string, logger *slog.Logger) tts.Provider {
	if backend == tts.BackendMock {
		return primary
	}

	var providers []tts.Provider
	if available {
		providers = append(providers, primary)
	}
	if backend != tts.BackendPiper {
		if piper, st := tts.New(tts.BackendPiper, tts.WithLogger(logger)); st.Available {
			providers = append(providers, piper)
		}
	}
	providers = append(providers, tts.NewMock())

	if len(providers) == 1 {
		return providers[0]
	}
	chain, err := tts.NewChainWithLogger(logger, providers...)
	if err != nil {
		return providers[0]
	}
	return chain
}

// initTools merges the built-in tool set with the agent's configured
// schemas. A name collision here is a configuration error.
func (a *App) initTools() error {
	a.schemas = append(Tools(ToolDeps{Device: a.dev, Memory: a.mem}), a.agentCfg.Schemas...)
	table, err := tools.NewTable(a.schemas)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", registry.ErrConfigInvalid, a.agentCfg.Name, err)
	}
	a.dispatcher = tools.NewDispatcher(table, a.logger)
	return nil
}

func (a *App) initLoop() error {
	loop, err := agent.NewLoop(agent.Deps{
		LLM:        a.llmProvider,
		STT:        a.sttProvider,
		Speaker:    a.speaker,
		Dispatcher: a.dispatcher,
		Schemas:    a.schemas,
	}, agent.Config{
		SystemPrompt: a.agentCfg.SystemPrompt,
		Model:        a.agentCfg.Model,
		MaxToolDepth: a.agentCfg.MaxToolDepth,
		TurnBudget:   a.agentCfg.TurnBudget,
		LLMTimeout:   a.agentCfg.LLMTimeout,
		Hooks:        a.hooks(),
		Logger:       a.logger,
	})
	if err != nil {
		return err
	}
	a.loop = loop
	return nil
}

func (a *App) initDashboard() {
	if !a.cfg.Dashboard {
		return
	}
	a.events = hub.New(a.logger)
	a.dashboard = web.NewServer(web.Deps{
		AgentName:  a.agentCfg.Name,
		URID:       a.cfg.Env.URID,
		Mode:       a.agentCfg.Mode,
		Loop:       a.loop,
		Dispatcher: a.dispatcher,
		Schemas:    a.schemas,
		Backends:   a.statuses,
		Hub:        a.events,
		Logger:     a.logger,
	})
}

// hooks forwards loop activity to the dashboard event stream.
func (a *App) hooks() agent.Hooks {
	return agent.Hooks{
		OnStateChange: func(from, to agent.State) {
			a.broadcast(hub.KindState, map[string]any{"from": from.String(), "to": to.String()})
		},
		OnUserTurn: func(turn agent.Turn) {
			a.broadcast(hub.KindUserTurn, map[string]any{"text": turn.Content})
		},
		OnAssistantTurn: func(turn agent.Turn) {
			a.broadcast(hub.KindAssistantTurn, map[string]any{"text": turn.Content})
		},
		OnToolCall: func(call tools.Call, result tools.Result) {
			a.broadcast(hub.KindToolCall, map[string]any{
				"name":     call.Name,
				"content":  result.Content,
				"is_error": result.IsError,
			})
		},
		OnError: func(err error) {
			a.broadcast(hub.KindError, map[string]any{"error": err.Error()})
		},
	}
}

func (a *App) broadcast(kind string, payload map[string]any) {
	if a.events == nil {
		return
	}
	a.events.BroadcastEvent(kind, payload)
}

// pickSource chooses the input: console when forced or when there is no
// transcriber, otherwise the microphone with console as fallback.
func (a *App) pickSource() audio.Source {
	if a.cfg.TextOnly {
		return audio.NewConsoleSource(os.Stdin, a.logger)
	}
	if a.sttProvider == nil {
		a.logger.Info("no transcriber, using console input")
		return audio.NewConsoleSource(os.Stdin, a.logger)
	}

	capCfg := audio.DefaultCaptureConfig()
	capCfg.SilenceTimeout = a.agentCfg.SilenceTimeout
	mic, err := audio.NewMicSource(capCfg, a.logger)
	if err != nil {
		a.logger.Warn("microphone unavailable, using console input", "error", err)
		return audio.NewConsoleSource(os.Stdin, a.logger)
	}
	// Speaking over the assistant aborts the turn in flight.
	mic.OnSpeechStart = a.loop.Interrupt
	return mic
}

// record stores a backend status for the dashboard. The stt, tts, and
// llm packages each declare their own Status type, so this takes the
// fields rather than any one of them.
func (a *App) record(capability, provider string, available bool, reason string) {
	a.statuses = append(a.statuses, web.BackendStatus{
		Capability: capability,
		Provider:   provider,
		Available:  available,
		Reason:     reason,
	})
}

func (a *App) llmKey() string {
	switch a.agentCfg.LLM {
	case llm.BackendOpenAI:
		return a.cfg.Env.OpenAIKey
	case llm.BackendAnthropic:
		return a.cfg.Env.AnthropicKey
	case llm.BackendGemini:
		return a.cfg.Env.GeminiKey
	default:
		// Local providers like ollama need no key.
		return ""
	}
}

