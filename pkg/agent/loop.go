// Package agent runs the turn loop that connects utterance sources,
// transcription, the language model, function dispatch, and speech
// output into one conversation.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumenrobotics/go-aria/pkg/audio"
	"github.com/lumenrobotics/go-aria/pkg/llm"
	"github.com/lumenrobotics/go-aria/pkg/stt"
	"github.com/lumenrobotics/go-aria/pkg/tools"
)

// Loop tuning defaults, applied by NewLoop for zero Config fields.
const (
	DefaultMaxToolDepth = 5
	DefaultTurnBudget   = 32
	DefaultLLMTimeout   = 30 * time.Second
)

// Spoken fallbacks for failures the user should hear about rather than
// meet with silence.
const (
	toolLoopReply   = "I got stuck in a loop of tool calls, sorry — could you rephrase that?"
	llmTimeoutReply = "I didn't get a response, please try again."
)

// ErrNoProvider is returned by NewLoop when no language model is wired.
var ErrNoProvider = errors.New("agent: llm provider is required")

// Speaker voices assistant replies. The application implements it over
// whatever output it has: a synthesis provider plus local playback, a
// device speaker endpoint, or plain logging.
type Speaker interface {
	// Speak blocks until the text has been voiced or ctx is done.
	Speak(ctx context.Context, text string) error

	// Stop aborts playback in progress. Safe to call when idle.
	Stop()
}

// Hooks observe loop activity. Nil fields are skipped. Hooks run on the
// loop goroutine, so keep them fast or hand off.
type Hooks struct {
	// OnStateChange fires on every state transition.
	OnStateChange func(from, to State)

	// OnUserTurn fires once a transcript has been appended.
	OnUserTurn func(turn Turn)

	// OnAssistantTurn fires for the final spoken reply of a turn, not
	// for intermediate tool call requests.
	OnAssistantTurn func(turn Turn)

	// OnToolCall fires after each dispatched call with its result.
	OnToolCall func(call tools.Call, result tools.Result)

	// OnError fires when a turn fails.
	OnError func(err error)
}

// Metrics counts loop activity across turns.
type Metrics struct {
	turns      atomic.Int64
	toolCalls  atomic.Int64
	interrupts atomic.Int64
	errors     atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Turns      int64 `json:"turns"`
	ToolCalls  int64 `json:"tool_calls"`
	Interrupts int64 `json:"interrupts"`
	Errors     int64 `json:"errors"`
}

// Snapshot reads all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Turns:      m.turns.Load(),
		ToolCalls:  m.toolCalls.Load(),
		Interrupts: m.interrupts.Load(),
		Errors:     m.errors.Load(),
	}
}

// Deps are the adapters the loop drives. LLM is required. A nil STT
// drops audio utterances with a warning, a nil Speaker logs replies
// instead of voicing them, and a nil Dispatcher refuses tool calls.
type Deps struct {
	LLM        llm.Provider
	STT        stt.Provider
	Speaker    Speaker
	Dispatcher *tools.Dispatcher
	Schemas    []tools.Schema
}

// Config tunes one loop. Zero fields take the package defaults.
type Config struct {
	// SystemPrompt seeds the conversation.
	SystemPrompt string

	// Model overrides the provider's default model when non-empty.
	Model string

	// MaxToolDepth caps reason/dispatch rounds within one turn.
	MaxToolDepth int

	// TurnBudget caps retained non-system turns between user turns.
	TurnBudget int

	// LLMTimeout bounds each completion attempt.
	LLMTimeout time.Duration

	// Hooks observe activity.
	Hooks Hooks

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Loop owns one conversation and processes utterances one at a time.
type Loop struct {
	cfg    Config
	deps   Deps
	conv   *Conversation
	logger *slog.Logger

	state   atomic.Int32
	metrics Metrics

	turnMu     sync.Mutex
	cancelTurn context.CancelFunc
}

// NewLoop builds a loop with a fresh conversation seeded from
// cfg.SystemPrompt.
func NewLoop(deps Deps, cfg Config) (*Loop, error) {
	if deps.LLM == nil {
		return nil, ErrNoProvider
	}
	if cfg.MaxToolDepth <= 0 {
		cfg.MaxToolDepth = DefaultMaxToolDepth
	}
	if cfg.TurnBudget <= 0 {
		cfg.TurnBudget = DefaultTurnBudget
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = DefaultLLMTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		cfg:    cfg,
		deps:   deps,
		conv:   NewConversation(cfg.SystemPrompt),
		logger: cfg.Logger.With("component", "agent.loop"),
	}, nil
}

// Conversation returns the loop's history for observers.
func (l *Loop) Conversation() *Conversation {
	return l.conv
}

// Metrics returns a snapshot of the loop's counters.
func (l *Loop) Metrics() MetricsSnapshot {
	return l.metrics.Snapshot()
}

// State returns the loop's current state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Run consumes utterances until ctx is done or the channel closes, then
// returns nil. Utterances are processed strictly one at a time; input
// arriving mid-turn waits in the channel.
func (l *Loop) Run(ctx context.Context, utterances <-chan audio.Utterance) error {
	l.setState(StateIdle)
	for {
		l.setState(StateListening)
		select {
		case <-ctx.Done():
			l.setState(StateIdle)
			l.logger.Info("loop stopped", "turns", l.metrics.turns.Load())
			return nil
		case u, ok := <-utterances:
			if !ok {
				l.setState(StateIdle)
				l.logger.Info("utterance source closed", "turns", l.metrics.turns.Load())
				return nil
			}
			l.handleUtterance(ctx, u)
		}
	}
}

// Interrupt cancels the turn in flight and stops playback. This is the
// barge-in path: wire it to the capture gate's speech-start callback or
// a dashboard button. Safe from any goroutine; a no-op while idle.
func (l *Loop) Interrupt() {
	l.turnMu.Lock()
	cancel := l.cancelTurn
	l.turnMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	l.metrics.interrupts.Add(1)
	if l.deps.Speaker != nil {
		l.deps.Speaker.Stop()
	}
	l.logger.Debug("interrupt requested")
}

func (l *Loop) handleUtterance(ctx context.Context, u audio.Utterance) {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	l.setCancel(cancel)
	defer l.setCancel(nil)

	text, ok := l.transcribe(turnCtx, u)
	if !ok {
		l.setState(StateIdle)
		return
	}

	userTurn := Turn{Role: llm.RoleUser, Content: text}
	l.conv.Append(userTurn)
	l.metrics.turns.Add(1)
	if l.cfg.Hooks.OnUserTurn != nil {
		l.cfg.Hooks.OnUserTurn(userTurn)
	}
	l.logger.Info("user turn", "text", text)

	reply, ok := l.reason(turnCtx)
	if !ok {
		l.setState(StateIdle)
		return
	}

	l.respond(turnCtx, reply)
	l.conv.Truncate(l.cfg.TurnBudget)
	l.setState(StateIdle)
}

// transcribe resolves an utterance to user text. ok is false when there
// is nothing to reason about: empty input, no transcriber, a failed or
// interrupted transcription.
func (l *Loop) transcribe(ctx context.Context, u audio.Utterance) (string, bool) {
	l.setState(StateTranscribing)

	if u.IsText() {
		text := strings.TrimSpace(u.Text)
		return text, text != ""
	}
	if len(u.PCM) == 0 {
		return "", false
	}
	if l.deps.STT == nil {
		l.logger.Warn("dropping audio utterance, no transcriber wired", "bytes", len(u.PCM))
		return "", false
	}

	start := time.Now()
	text, err := l.deps.STT.Transcribe(ctx, u.PCM)
	if err != nil {
		if ctx.Err() != nil {
			l.logger.Info("transcription interrupted")
			return "", false
		}
		l.fail("transcription failed", err)
		return "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		l.logger.Debug("empty transcript, skipping turn", "audio", u.Duration)
		return "", false
	}
	l.logger.Debug("transcribed",
		"latency_ms", time.Since(start).Milliseconds(),
		"audio", u.Duration,
	)
	return text, true
}

// reason obtains the assistant's reply, dispatching requested function
// calls for up to MaxToolDepth rounds. The call chain is buffered and
// committed to the conversation only once it resolves, so an interrupt
// or hard failure never leaves a dangling tool request in history.
func (l *Loop) reason(ctx context.Context) (string, bool) {
	l.setState(StateReasoning)

	var pending []Turn
	depth := 0

	for {
		messages := append(l.conv.Messages(), messagesFrom(pending)...)
		resp, err := l.complete(ctx, messages)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("completion interrupted", "depth", depth)
				return "", false
			}
			if isTimeout(err) {
				// Tool effects already happened; keep their record even
				// though the model never answered.
				l.commit(pending)
				l.metrics.errors.Add(1)
				if l.cfg.Hooks.OnError != nil {
					l.cfg.Hooks.OnError(err)
				}
				l.logger.Error("completion timed out after retry", "error", err)
				return llmTimeoutReply, true
			}
			l.commit(pending)
			l.fail("completion failed", err)
			return "", false
		}

		if len(resp.ToolCalls) == 0 {
			l.commit(pending)
			return resp.Message.Content, true
		}

		depth++
		if depth > l.cfg.MaxToolDepth {
			l.logger.Warn("tool call depth exceeded, abandoning chain",
				"depth", depth,
				"max", l.cfg.MaxToolDepth,
			)
			l.commit(pending)
			return toolLoopReply, true
		}

		l.setState(StateToolDispatch)
		pending = append(pending, Turn{
			Role:      llm.RoleAssistant,
			Content:   resp.Message.Content,
			ToolCalls: resp.Message.ToolCalls,
			At:        time.Now(),
		})
		for _, call := range resp.ToolCalls {
			if ctx.Err() != nil {
				l.logger.Info("tool chain interrupted", "depth", depth)
				return "", false
			}
			pending = append(pending, l.dispatch(call))
		}
		l.setState(StateReasoning)
	}
}

// dispatch runs one call and records its result as a tool turn.
func (l *Loop) dispatch(call tools.Call) Turn {
	var result tools.Result
	if l.deps.Dispatcher == nil {
		result = tools.Result{
			CallID:  call.ID,
			Name:    call.Name,
			Content: "Error: no functions are available",
			IsError: true,
		}
	} else {
		result = l.deps.Dispatcher.Dispatch(call)
	}
	l.metrics.toolCalls.Add(1)
	if l.cfg.Hooks.OnToolCall != nil {
		l.cfg.Hooks.OnToolCall(call, result)
	}
	return Turn{
		Role:       llm.RoleTool,
		Content:    result.Content,
		ToolCallID: result.CallID,
		Name:       result.Name,
		At:         time.Now(),
	}
}

// complete performs one completion attempt with the configured timeout,
// retrying once when the first attempt times out.
func (l *Loop) complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	resp, err := l.completeOnce(ctx, messages)
	if err == nil || ctx.Err() != nil || !isTimeout(err) {
		return resp, err
	}
	l.logger.Warn("completion timed out, retrying", "timeout", l.cfg.LLMTimeout)
	return l.completeOnce(ctx, messages)
}

func (l *Loop) completeOnce(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	tctx, cancel := context.WithTimeout(ctx, l.cfg.LLMTimeout)
	defer cancel()
	return l.deps.LLM.Complete(tctx, &llm.Request{
		Messages: messages,
		Model:    l.cfg.Model,
		Schemas:  l.deps.Schemas,
	})
}

// respond appends the assistant turn and voices it. Synthesis failures
// are reported but never fail the turn; the reply already happened.
func (l *Loop) respond(ctx context.Context, reply string) {
	turn := Turn{Role: llm.RoleAssistant, Content: reply}
	l.conv.Append(turn)
	if l.cfg.Hooks.OnAssistantTurn != nil {
		l.cfg.Hooks.OnAssistantTurn(turn)
	}

	l.setState(StateResponding)
	if reply == "" {
		return
	}
	if l.deps.Speaker == nil {
		l.logger.Info("assistant reply", "text", reply)
		return
	}
	if err := l.deps.Speaker.Speak(ctx, reply); err != nil {
		if ctx.Err() != nil {
			l.logger.Info("playback interrupted")
			return
		}
		l.metrics.errors.Add(1)
		if l.cfg.Hooks.OnError != nil {
			l.cfg.Hooks.OnError(err)
		}
		l.logger.Warn("speech synthesis failed", "error", err)
	}
}

// commit moves a resolved tool chain into the conversation.
func (l *Loop) commit(pending []Turn) {
	for _, t := range pending {
		l.conv.Append(t)
	}
}

// fail routes a turn failure through the error state.
func (l *Loop) fail(msg string, err error) {
	l.setState(StateError)
	l.metrics.errors.Add(1)
	l.logger.Error(msg, "error", err)
	if l.cfg.Hooks.OnError != nil {
		l.cfg.Hooks.OnError(err)
	}
}

func (l *Loop) setState(s State) {
	from := State(l.state.Swap(int32(s)))
	if from == s {
		return
	}
	if l.cfg.Hooks.OnStateChange != nil {
		l.cfg.Hooks.OnStateChange(from, s)
	}
}

func (l *Loop) setCancel(cancel context.CancelFunc) {
	l.turnMu.Lock()
	l.cancelTurn = cancel
	l.turnMu.Unlock()
}

func isTimeout(err error) bool {
	return errors.Is(err, llm.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
