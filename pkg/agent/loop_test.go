package agent_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lumenrobotics/go-aria/pkg/agent"
	"github.com/lumenrobotics/go-aria/pkg/audio"
	"github.com/lumenrobotics/go-aria/pkg/llm"
	"github.com/lumenrobotics/go-aria/pkg/stt"
	"github.com/lumenrobotics/go-aria/pkg/tools"
)

// recordingSpeaker captures what the loop tries to voice.
type recordingSpeaker struct {
	mu    sync.Mutex
	texts []string
	stops int
	err   error
}

func (s *recordingSpeaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return s.err
}

func (s *recordingSpeaker) Stop() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
}

func (s *recordingSpeaker) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.texts))
	copy(out, s.texts)
	return out
}

func (s *recordingSpeaker) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

func textUtterance(text string) audio.Utterance {
	return audio.Utterance{Text: text}
}

func pcmUtterance(n int) audio.Utterance {
	return audio.Utterance{
		PCM:        make([]byte, n),
		SampleRate: 16000,
		Duration:   100 * time.Millisecond,
	}
}

func mustDispatcher(t *testing.T, schemas ...tools.Schema) *tools.Dispatcher {
	t.Helper()
	table, err := tools.NewTable(schemas)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tools.NewDispatcher(table, nil)
}

// runTurns feeds the utterances through a fresh Run call and waits for
// the loop to drain them.
func runTurns(t *testing.T, loop *agent.Loop, utterances ...audio.Utterance) {
	t.Helper()
	ch := make(chan audio.Utterance, len(utterances))
	for _, u := range utterances {
		ch <- u
	}
	close(ch)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := loop.Run(ctx, ch); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestNewLoopRequiresProvider(t *testing.T) {
	_, err := agent.NewLoop(agent.Deps{}, agent.Config{})
	if !errors.Is(err, agent.ErrNoProvider) {
		t.Errorf("expected ErrNoProvider, got %v", err)
	}
}

func TestLoopTextTurn(t *testing.T) {
	mock := llm.WithReply("Hello there!")
	speaker := &recordingSpeaker{}
	loop, err := agent.NewLoop(
		agent.Deps{LLM: mock, Speaker: speaker},
		agent.Config{SystemPrompt: "You are a helpful robot.", Model: "test-model"},
	)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	runTurns(t, loop, textUtterance("hi"))

	if got := speaker.spoken(); len(got) != 1 || got[0] != "Hello there!" {
		t.Errorf("expected the reply to be spoken once, got %v", got)
	}

	turns := loop.Conversation().Turns()
	if len(turns) != 3 {
		t.Fatalf("expected system+user+assistant, got %d turns", len(turns))
	}
	if turns[1].Role != llm.RoleUser || turns[1].Content != "hi" {
		t.Errorf("unexpected user turn: %+v", turns[1])
	}
	if turns[2].Role != llm.RoleAssistant || turns[2].Content != "Hello there!" {
		t.Errorf("unexpected assistant turn: %+v", turns[2])
	}

	req := mock.LastRequest()
	if req == nil {
		t.Fatal("expected a completion request")
	}
	if req.Model != "test-model" {
		t.Errorf("expected configured model on the request, got %q", req.Model)
	}
	if len(req.Messages) != 2 {
		t.Errorf("expected system+user on the wire, got %d messages", len(req.Messages))
	}

	if m := loop.Metrics(); m.Turns != 1 || m.Errors != 0 {
		t.Errorf("unexpected metrics: %+v", m)
	}
}

func TestLoopBlankTextGoesIdle(t *testing.T) {
	mock := llm.WithReply("should never be asked")
	loop, err := agent.NewLoop(agent.Deps{LLM: mock}, agent.Config{SystemPrompt: "sys"})
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	runTurns(t, loop, textUtterance("   "))

	if n := mock.CallCount("Complete"); n != 0 {
		t.Errorf("blank input must not reach the model, got %d calls", n)
	}
	if got := loop.Conversation().Len(); got != 1 {
		t.Errorf("expected only the system turn, got %d", got)
	}
	if m := loop.Metrics(); m.Turns != 0 {
		t.Errorf("blank input must not count as a turn: %+v", m)
	}
}

func TestLoopTranscribesAudio(t *testing.T) {
	transcriber := stt.NewMockWithTranscript("turn on the light")
	mock := llm.WithReply("Done.")
	loop, err := agent.NewLoop(
		agent.Deps{LLM: mock, STT: transcriber},
		agent.Config{SystemPrompt: "sys"},
	)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	runTurns(t, loop, pcmUtterance(3200))

	if n := transcriber.CallCount("Transcribe"); n != 1 {
		t.Errorf("expected 1 transcription, got %d", n)
	}
	turns := loop.Conversation().Turns()
	if len(turns) != 3 || turns[1].Content != "turn on the light" {
		t.Errorf("expected the transcript as the user turn, got %+v", turns)
	}
}

func TestLoopSkipsSilentTranscript(t *testing.T) {
	mock := llm.WithReply("should never be asked")
	loop, err := agent.NewLoop(
		agent.Deps{LLM: mock, STT: stt.NewMock()},
		agent.Config{SystemPrompt: "sys"},
	)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	runTurns(t, loop, pcmUtterance(3200))

	if n := mock.CallCount("Complete"); n != 0 {
		t.Errorf("silence must not reach the model, got %d calls", n)
	}
	if got := loop.Conversation().Len(); got != 1 {
		t.Errorf("expected only the system turn, got %d", got)
	}
}

func TestLoopDropsAudioWithoutTranscriber(t *testing.T) {
	mock := llm.WithReply("should never be asked")
	loop, err := agent.NewLoop(agent.Deps{LLM: mock}, agent.Config{})
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	runTurns(t, loop, pcmUtterance(3200))

	if n := mock.CallCount("Complete"); n != 0 {
		t.Errorf("audio without a transcriber must be dropped, got %d calls", n)
	}
}

func TestLoopToolDispatch(t *testing.T) {
	calls := 0
	mock := &llm.Mock{
		CompleteFunc: func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
			calls++
			if calls == 1 {
				return &llm.Response{
					Message: llm.Message{
						Role:      llm.RoleAssistant,
						ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "get_time", Arguments: "{}"}},
					},
					ToolCalls:    []tools.Call{{ID: "call-1", Name: "get_time", Args: map[string]any{}}},
					FinishReason: "tool_calls",
				}, nil
			}
			return &llm.Response{
				Message:      llm.NewAssistantMessage("It is noon."),
				FinishReason: "stop",
			}, nil
		},
	}

	dispatcher := mustDispatcher(t, tools.Schema{
		Name:        "get_time",
		Description: "Current time",
		Handler: func(args map[string]any) (string, error) {
			return "12:00", nil
		},
	})

	var hookCalls []string
	speaker := &recordingSpeaker{}
	loop, err := agent.NewLoop(
		agent.Deps{LLM: mock, Speaker: speaker, Dispatcher: dispatcher},
		agent.Config{
			SystemPrompt: "sys",
			Hooks: agent.Hooks{
				OnToolCall: func(call tools.Call, result tools.Result) {
					hookCalls = append(hookCalls, call.Name+"="+result.Content)
				},
			},
		},
	)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	runTurns(t, loop, textUtterance("what time is it"))

	turns := loop.Conversation().Turns()
	if len(turns) != 5 {
		t.Fatalf("expected system+user+assistant(call)+tool+assistant, got %d turns", len(turns))
	}
	if len(turns[2].ToolCalls) != 1 || turns[2].ToolCalls[0].Name != "get_time" {
		t.Errorf("expected the call request in history: %+v", turns[2])
	}
	if turns[3].Role != llm.RoleTool || turns[3].Content != "12:00" || turns[3].ToolCallID != "call-1" {
		t.Errorf("expected the tool result in history: %+v", turns[3])
	}
	if turns[4].Content != "It is noon." {
		t.Errorf("expected the final reply in history: %+v", turns[4])
	}

	if got := speaker.spoken(); len(got) != 1 || got[0] != "It is noon." {
		t.Errorf("expected only the final reply spoken, got %v", got)
	}
	if len(hookCalls) != 1 || hookCalls[0] != "get_time=12:00" {
		t.Errorf("unexpected tool hook calls: %v", hookCalls)
	}
	if m := loop.Metrics(); m.ToolCalls != 1 || m.Turns != 1 {
		t.Errorf("unexpected metrics: %+v", m)
	}
}

func TestLoopToolDepthLimit(t *testing.T) {
	mock := llm.WithToolLoop("spin", map[string]any{})

	dispatched := 0
	dispatcher := mustDispatcher(t, tools.Schema{
		Name:        "spin",
		Description: "Spins forever",
		Handler: func(args map[string]any) (string, error) {
			dispatched++
			return "again!", nil
		},
	})

	speaker := &recordingSpeaker{}
	loop, err := agent.NewLoop(
		agent.Deps{LLM: mock, Speaker: speaker, Dispatcher: dispatcher},
		agent.Config{SystemPrompt: "sys"},
	)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	runTurns(t, loop, textUtterance("do the thing"))

	// Five dispatch rounds, then the sixth call request is refused.
	if n := mock.CallCount("Complete"); n != 6 {
		t.Errorf("expected 6 completions, got %d", n)
	}
	if dispatched != 5 {
		t.Errorf("expected 5 dispatches, got %d", dispatched)
	}

	want := "I got stuck in a loop of tool calls, sorry — could you rephrase that?"
	if got := speaker.spoken(); len(got) != 1 || got[0] != want {
		t.Errorf("expected the spoken apology, got %v", got)
	}

	turns := loop.Conversation().Turns()
	if last := turns[len(turns)-1]; last.Role != llm.RoleAssistant || last.Content != want {
		t.Errorf("expected the apology in history, got %+v", last)
	}
	if m := loop.Metrics(); m.ToolCalls != 5 {
		t.Errorf("expected 5 tool calls counted, got %+v", m)
	}
}

func TestLoopTimeoutRetriesThenApologizes(t *testing.T) {
	mock := llm.WithError(llm.ErrTimeout)
	speaker := &recordingSpeaker{}
	var hookErrs []error
	loop, err := agent.NewLoop(
		agent.Deps{LLM: mock, Speaker: speaker},
		agent.Config{
			SystemPrompt: "sys",
			LLMTimeout:   time.Second,
			Hooks: agent.Hooks{
				OnError: func(err error) { hookErrs = append(hookErrs, err) },
			},
		},
	)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	runTurns(t, loop, textUtterance("hello?"))

	if n := mock.CallCount("Complete"); n != 2 {
		t.Errorf("expected one retry after a timeout, got %d calls", n)
	}

	want := "I didn't get a response, please try again."
	if got := speaker.spoken(); len(got) != 1 || got[0] != want {
		t.Errorf("expected the spoken timeout apology, got %v", got)
	}

	turns := loop.Conversation().Turns()
	if last := turns[len(turns)-1]; last.Content != want {
		t.Errorf("expected the apology in history, got %+v", last)
	}
	if len(hookErrs) != 1 || !errors.Is(hookErrs[0], llm.ErrTimeout) {
		t.Errorf("expected one timeout error hook, got %v", hookErrs)
	}
	if m := loop.Metrics(); m.Errors != 1 {
		t.Errorf("expected 1 error counted, got %+v", m)
	}
}

func TestLoopTimeoutRecoversOnRetry(t *testing.T) {
	calls := 0
	mock := &llm.Mock{
		CompleteFunc: func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
			calls++
			if calls == 1 {
				return nil, llm.ErrTimeout
			}
			return &llm.Response{Message: llm.NewAssistantMessage("Recovered."), FinishReason: "stop"}, nil
		},
	}
	speaker := &recordingSpeaker{}
	loop, err := agent.NewLoop(agent.Deps{LLM: mock, Speaker: speaker}, agent.Config{})
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	runTurns(t, loop, textUtterance("hello?"))

	if n := mock.CallCount("Complete"); n != 2 {
		t.Errorf("expected 2 completions, got %d", n)
	}
	if got := speaker.spoken(); len(got) != 1 || got[0] != "Recovered." {
		t.Errorf("expected the retried reply spoken, got %v", got)
	}
	if m := loop.Metrics(); m.Errors != 0 {
		t.Errorf("a recovered retry is not an error: %+v", m)
	}
}

func TestLoopHardErrorStaysQuiet(t *testing.T) {
	boom := errors.New("model exploded")
	mock := llm.WithError(boom)
	speaker := &recordingSpeaker{}
	var hookErrs []error
	loop, err := agent.NewLoop(
		agent.Deps{LLM: mock, Speaker: speaker},
		agent.Config{
			SystemPrompt: "sys",
			Hooks: agent.Hooks{
				OnError: func(err error) { hookErrs = append(hookErrs, err) },
			},
		},
	)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	runTurns(t, loop, textUtterance("hello?"))

	if got := speaker.spoken(); len(got) != 0 {
		t.Errorf("hard failures must not be voiced, got %v", got)
	}
	if got := loop.Conversation().Len(); got != 2 {
		t.Errorf("expected system+user only, got %d turns", got)
	}
	if len(hookErrs) != 1 || !errors.Is(hookErrs[0], boom) {
		t.Errorf("expected the failure on the error hook, got %v", hookErrs)
	}
	if m := loop.Metrics(); m.Errors != 1 {
		t.Errorf("expected 1 error counted, got %+v", m)
	}
}

func TestLoopSpeakerFailureKeepsTurn(t *testing.T) {
	mock := llm.WithReply("ok")
	speaker := &recordingSpeaker{err: errors.New("no audio device")}
	loop, err := agent.NewLoop(agent.Deps{LLM: mock, Speaker: speaker}, agent.Config{SystemPrompt: "sys"})
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	runTurns(t, loop, textUtterance("one"), textUtterance("two"))

	// Both turns complete despite playback failing every time.
	if got := loop.Conversation().Len(); got != 5 {
		t.Errorf("expected system+2*(user+assistant), got %d turns", got)
	}
	if m := loop.Metrics(); m.Turns != 2 {
		t.Errorf("expected 2 turns, got %+v", m)
	}
}

func TestLoopTruncatesAfterTurns(t *testing.T) {
	mock := llm.WithReply("ok")
	loop, err := agent.NewLoop(
		agent.Deps{LLM: mock},
		agent.Config{SystemPrompt: "sys", TurnBudget: 4},
	)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	runTurns(t, loop,
		textUtterance("question one"),
		textUtterance("question two"),
		textUtterance("question three"),
		textUtterance("question four"),
	)

	turns := loop.Conversation().Turns()
	if len(turns) != 5 {
		t.Fatalf("expected system + 4 retained turns, got %d", len(turns))
	}
	if turns[0].Role != llm.RoleSystem {
		t.Errorf("system turn must survive, got %v", turns[0].Role)
	}
	if turns[1].Content != "question three" || turns[3].Content != "question four" {
		t.Errorf("expected only the two most recent exchanges, got %+v", turns[1:])
	}
}

func TestLoopStateSequence(t *testing.T) {
	var transitions []agent.State
	mock := llm.WithReply("hi")
	loop, err := agent.NewLoop(
		agent.Deps{LLM: mock},
		agent.Config{
			Hooks: agent.Hooks{
				OnStateChange: func(from, to agent.State) { transitions = append(transitions, to) },
			},
		},
	)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	runTurns(t, loop, textUtterance("hello"))

	want := []agent.State{
		agent.StateListening,
		agent.StateTranscribing,
		agent.StateReasoning,
		agent.StateResponding,
		agent.StateIdle,
		agent.StateListening,
		agent.StateIdle,
	}
	if len(transitions) != len(want) {
		t.Fatalf("expected %d transitions, got %d: %v", len(want), len(transitions), transitions)
	}
	for i, s := range want {
		if transitions[i] != s {
			t.Errorf("transition %d: expected %v, got %v", i, s, transitions[i])
		}
	}
	if got := loop.State(); got != agent.StateIdle {
		t.Errorf("expected idle after Run, got %v", got)
	}
}

func TestLoopInterruptDiscardsToolChain(t *testing.T) {
	started := make(chan struct{})
	calls := 0
	mock := &llm.Mock{
		CompleteFunc: func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
			calls++
			if calls == 1 {
				return &llm.Response{
					Message: llm.Message{
						Role:      llm.RoleAssistant,
						ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "probe", Arguments: "{}"}},
					},
					ToolCalls:    []tools.Call{{ID: "call-1", Name: "probe", Args: map[string]any{}}},
					FinishReason: "tool_calls",
				}, nil
			}
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	dispatcher := mustDispatcher(t, tools.Schema{
		Name:        "probe",
		Description: "Probe",
		Handler:     func(args map[string]any) (string, error) { return "ok", nil },
	})

	speaker := &recordingSpeaker{}
	loop, err := agent.NewLoop(
		agent.Deps{LLM: mock, Speaker: speaker, Dispatcher: dispatcher},
		agent.Config{SystemPrompt: "sys"},
	)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	ch := make(chan audio.Utterance)
	done := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go func() {
		defer close(done)
		loop.Run(ctx, ch)
	}()

	ch <- textUtterance("think hard")
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("second completion never started")
	}

	loop.Interrupt()
	close(ch)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after interrupt")
	}

	// The half-finished call chain is discarded wholesale.
	turns := loop.Conversation().Turns()
	if len(turns) != 2 {
		t.Fatalf("expected system+user only, got %d turns: %+v", len(turns), turns)
	}
	if got := speaker.spoken(); len(got) != 0 {
		t.Errorf("nothing should be spoken after an interrupt, got %v", got)
	}
	if speaker.stopCount() != 1 {
		t.Errorf("expected playback stopped once, got %d", speaker.stopCount())
	}
	m := loop.Metrics()
	if m.Interrupts != 1 {
		t.Errorf("expected 1 interrupt counted, got %+v", m)
	}
	if m.ToolCalls != 1 {
		t.Errorf("the dispatched call still counts, got %+v", m)
	}
}

func TestLoopInterruptWhileIdleIsNoop(t *testing.T) {
	loop, err := agent.NewLoop(agent.Deps{LLM: llm.NewMock()}, agent.Config{})
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	loop.Interrupt()

	if m := loop.Metrics(); m.Interrupts != 0 {
		t.Errorf("idle interrupt must not count, got %+v", m)
	}
}

func TestLoopRunStopsOnContextCancel(t *testing.T) {
	loop, err := agent.NewLoop(agent.Deps{LLM: llm.NewMock()}, agent.Config{})
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx, make(chan audio.Utterance))
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
