package agent

// State is the loop's position in the turn cycle.
type State int

const (
	// StateIdle means no turn is in progress.
	StateIdle State = iota
	// StateListening means the loop is waiting for an utterance.
	StateListening
	// StateTranscribing means captured audio is being turned into text.
	StateTranscribing
	// StateReasoning means the language model is producing the reply.
	StateReasoning
	// StateToolDispatch means requested function calls are executing.
	StateToolDispatch
	// StateResponding means the reply is being voiced.
	StateResponding
	// StateError means the current turn failed; the loop reports and
	// returns to idle.
	StateError
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateTranscribing:
		return "transcribing"
	case StateReasoning:
		return "reasoning"
	case StateToolDispatch:
		return "tool_dispatch"
	case StateResponding:
		return "responding"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
