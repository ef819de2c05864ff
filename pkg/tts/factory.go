package tts

// Backend identifiers accepted by New.
const (
	BackendElevenLabs   = "elevenlabs"
	BackendElevenLabsWS = "elevenlabs-ws"
	BackendOpenAI       = "openai"
	BackendPiper        = "piper"
	BackendMock         = "mock"
)

// New builds a provider for the given backend identifier. Construction
// never panics or exits: a missing key or binary comes back as an
// unavailable Status, and the caller picks a fallback.
func New(id string, opts ...Option) (Provider, Status) {
	var (
		p   Provider
		err error
	)
	switch id {
	case BackendElevenLabs:
		p, err = NewElevenLabs(opts...)
	case BackendElevenLabsWS:
		p, err = NewElevenLabsWS(opts...)
	case BackendOpenAI:
		p, err = NewOpenAI(opts...)
	case BackendPiper:
		p, err = NewPiper(opts...)
	case BackendMock:
		p = NewMock()
	default:
		return nil, Down(id, "unknown tts backend")
	}

	if err != nil {
		return nil, Down(id, err.Error())
	}
	return p, Up(id)
}
