package stt

// Backend identifiers accepted by New.
const (
	BackendWhisper = "whisper"
	BackendMock    = "mock"
)

// New builds a provider for the given backend identifier. Construction
// never panics or exits: failures come back as an unavailable Status
// and the runtime falls back to console input.
func New(id string, opts ...Option) (Provider, Status) {
	var (
		p   Provider
		err error
	)
	switch id {
	case BackendWhisper:
		p, err = NewWhisper(opts...)
	case BackendMock:
		p = NewMock()
	default:
		return nil, Down(id, "unknown stt backend")
	}

	if err != nil {
		return nil, Down(id, err.Error())
	}
	return p, Up(id)
}
