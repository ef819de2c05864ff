package llm

// DefaultOllamaBaseURL is where a local Ollama serves its OpenAI-compatible API.
const DefaultOllamaBaseURL = "http://localhost:11434/v1"

// Backend identifiers accepted by New.
const (
	BackendOpenAI    = "openai"
	BackendOllama    = "ollama"
	BackendAnthropic = "anthropic"
	BackendGemini    = "gemini"
	BackendMock      = "mock"
)

// New builds a provider for the given backend identifier. Construction
// never panics or exits: failures come back as an unavailable Status and
// the caller decides whether that is fatal. Both "openai" and "ollama"
// use the OpenAI-compatible Client; they differ only in base URL and
// whether a key is expected.
func New(id string, cfg Config) (Provider, Status) {
	opts := cfg.options()

	var (
		p   Provider
		err error
	)
	switch id {
	case BackendOpenAI:
		p, err = NewClient(opts...)
	case BackendOllama:
		if cfg.BaseURL == "" {
			opts = append(opts, WithBaseURL(DefaultOllamaBaseURL))
		}
		p, err = NewClient(opts...)
	case BackendAnthropic:
		p, err = NewAnthropic(opts...)
	case BackendGemini:
		p, err = NewGemini(opts...)
	case BackendMock:
		p = NewMock()
	default:
		return nil, Down(id, "unknown llm backend")
	}

	if err != nil {
		return nil, Down(id, err.Error())
	}
	return p, Up(id)
}

// options converts a concrete Config back into functional options,
// skipping zero values so provider defaults survive.
func (c Config) options() []Option {
	var opts []Option
	if c.BaseURL != "" {
		opts = append(opts, WithBaseURL(c.BaseURL))
	}
	if c.APIKey != "" {
		opts = append(opts, WithAPIKey(c.APIKey))
	}
	if c.Model != "" {
		opts = append(opts, WithModel(c.Model))
	}
	if c.MaxTokens > 0 {
		opts = append(opts, WithMaxTokens(c.MaxTokens))
	}
	if c.Temperature > 0 {
		opts = append(opts, WithTemperature(c.Temperature))
	}
	if c.Timeout > 0 {
		opts = append(opts, WithTimeout(c.Timeout))
	}
	if c.MaxRetries > 0 || c.RetryDelay > 0 {
		opts = append(opts, WithRetry(c.MaxRetries, c.RetryDelay))
	}
	if c.Logger != nil {
		opts = append(opts, WithLogger(c.Logger))
	}
	return opts
}
