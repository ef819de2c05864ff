// Package stt provides speech-to-text providers for the agent runtime.
//
// Providers take a captured utterance (16 kHz mono PCM16, with or without
// a WAV header) and return the transcript. A silent or unintelligible
// utterance transcribes to the empty string, which is not an error; the
// agent loop skips the turn.
//
// Construction never kills the process: the factory reports an
// unavailable Status when a backend cannot be built, and the runtime
// falls back to console input.
package stt

import "context"

// Provider converts captured speech into text.
type Provider interface {
	// Transcribe converts one utterance of audio into text.
	// Audio is 16 kHz mono PCM16; a WAV container is accepted as-is
	// and raw samples are wrapped when the wire needs one.
	// Silence transcribes to "" with a nil error.
	Transcribe(ctx context.Context, audio []byte) (string, error)

	// Health checks if the provider is reachable and ready.
	Health(ctx context.Context) error

	// Close releases provider resources.
	Close() error
}

// Status reports whether a provider came up, and why not when it
// didn't. Factories return it instead of a fatal error so the caller
// can degrade to a fallback input.
type Status struct {
	Available bool
	Provider  string
	Reason    string
}

// Up returns an available status for the named provider.
func Up(provider string) Status {
	return Status{Available: true, Provider: provider}
}

// Down returns an unavailable status with the reason.
func Down(provider, reason string) Status {
	return Status{Available: false, Provider: provider, Reason: reason}
}
