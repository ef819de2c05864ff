// Package audio provides utterance capture and local playback for the
// agent runtime.
//
// Capture runs an RMS silence gate over a PCM16 stream and emits whole
// utterances: speech begins when the level crosses the threshold and
// ends after a run of silence. Three sources feed the same channel:
// a microphone subprocess, WAV files for simulation, and line-oriented
// console input that bypasses transcription entirely.
//
// Playback shells out to the first available system player. When no
// player binary is installed the Player degrades to logging, so a
// missing speaker never breaks a conversation.
package audio

import (
	"context"
	"errors"
	"io"
	"time"
)

// Sentinel errors.
var (
	// ErrNoCaptureBinary is returned when no microphone capture binary
	// (arecord, sox, ffmpeg) is installed.
	ErrNoCaptureBinary = errors.New("audio: no capture binary found")

	// ErrSourceClosed is returned when starting a closed source.
	ErrSourceClosed = errors.New("audio: source closed")
)

// Utterance is one unit of user input: either captured speech or a
// line of pre-transcribed text from the console fallback.
type Utterance struct {
	// PCM holds raw PCM16 mono audio; nil for text utterances.
	PCM []byte

	// Text holds pre-transcribed input that needs no STT pass.
	Text string

	// SampleRate of PCM.
	SampleRate int

	// Duration of the audio.
	Duration time.Duration
}

// IsText reports whether the utterance bypasses transcription.
func (u Utterance) IsText() bool {
	return u.PCM == nil && u.Text != ""
}

// Source produces utterances for the agent loop's input queue.
type Source interface {
	// Start begins producing utterances.
	Start(ctx context.Context) error

	// Stop halts production. Safe to call multiple times.
	Stop() error

	// Utterances returns the output channel. It is closed when the
	// source stops or runs out of input.
	Utterances() <-chan Utterance

	// Name returns the source name (e.g. "mic", "console", "file").
	Name() string

	// Close releases all resources. After Close, the source cannot
	// be restarted.
	io.Closer
}
