package audio

import (
	"fmt"
	"math"
	"time"
)

// Capture defaults, tuned for speech recognition input.
const (
	// DefaultSampleRate is what transcription backends expect.
	DefaultSampleRate = 16000

	// DefaultSilenceThreshold is the normalized RMS level below which
	// a chunk counts as silence.
	DefaultSilenceThreshold = 0.01

	// DefaultSilenceTimeout is how much continuous silence ends an
	// utterance.
	DefaultSilenceTimeout = 800 * time.Millisecond

	// DefaultMaxUtterance caps utterance length; longer speech is
	// split and transcribed in pieces.
	DefaultMaxUtterance = 5 * time.Second

	// DefaultMinUtterance drops blips shorter than this: door slams,
	// coughs, single syllables of background chatter.
	DefaultMinUtterance = time.Second

	// DefaultBufferDuration is the read granularity of the capture
	// stream and therefore of the silence gate.
	DefaultBufferDuration = 100 * time.Millisecond
)

// CaptureConfig holds utterance capture configuration.
type CaptureConfig struct {
	// SampleRate of the capture stream in Hz.
	SampleRate int

	// Device is the capture device identifier, passed through to the
	// capture binary. Empty means the system default.
	Device string

	// SilenceThreshold is the normalized RMS level (0..1) below which
	// a chunk counts as silence.
	SilenceThreshold float64

	// SilenceTimeout ends the utterance after this much silence.
	SilenceTimeout time.Duration

	// MaxUtterance splits speech longer than this.
	MaxUtterance time.Duration

	// MinUtterance discards utterances shorter than this.
	MinUtterance time.Duration

	// BufferDuration is the size of each capture read.
	BufferDuration time.Duration
}

// DefaultCaptureConfig returns a CaptureConfig with the standard
// speech-input tuning.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:       DefaultSampleRate,
		SilenceThreshold: DefaultSilenceThreshold,
		SilenceTimeout:   DefaultSilenceTimeout,
		MaxUtterance:     DefaultMaxUtterance,
		MinUtterance:     DefaultMinUtterance,
		BufferDuration:   DefaultBufferDuration,
	}
}

// Validate checks that the configuration is usable.
func (c *CaptureConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("audio: sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.SilenceThreshold <= 0 || c.SilenceThreshold >= 1 {
		return fmt.Errorf("audio: silence_threshold must be in (0, 1), got %v", c.SilenceThreshold)
	}
	if c.SilenceTimeout <= 0 {
		return fmt.Errorf("audio: silence_timeout must be positive, got %v", c.SilenceTimeout)
	}
	if c.MinUtterance > c.MaxUtterance {
		return fmt.Errorf("audio: min_utterance %v exceeds max_utterance %v", c.MinUtterance, c.MaxUtterance)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("audio: buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// bufferBytes returns the size of one capture read in bytes.
func (c CaptureConfig) bufferBytes() int {
	samples := int(float64(c.SampleRate) * c.BufferDuration.Seconds())
	return samples * 2
}

// bytesFor converts a duration to a PCM16 byte count at the capture rate.
func (c CaptureConfig) bytesFor(d time.Duration) int {
	samples := int(float64(c.SampleRate) * d.Seconds())
	return samples * 2
}

// Chunker assembles a PCM16 stream into utterances using an RMS
// silence gate. It is deterministic: all thresholds count samples, not
// wall-clock time, so the same stream always chunks the same way.
//
// Chunker is not safe for concurrent use; each source owns one.
type Chunker struct {
	cfg CaptureConfig

	// OnSpeechStart fires when the gate opens, before the utterance
	// completes. Used for barge-in: the consumer can cut playback as
	// soon as the user starts talking.
	OnSpeechStart func()

	buf         []byte
	voiced      bool
	silentBytes int

	silenceBytes int
	maxBytes     int
	minBytes     int
}

// NewChunker creates a chunker with the given capture configuration.
func NewChunker(cfg CaptureConfig) *Chunker {
	return &Chunker{
		cfg:          cfg,
		silenceBytes: cfg.bytesFor(cfg.SilenceTimeout),
		maxBytes:     cfg.bytesFor(cfg.MaxUtterance),
		minBytes:     cfg.bytesFor(cfg.MinUtterance),
	}
}

// Feed consumes one capture read and returns any utterances it
// completed. Most calls return nil: silence outside an utterance is
// dropped, and speech accumulates until the gate closes.
func (k *Chunker) Feed(pcm []byte) []Utterance {
	if len(pcm) == 0 {
		return nil
	}

	loud := RMS(ConvertPCM16ToInt16(pcm)) >= k.cfg.SilenceThreshold

	if !k.voiced {
		if !loud {
			return nil
		}
		k.voiced = true
		k.silentBytes = 0
		k.buf = append(k.buf, pcm...)
		if k.OnSpeechStart != nil {
			k.OnSpeechStart()
		}
		return nil
	}

	k.buf = append(k.buf, pcm...)
	if loud {
		k.silentBytes = 0
	} else {
		k.silentBytes += len(pcm)
	}

	if k.silentBytes >= k.silenceBytes || len(k.buf) >= k.maxBytes {
		return k.finish(nil)
	}
	return nil
}

// Flush ends any pending utterance, for use when the stream stops
// mid-speech. Returns nil when nothing worth transcribing is pending.
func (k *Chunker) Flush() *Utterance {
	if !k.voiced {
		return nil
	}
	out := k.finish(nil)
	if len(out) == 0 {
		return nil
	}
	return &out[0]
}

// finish closes the current utterance and resets the gate. Utterances
// whose voiced portion is shorter than MinUtterance are dropped.
func (k *Chunker) finish(out []Utterance) []Utterance {
	voicedLen := len(k.buf) - k.silentBytes
	if voicedLen >= k.minBytes {
		pcm := make([]byte, len(k.buf))
		copy(pcm, k.buf)
		format := Format{SampleRate: k.cfg.SampleRate, Channels: 1, BitDepth: 16}
		out = append(out, Utterance{
			PCM:        pcm,
			SampleRate: k.cfg.SampleRate,
			Duration:   format.Duration(len(pcm)),
		})
	}

	k.buf = k.buf[:0]
	k.voiced = false
	k.silentBytes = 0
	return out
}

// RMS returns the root mean square level of samples, normalized to 0..1.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
