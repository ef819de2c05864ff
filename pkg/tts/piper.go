package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const providerPiper = "piper"

// Piper defaults. Voices are ONNX models shipped separately; the config
// JSON is expected next to the model file.
const (
	DefaultPiperVoice      = "en_US-lessac-medium"
	DefaultPiperVoiceDir   = "/usr/local/share/piper/voices"
	DefaultPiperSampleRate = 22050
)

// Piper implements Provider by shelling out to the piper binary.
// Synthesis is fully local: no network, no API key. Output is WAV at
// the voice model's native sample rate.
type Piper struct {
	config     *Config
	logger     *slog.Logger
	binary     string
	modelPath  string
	configPath string
}

// NewPiper creates a local Piper TTS provider. It fails with
// ErrBinaryNotFound when piper is not installed, so callers can fall
// back to another provider instead of crashing at synthesis time.
func NewPiper(opts ...Option) (*Piper, error) {
	cfg := DefaultConfig()
	cfg.VoiceID = DefaultPiperVoice
	cfg.OutputFormat = EncodingWAV
	cfg.Apply(opts...)

	binary, err := exec.LookPath("piper")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBinaryNotFound, err)
	}

	modelPath := cfg.ModelPath
	if modelPath == "" {
		voice := cfg.VoiceID
		if voice == "" {
			voice = DefaultPiperVoice
		}
		modelPath = filepath.Join(DefaultPiperVoiceDir, voice+".onnx")
	}

	return &Piper{
		config:     cfg,
		logger:     cfg.Logger.With("component", "tts.piper"),
		binary:     binary,
		modelPath:  modelPath,
		configPath: modelPath + ".json",
	}, nil
}

// Synthesize runs piper with the text on stdin and returns the WAV it
// writes. The binary has no stdout streaming mode, so output goes
// through a temp file.
func (p *Piper) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	out, err := os.CreateTemp("", "piper-*.wav")
	if err != nil {
		return nil, WrapError(providerPiper, fmt.Errorf("create temp file: %w", err))
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	args := []string{
		"--model", p.modelPath,
		"--output_file", outPath,
	}
	if _, err := os.Stat(p.configPath); err == nil {
		args = append(args, "--config", p.configPath)
	}

	cmd := exec.CommandContext(ctx, p.binary, args...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, WrapError(providerPiper, fmt.Errorf("synthesis timed out after %s", p.config.Timeout))
		}
		return nil, WrapError(providerPiper, fmt.Errorf("piper: %v: %s", err, strings.TrimSpace(stderr.String())))
	}

	audio, err := os.ReadFile(outPath)
	if err != nil {
		return nil, WrapError(providerPiper, fmt.Errorf("read output: %w", err))
	}

	latency := time.Since(start).Milliseconds()
	p.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", filepath.Base(p.modelPath),
	)

	return &AudioResult{
		Audio:     audio,
		Format:    p.outputFormat(),
		CharCount: len(text),
		LatencyMs: latency,
		Duration:  p.estimateDuration(len(audio)),
	}, nil
}

// Stream buffers Synthesize; piper writes complete files only.
func (p *Piper) Stream(ctx context.Context, text string) (AudioStream, error) {
	result, err := p.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	return &bufferStream{data: result.Audio, format: result.Format}, nil
}

// Health verifies the binary runs and the voice model exists.
func (p *Piper) Health(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, p.binary, "--version")
	if err := cmd.Run(); err != nil {
		return WrapError(providerPiper, fmt.Errorf("binary check: %w", err))
	}

	if _, err := os.Stat(p.modelPath); err != nil {
		return WrapError(providerPiper, fmt.Errorf("voice model missing: %s", p.modelPath))
	}

	return nil
}

// Close is a no-op; each synthesis is its own process.
func (p *Piper) Close() error {
	return nil
}

// ModelPath returns the voice model file in use.
func (p *Piper) ModelPath() string {
	return p.modelPath
}

// outputFormat returns the audio format configuration.
func (p *Piper) outputFormat() AudioFormat {
	return AudioFormat{
		Encoding:   EncodingWAV,
		SampleRate: DefaultPiperSampleRate,
		Channels:   1,
		BitDepth:   16,
	}
}

// estimateDuration estimates duration from byte count, ignoring the
// 44-byte WAV header.
func (p *Piper) estimateDuration(bytes int) time.Duration {
	if bytes > 44 {
		bytes -= 44
	}
	samples := bytes / 2
	seconds := float64(samples) / float64(DefaultPiperSampleRate)
	return time.Duration(seconds * float64(time.Second))
}

// Verify Piper implements Provider at compile time.
var _ Provider = (*Piper)(nil)
