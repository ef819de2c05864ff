package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// captureBinaries are tried in order; the first one on PATH wins.
var captureBinaries = []string{"arecord", "sox", "ffmpeg"}

// MicSource captures microphone audio through a recording subprocess
// and gates it into utterances. It needs one of arecord, sox, or
// ffmpeg on PATH; construction fails with ErrNoCaptureBinary when none
// is installed, and the runtime falls back to console input.
type MicSource struct {
	cfg    CaptureConfig
	logger *slog.Logger
	binary string

	// OnSpeechStart fires when voice activity begins, ahead of the
	// finished utterance. Set before Start; used for barge-in.
	OnSpeechStart func()

	mu      sync.Mutex
	running bool
	closed  bool
	cmd     *exec.Cmd
	out     chan Utterance
	stopCh  chan struct{}
}

// NewMicSource creates a microphone source.
func NewMicSource(cfg CaptureConfig, logger *slog.Logger) (*MicSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	binary := ""
	for _, candidate := range captureBinaries {
		if _, err := exec.LookPath(candidate); err == nil {
			binary = candidate
			break
		}
	}
	if binary == "" {
		return nil, fmt.Errorf("%w: tried %s", ErrNoCaptureBinary, strings.Join(captureBinaries, ", "))
	}

	return &MicSource{
		cfg:    cfg,
		logger: logger.With("component", "audio.mic"),
		binary: binary,
		out:    make(chan Utterance, 4),
		stopCh: make(chan struct{}),
	}, nil
}

// Start launches the capture subprocess and begins gating utterances.
func (s *MicSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSourceClosed
	}
	if s.running {
		return nil
	}

	cmd := exec.Command(s.binary, captureArgs(s.binary, s.cfg)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("audio: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("audio: start %s: %w", s.binary, err)
	}

	s.cmd = cmd
	s.running = true
	s.stopCh = make(chan struct{})
	s.out = make(chan Utterance, 4)

	go s.captureLoop(ctx, stdout)

	s.logger.Info("microphone capture started",
		"binary", s.binary,
		"sample_rate", s.cfg.SampleRate,
		"silence_timeout", s.cfg.SilenceTimeout,
	)
	return nil
}

// captureLoop reads fixed-size chunks from the subprocess and feeds
// the silence gate. It exits, closing the output channel, when the
// pipe breaks, which is how Stop and context cancellation land.
func (s *MicSource) captureLoop(ctx context.Context, stdout io.Reader) {
	defer close(s.out)

	// Reads only fail once the process dies, so a watcher kills it
	// when the context or Stop says to.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopCh:
		case <-watchDone:
		}
	}()

	chunker := NewChunker(s.cfg)
	chunker.OnSpeechStart = s.OnSpeechStart
	buf := make([]byte, s.cfg.bufferBytes())

	for {
		n, err := io.ReadFull(stdout, buf)
		if n > 0 {
			for _, u := range chunker.Feed(buf[:n]) {
				s.logger.Debug("utterance captured",
					"duration", u.Duration,
					"bytes", len(u.PCM),
				)
				select {
				case s.out <- u:
				case <-s.stopCh:
					return
				}
			}
		}
		if err != nil {
			if u := chunker.Flush(); u != nil {
				select {
				case s.out <- *u:
				case <-s.stopCh:
				}
			}
			return
		}
	}
}

// Stop kills the capture subprocess. Safe to call multiple times.
func (s *MicSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *MicSource) stopLocked() error {
	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)

	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}
	s.cmd = nil

	s.logger.Info("microphone capture stopped")
	return nil
}

// Utterances returns the gated utterance channel.
func (s *MicSource) Utterances() <-chan Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

// Name returns the capture binary in use.
func (s *MicSource) Name() string {
	return s.binary
}

// Close releases resources.
func (s *MicSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stopLocked()
}

// captureArgs builds the argv that makes each binary emit raw mono
// PCM16 at the configured rate on stdout.
func captureArgs(binary string, cfg CaptureConfig) []string {
	rate := strconv.Itoa(cfg.SampleRate)
	switch binary {
	case "arecord":
		args := []string{"-q", "-f", "S16_LE", "-r", rate, "-c", "1", "-t", "raw"}
		if cfg.Device != "" {
			args = append(args, "-D", cfg.Device)
		}
		return args
	case "sox":
		return []string{"-q", "-d", "-t", "raw", "-r", rate, "-e", "signed-integer", "-b", "16", "-c", "1", "-"}
	case "ffmpeg":
		in := cfg.Device
		if in == "" {
			in = "default"
		}
		return []string{"-loglevel", "quiet", "-f", "alsa", "-i", in, "-f", "s16le", "-ar", rate, "-ac", "1", "-"}
	}
	return nil
}

// Ensure MicSource implements Source.
var _ Source = (*MicSource)(nil)
