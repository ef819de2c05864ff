package audio

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ConsoleSource turns lines of text into utterances that bypass
// transcription. It is the fallback input when no microphone or STT
// backend is available, and the whole input path in text-only mode.
type ConsoleSource struct {
	r      io.Reader
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	out     chan Utterance
	stopCh  chan struct{}
}

// NewConsoleSource creates a console source reading from r
// (typically os.Stdin).
func NewConsoleSource(r io.Reader, logger *slog.Logger) *ConsoleSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleSource{
		r:      r,
		logger: logger.With("component", "audio.console"),
		out:    make(chan Utterance, 4),
		stopCh: make(chan struct{}),
	}
}

// Start begins reading lines.
func (s *ConsoleSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSourceClosed
	}
	if s.running {
		return nil
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.out = make(chan Utterance, 4)

	go s.readLoop(ctx)

	s.logger.Info("console input started")
	return nil
}

func (s *ConsoleSource) readLoop(ctx context.Context) {
	defer close(s.out)

	scanner := bufio.NewScanner(s.r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case s.out <- Utterance{Text: line}:
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
	// EOF or read error: the channel close tells the consumer.
}

// Stop halts line delivery. A read blocked on stdin stays blocked
// until the next line, but nothing more is delivered.
func (s *ConsoleSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.logger.Info("console input stopped")
	return nil
}

// Utterances returns the text utterance channel.
func (s *ConsoleSource) Utterances() <-chan Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

// Name returns "console".
func (s *ConsoleSource) Name() string {
	return "console"
}

// Close releases resources.
func (s *ConsoleSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	return nil
}

// Ensure ConsoleSource implements Source.
var _ Source = (*ConsoleSource)(nil)
