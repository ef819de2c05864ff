package audio

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// FileSource replays WAV files as utterances, one per file, for
// simulation and tests. Stereo input is downmixed and everything is
// resampled to the target rate so the transcription path sees the
// same shape of data a microphone would produce.
type FileSource struct {
	paths  []string
	rate   int
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	out     chan Utterance
	stopCh  chan struct{}
}

// NewFileSource creates a file source emitting at the given sample rate.
func NewFileSource(rate int, logger *slog.Logger, paths ...string) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	return &FileSource{
		paths:  paths,
		rate:   rate,
		logger: logger.With("component", "audio.file"),
		out:    make(chan Utterance, 4),
		stopCh: make(chan struct{}),
	}
}

// Start begins replaying the files. The output channel closes after
// the last file.
func (s *FileSource) Start(ctx context.Context) error {
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

	go s.replayLoop(ctx)
	return nil
}

func (s *FileSource) replayLoop(ctx context.Context) {
	defer close(s.out)

	for _, path := range s.paths {
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable file", "path", path, "error", err)
			continue
		}

		pcm, format, err := DecodeWAV(data)
		if err != nil {
			s.logger.Warn("skipping non-WAV file", "path", path, "error", err)
			continue
		}
		if format.BitDepth != 16 {
			s.logger.Warn("skipping file with unsupported bit depth",
				"path", path, "bit_depth", format.BitDepth)
			continue
		}

		samples := ConvertPCM16ToInt16(pcm)
		if format.Channels == 2 {
			samples = StereoToMono(samples)
		}
		samples = Resample(samples, format.SampleRate, s.rate)
		mono := ConvertInt16ToPCM16(samples)

		outFormat := Format{SampleRate: s.rate, Channels: 1, BitDepth: 16}
		u := Utterance{
			PCM:        mono,
			SampleRate: s.rate,
			Duration:   outFormat.Duration(len(mono)),
		}

		select {
		case s.out <- u:
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop halts replay. Safe to call multiple times.
func (s *FileSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)
	return nil
}

// Utterances returns the replay channel.
func (s *FileSource) Utterances() <-chan Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

// Name returns "file".
func (s *FileSource) Name() string {
	return "file"
}

// Close releases resources.
func (s *FileSource) Close() error {
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

// Ensure FileSource implements Source.
var _ Source = (*FileSource)(nil)
