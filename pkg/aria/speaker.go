package aria

import (
	"context"
	"log/slog"

	"github.com/lumenrobotics/go-aria/pkg/agent"
	"github.com/lumenrobotics/go-aria/pkg/audio"
	"github.com/lumenrobotics/go-aria/pkg/device"
	"github.com/lumenrobotics/go-aria/pkg/tts"
)

// Speaker voices assistant replies: synthesis through the configured
// TTS provider, playback through the local player or, when no player
// binary is installed, the device speaker. With neither output the
// reply is logged, which is also how the mock provider's audio ends up
// audible on a dev machine.
type Speaker struct {
	tts    tts.Provider
	player *audio.Player
	device device.SpeakerController
	logger *slog.Logger
}

// NewSpeaker builds a speaker. provider is required; player and dev may
// be nil.
func NewSpeaker(provider tts.Provider, player *audio.Player, dev device.SpeakerController, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{
		tts:    provider,
		player: player,
		device: dev,
		logger: logger.With("component", "speaker"),
	}
}

// Speak synthesizes text and plays it, blocking until playback ends or
// ctx is cancelled.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	result, err := s.tts.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	if len(result.Audio) == 0 {
		return nil
	}

	format := audio.Format{
		SampleRate: result.Format.SampleRate,
		Channels:   result.Format.Channels,
		BitDepth:   result.Format.BitDepth,
	}

	switch {
	case s.player != nil && s.player.Available():
		return s.player.Play(ctx, result.Audio, format)
	case s.device != nil:
		return s.device.PlayAudio(result.Audio, result.Format.SampleRate)
	default:
		s.logger.Info("no audio output, dropping synthesis",
			"chars", result.CharCount,
			"duration", result.Duration,
		)
		return nil
	}
}

// Stop aborts playback in progress. This is the barge-in path.
func (s *Speaker) Stop() {
	if s.player != nil {
		s.player.Stop()
	}
}

var _ agent.Speaker = (*Speaker)(nil)
