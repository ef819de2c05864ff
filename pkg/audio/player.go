package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// playerBinaries are tried in order; the first one on PATH wins.
var playerBinaries = []string{"aplay", "paplay", "play", "ffplay"}

// Player plays synthesized replies through a system audio player fed
// over stdin. When no player binary is installed it degrades to a
// log-only sink: Play drops the audio and reports success, so speech
// output is never fatal.
type Player struct {
	logger *slog.Logger
	binary string

	mu       sync.Mutex
	cmd      *exec.Cmd
	stopping bool

	speakingMu sync.Mutex
	speaking   bool

	// Callbacks
	OnPlaybackStart func()
	OnPlaybackEnd   func()
}

// NewPlayer creates a player using the first available system binary.
func NewPlayer(logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}

	binary := ""
	for _, candidate := range playerBinaries {
		if _, err := exec.LookPath(candidate); err == nil {
			binary = candidate
			break
		}
	}

	p := &Player{
		logger: logger.With("component", "audio.player"),
		binary: binary,
	}
	if binary == "" {
		p.logger.Warn("no audio player found, playback disabled",
			"tried", strings.Join(playerBinaries, ", "))
	}
	return p
}

// Available reports whether a player binary was found.
func (p *Player) Available() bool {
	return p.binary != ""
}

// Name returns the player binary in use, or "none".
func (p *Player) Name() string {
	if p.binary == "" {
		return "none"
	}
	return p.binary
}

// Play blocks until the audio finishes or Stop cuts it off. Raw PCM is
// wrapped in a WAV header; data that already carries one passes
// through. Playback interrupted by Stop or context cancellation is
// not an error; that is the barge-in path.
func (p *Player) Play(ctx context.Context, data []byte, format Format) error {
	if len(data) == 0 {
		return nil
	}
	if p.binary == "" {
		p.logger.Info("no player installed, dropping audio", "bytes", len(data))
		return nil
	}

	wav := data
	if !IsWAV(data) {
		wav = EncodeWAV(data, format.SampleRate, format.Channels, format.BitDepth)
	}

	p.mu.Lock()
	if p.cmd != nil {
		p.mu.Unlock()
		return errors.New("audio: playback already in progress")
	}
	cmd := exec.Command(p.binary, playerArgs(p.binary)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("audio: stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("audio: start %s: %w", p.binary, err)
	}
	p.cmd = cmd
	p.stopping = false
	p.mu.Unlock()

	p.setSpeaking(true)
	defer p.setSpeaking(false)

	// The write blocks at the player's consumption rate, so Stop has
	// to be able to kill the process out from under it.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-watchDone:
		}
	}()

	_, werr := stdin.Write(wav)
	stdin.Close()
	err = cmd.Wait()

	p.mu.Lock()
	stopped := p.stopping
	p.cmd = nil
	p.stopping = false
	p.mu.Unlock()

	if stopped || ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("audio: %s: %w", p.binary, err)
	}
	if werr != nil {
		return fmt.Errorf("audio: write to %s: %w", p.binary, werr)
	}
	return nil
}

// Stop kills the current playback immediately. Safe to call when
// nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return
	}
	p.stopping = true
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
}

// IsSpeaking returns whether audio is currently playing.
func (p *Player) IsSpeaking() bool {
	p.speakingMu.Lock()
	defer p.speakingMu.Unlock()
	return p.speaking
}

func (p *Player) setSpeaking(on bool) {
	p.speakingMu.Lock()
	p.speaking = on
	p.speakingMu.Unlock()

	if on && p.OnPlaybackStart != nil {
		p.OnPlaybackStart()
	}
	if !on && p.OnPlaybackEnd != nil {
		p.OnPlaybackEnd()
	}
}

// playerArgs builds the argv that makes each binary play a WAV file
// arriving on stdin.
func playerArgs(binary string) []string {
	switch binary {
	case "aplay":
		return []string{"-q"}
	case "paplay":
		return nil
	case "play":
		return []string{"-q", "-t", "wav", "-"}
	case "ffplay":
		return []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-"}
	}
	return nil
}
