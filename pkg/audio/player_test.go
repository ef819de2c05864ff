package audio_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lumenrobotics/go-aria/pkg/audio"
)

var pcmFormat = audio.Format{SampleRate: 16000, Channels: 1, BitDepth: 16}

// fakePlayer installs an aplay stand-in built from the given shell body
// and returns the path where the script can capture its stdin.
func fakePlayer(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	captured := filepath.Join(dir, "captured")

	script := "#!/bin/sh\n" + fmt.Sprintf(body, captured) + "\n"
	if err := os.WriteFile(filepath.Join(dir, "aplay"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return captured
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPlayerWrapsPCM(t *testing.T) {
	captured := fakePlayer(t, "cat > %q")

	p := audio.NewPlayer(nil)
	if !p.Available() {
		t.Fatal("player should be available")
	}
	if p.Name() != "aplay" {
		t.Errorf("name = %q, want aplay", p.Name())
	}

	var started, ended atomic.Int32
	p.OnPlaybackStart = func() { started.Add(1) }
	p.OnPlaybackEnd = func() { ended.Add(1) }

	pcm := audio.ConvertInt16ToPCM16(make([]int16, 1600))
	if err := p.Play(context.Background(), pcm, pcmFormat); err != nil {
		t.Fatalf("Play: %v", err)
	}

	got, err := os.ReadFile(captured)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 44+len(pcm) {
		t.Errorf("captured %d bytes, want %d", len(got), 44+len(pcm))
	}
	if !audio.IsWAV(got) {
		t.Error("player should wrap raw PCM in a WAV container")
	}
	if started.Load() != 1 || ended.Load() != 1 {
		t.Errorf("callbacks: start=%d end=%d, want 1/1", started.Load(), ended.Load())
	}
	if p.IsSpeaking() {
		t.Error("IsSpeaking should be false after playback")
	}
}

func TestPlayerWAVPassthrough(t *testing.T) {
	captured := fakePlayer(t, "cat > %q")

	wav := audio.EncodeWAV(audio.ConvertInt16ToPCM16(make([]int16, 800)), 16000, 1, 16)
	p := audio.NewPlayer(nil)
	if err := p.Play(context.Background(), wav, pcmFormat); err != nil {
		t.Fatalf("Play: %v", err)
	}

	got, err := os.ReadFile(captured)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, wav) {
		t.Error("WAV input should pass through unmodified")
	}
}

func TestPlayerStopInterrupts(t *testing.T) {
	fakePlayer(t, "cat > /dev/null # %q\nsleep 30")

	p := audio.NewPlayer(nil)
	pcm := audio.ConvertInt16ToPCM16(make([]int16, 1600))

	done := make(chan error, 1)
	go func() {
		done <- p.Play(context.Background(), pcm, pcmFormat)
	}()

	waitFor(t, p.IsSpeaking, "playback to start")
	p.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("interrupted Play = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Play did not return after Stop")
	}
}

func TestPlayerContextCancel(t *testing.T) {
	fakePlayer(t, "cat > /dev/null # %q\nsleep 30")

	p := audio.NewPlayer(nil)
	pcm := audio.ConvertInt16ToPCM16(make([]int16, 1600))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := p.Play(ctx, pcm, pcmFormat); err != nil {
		t.Errorf("cancelled Play = %v, want nil", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Play took %v after cancel", elapsed)
	}
}

func TestPlayerRejectsConcurrentPlay(t *testing.T) {
	fakePlayer(t, "cat > /dev/null # %q\nsleep 30")

	p := audio.NewPlayer(nil)
	pcm := audio.ConvertInt16ToPCM16(make([]int16, 1600))

	done := make(chan error, 1)
	go func() {
		done <- p.Play(context.Background(), pcm, pcmFormat)
	}()
	waitFor(t, p.IsSpeaking, "playback to start")

	err := p.Play(context.Background(), pcm, pcmFormat)
	if err == nil || !strings.Contains(err.Error(), "already in progress") {
		t.Errorf("second Play = %v, want in-progress error", err)
	}

	p.Stop()
	<-done
}

func TestPlayerNoBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	p := audio.NewPlayer(nil)
	if p.Available() {
		t.Error("Available should be false without a player binary")
	}
	if p.Name() != "none" {
		t.Errorf("name = %q, want none", p.Name())
	}

	// Playback degrades to a no-op instead of failing the pipeline.
	if err := p.Play(context.Background(), []byte{0, 0}, pcmFormat); err != nil {
		t.Errorf("Play without binary = %v, want nil", err)
	}
}

func TestPlayerEmptyData(t *testing.T) {
	captured := fakePlayer(t, "cat > %q")

	p := audio.NewPlayer(nil)
	if err := p.Play(context.Background(), nil, pcmFormat); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if _, err := os.Stat(captured); !os.IsNotExist(err) {
		t.Error("empty data should not spawn the player")
	}
}
