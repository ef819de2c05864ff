package audio_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lumenrobotics/go-aria/pkg/audio"
)

func collectUtterances(t *testing.T, ch <-chan audio.Utterance, timeout time.Duration) []audio.Utterance {
	t.Helper()
	var got []audio.Utterance
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, u)
		case <-time.After(timeout):
			t.Fatalf("timed out waiting for utterances, have %d", len(got))
		}
	}
}

func TestConsoleSource(t *testing.T) {
	src := audio.NewConsoleSource(strings.NewReader("hello\n\n  turn on the light  \n"), nil)
	if src.Name() != "console" {
		t.Errorf("name = %q", src.Name())
	}

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Close()

	got := collectUtterances(t, src.Utterances(), time.Second)
	if len(got) != 2 {
		t.Fatalf("utterances = %d, want 2 (blank lines skipped)", len(got))
	}
	if !got[0].IsText() || got[0].Text != "hello" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Text != "turn on the light" {
		t.Errorf("second = %q, want trimmed text", got[1].Text)
	}
}

func TestConsoleSourceClosed(t *testing.T) {
	src := audio.NewConsoleSource(strings.NewReader(""), nil)
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := src.Start(context.Background()); !errors.Is(err, audio.ErrSourceClosed) {
		t.Errorf("Start after Close = %v, want ErrSourceClosed", err)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()

	// A one-second 8kHz file: the source must resample it up to 16kHz.
	pcm := audio.ConvertInt16ToPCM16(make([]int16, 8000))
	path := filepath.Join(dir, "utterance.wav")
	if err := os.WriteFile(path, audio.EncodeWAV(pcm, 8000, 1, 16), 0o644); err != nil {
		t.Fatal(err)
	}

	src := audio.NewFileSource(16000, nil, path)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Close()

	got := collectUtterances(t, src.Utterances(), time.Second)
	if len(got) != 1 {
		t.Fatalf("utterances = %d, want 1", len(got))
	}
	u := got[0]
	if u.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", u.SampleRate)
	}
	if len(u.PCM) != 32000 {
		t.Errorf("pcm length = %d, want 32000 after resampling", len(u.PCM))
	}
}

func TestFileSourceStereoDownmix(t *testing.T) {
	dir := t.TempDir()

	stereo := make([]int16, 32000) // 1s stereo at 16kHz
	for i := 0; i < len(stereo); i += 2 {
		stereo[i] = 100
		stereo[i+1] = 200
	}
	path := filepath.Join(dir, "stereo.wav")
	wav := audio.EncodeWAV(audio.ConvertInt16ToPCM16(stereo), 16000, 2, 16)
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		t.Fatal(err)
	}

	src := audio.NewFileSource(16000, nil, path)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Close()

	got := collectUtterances(t, src.Utterances(), time.Second)
	if len(got) != 1 {
		t.Fatalf("utterances = %d, want 1", len(got))
	}
	samples := audio.ConvertPCM16ToInt16(got[0].PCM)
	if len(samples) != 16000 {
		t.Fatalf("mono samples = %d, want 16000", len(samples))
	}
	if samples[0] != 150 {
		t.Errorf("downmixed sample = %d, want 150", samples[0])
	}
}

func TestFileSourceSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "not-audio.wav")
	if err := os.WriteFile(bad, []byte("definitely not a wav"), 0o644); err != nil {
		t.Fatal(err)
	}

	good := filepath.Join(dir, "good.wav")
	wav := audio.EncodeWAV(audio.ConvertInt16ToPCM16(make([]int16, 16000)), 16000, 1, 16)
	if err := os.WriteFile(good, wav, 0o644); err != nil {
		t.Fatal(err)
	}

	src := audio.NewFileSource(16000, nil, bad, good)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Close()

	got := collectUtterances(t, src.Utterances(), time.Second)
	if len(got) != 1 {
		t.Errorf("utterances = %d, want 1 (bad file skipped)", len(got))
	}
}

// fakeRecorder installs an arecord stand-in that plays back a canned
// capture stream and then holds the pipe open like a real microphone.
func fakeRecorder(t *testing.T, raw []byte) {
	t.Helper()
	dir := t.TempDir()

	rawPath := filepath.Join(dir, "stream.raw")
	if err := os.WriteFile(rawPath, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	script := fmt.Sprintf("#!/bin/sh\ncat %q\nsleep 30\n", rawPath)
	if err := os.WriteFile(filepath.Join(dir, "arecord"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestMicSource(t *testing.T) {
	// 1.5s of speech followed by 1s of silence at 16kHz.
	var raw []byte
	for i := 0; i < 15; i++ {
		raw = append(raw, chunkOf(true)...)
	}
	for i := 0; i < 10; i++ {
		raw = append(raw, chunkOf(false)...)
	}
	fakeRecorder(t, raw)

	src, err := audio.NewMicSource(audio.DefaultCaptureConfig(), nil)
	if err != nil {
		t.Fatalf("NewMicSource: %v", err)
	}
	defer src.Close()

	if src.Name() != "arecord" {
		t.Errorf("name = %q, want arecord", src.Name())
	}

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case u := <-src.Utterances():
		if len(u.PCM) != 23*3200 {
			t.Errorf("pcm length = %d, want %d", len(u.PCM), 23*3200)
		}
		if u.SampleRate != 16000 {
			t.Errorf("sample rate = %d", u.SampleRate)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no utterance from mic source")
	}

	if err := src.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestMicSourceNoBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := audio.NewMicSource(audio.DefaultCaptureConfig(), nil)
	if !errors.Is(err, audio.ErrNoCaptureBinary) {
		t.Errorf("expected ErrNoCaptureBinary, got %v", err)
	}
}

func TestMicSourceContextCancel(t *testing.T) {
	fakeRecorder(t, chunkOf(false))

	src, err := audio.NewMicSource(audio.DefaultCaptureConfig(), nil)
	if err != nil {
		t.Fatalf("NewMicSource: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	select {
	case _, ok := <-src.Utterances():
		if ok {
			t.Error("expected channel close after cancel, got utterance")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not close after context cancel")
	}
}
