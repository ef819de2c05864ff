package audio_test

import (
	"testing"
	"time"

	"github.com/lumenrobotics/go-aria/pkg/audio"
)

// chunkOf builds one 100ms capture read at 16kHz. Loud chunks carry a
// square wave well above the silence threshold; quiet ones are zeros.
func chunkOf(loud bool) []byte {
	samples := make([]int16, 1600)
	if loud {
		for i := range samples {
			if i%2 == 0 {
				samples[i] = 8000
			} else {
				samples[i] = -8000
			}
		}
	}
	return audio.ConvertInt16ToPCM16(samples)
}

func feed(k *audio.Chunker, loud bool, n int) []audio.Utterance {
	var out []audio.Utterance
	for i := 0; i < n; i++ {
		out = append(out, k.Feed(chunkOf(loud))...)
	}
	return out
}

func TestChunkerSpeechThenSilence(t *testing.T) {
	k := audio.NewChunker(audio.DefaultCaptureConfig())

	// 1.5s of speech produces nothing yet.
	if got := feed(k, true, 15); len(got) != 0 {
		t.Fatalf("utterances during speech = %d, want 0", len(got))
	}

	// The utterance closes once 800ms of silence accumulates.
	got := feed(k, false, 8)
	if len(got) != 1 {
		t.Fatalf("utterances after silence = %d, want 1", len(got))
	}

	u := got[0]
	if u.IsText() {
		t.Error("captured utterance should not be text")
	}
	if u.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", u.SampleRate)
	}
	// 15 loud + 8 quiet chunks of 3200 bytes each.
	if len(u.PCM) != 23*3200 {
		t.Errorf("pcm length = %d, want %d", len(u.PCM), 23*3200)
	}
	if u.Duration < 2200*time.Millisecond || u.Duration > 2400*time.Millisecond {
		t.Errorf("duration = %v, want ~2.3s", u.Duration)
	}
}

func TestChunkerDropsShortBlips(t *testing.T) {
	k := audio.NewChunker(audio.DefaultCaptureConfig())

	// Half a second of noise is below the minimum utterance length.
	feed(k, true, 5)
	if got := feed(k, false, 8); len(got) != 0 {
		t.Errorf("blip produced %d utterances, want 0", len(got))
	}

	// The gate must be fully reset: real speech afterwards still works.
	feed(k, true, 15)
	if got := feed(k, false, 8); len(got) != 1 {
		t.Errorf("speech after blip produced %d utterances, want 1", len(got))
	}
}

func TestChunkerIgnoresLeadingSilence(t *testing.T) {
	k := audio.NewChunker(audio.DefaultCaptureConfig())

	if got := feed(k, false, 50); len(got) != 0 {
		t.Errorf("silence produced %d utterances", len(got))
	}
	if u := k.Flush(); u != nil {
		t.Errorf("flush after silence = %+v, want nil", u)
	}
}

func TestChunkerSplitsLongSpeech(t *testing.T) {
	k := audio.NewChunker(audio.DefaultCaptureConfig())

	// 10s of continuous speech splits at the 5s cap, twice.
	var got []audio.Utterance
	for i := 0; i < 100; i++ {
		got = append(got, k.Feed(chunkOf(true))...)
	}
	if len(got) != 2 {
		t.Fatalf("utterances = %d, want 2", len(got))
	}
	for i, u := range got {
		if u.Duration != 5*time.Second {
			t.Errorf("utterance %d duration = %v, want 5s", i, u.Duration)
		}
	}
}

func TestChunkerFlush(t *testing.T) {
	k := audio.NewChunker(audio.DefaultCaptureConfig())

	feed(k, true, 12)
	u := k.Flush()
	if u == nil {
		t.Fatal("flush mid-speech returned nil")
	}
	if u.Duration < 1150*time.Millisecond || u.Duration > 1250*time.Millisecond {
		t.Errorf("flushed duration = %v, want ~1.2s", u.Duration)
	}

	// A second flush has nothing left.
	if again := k.Flush(); again != nil {
		t.Errorf("second flush = %+v, want nil", again)
	}
}

func TestCaptureConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*audio.CaptureConfig)
		ok     bool
	}{
		{"defaults", func(c *audio.CaptureConfig) {}, true},
		{"zero rate", func(c *audio.CaptureConfig) { c.SampleRate = 0 }, false},
		{"threshold too high", func(c *audio.CaptureConfig) { c.SilenceThreshold = 1.5 }, false},
		{"min above max", func(c *audio.CaptureConfig) { c.MinUtterance = 10 * time.Second }, false},
		{"zero buffer", func(c *audio.CaptureConfig) { c.BufferDuration = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := audio.DefaultCaptureConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestChunkerSpeechStartCallback(t *testing.T) {
	k := audio.NewChunker(audio.DefaultCaptureConfig())
	starts := 0
	k.OnSpeechStart = func() { starts++ }

	feed(k, false, 3)
	if starts != 0 {
		t.Errorf("starts = %d before any speech", starts)
	}

	feed(k, true, 12)
	if starts != 1 {
		t.Errorf("starts = %d, want 1 (fires once per utterance)", starts)
	}
	feed(k, false, 8) // closes the first utterance

	feed(k, true, 12)
	if starts != 2 {
		t.Errorf("starts = %d, want 2", starts)
	}
}
