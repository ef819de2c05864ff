package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	elevenLabsWSBaseURL  = "wss://api.elevenlabs.io/v1/text-to-speech"
	providerElevenLabsWS = "elevenlabs-ws"
	wsHandshakeTimeout   = 10 * time.Second
)

// ElevenLabsWS implements Provider over the ElevenLabs stream-input
// WebSocket API. Each synthesis opens its own connection: the socket is
// dialed, the text is sent, and audio chunks arrive as they are
// generated, which cuts time-to-first-byte compared to the REST path.
type ElevenLabsWS struct {
	config  *Config
	logger  *slog.Logger
	baseURL string
	dialer  *websocket.Dialer
}

// NewElevenLabsWS creates a WebSocket-based ElevenLabs TTS provider.
// Output defaults to 24kHz PCM since raw audio is what makes the
// streaming path worthwhile.
func NewElevenLabsWS(opts ...Option) (*ElevenLabsWS, error) {
	cfg := DefaultConfig()
	cfg.OutputFormat = EncodingPCM24
	cfg.Apply(opts...)

	if cfg.VoiceID == "" {
		cfg.VoiceID = DefaultElevenLabsVoice
	}
	cfg.VoiceID = ResolveElevenLabsVoice(cfg.VoiceID)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = elevenLabsWSBaseURL
	}

	return &ElevenLabsWS{
		config:  cfg,
		logger:  cfg.Logger.With("component", "tts.elevenlabs_ws"),
		baseURL: baseURL,
		dialer:  &websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout},
	}, nil
}

// Synthesize streams the full utterance and returns it as one buffer.
func (e *ElevenLabsWS) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	stream, err := e.Stream(ctx, text)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var audio []byte
	var firstByte int64
	for {
		chunk, err := stream.Read()
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			break
		}
		if firstByte == 0 {
			firstByte = time.Since(start).Milliseconds()
		}
		audio = append(audio, chunk...)
	}

	e.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"first_byte_ms", firstByte,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    stream.Format(),
		CharCount: len(text),
		LatencyMs: firstByte,
		Duration:  e.estimateDuration(len(audio)),
	}, nil
}

// Stream opens a stream-input connection, sends the text, and returns a
// stream of audio chunks. The protocol is: begin-of-stream message with
// voice settings, one or more text messages, then an empty text message
// to signal end of input.
func (e *ElevenLabsWS) Stream(ctx context.Context, text string) (AudioStream, error) {
	url := fmt.Sprintf("%s/%s/stream-input?model_id=%s&output_format=%s",
		e.baseURL, e.config.VoiceID, e.config.ModelID, e.config.OutputFormat)

	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)

	conn, resp, err := e.dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Message:    err.Error(),
				Provider:   providerElevenLabsWS,
			}
		}
		return nil, WrapError(providerElevenLabsWS, fmt.Errorf("dial: %w", err))
	}

	bos := map[string]interface{}{
		"text": " ", // space initializes the stream
		"voice_settings": map[string]interface{}{
			"stability":        e.config.VoiceSettings.Stability,
			"similarity_boost": e.config.VoiceSettings.SimilarityBoost,
		},
		"generation_config": map[string]interface{}{
			"chunk_length_schedule": []int{120, 160, 250, 290},
		},
	}
	if err := conn.WriteJSON(bos); err != nil {
		conn.Close()
		return nil, WrapError(providerElevenLabsWS, fmt.Errorf("send BOS: %w", err))
	}

	msg := map[string]interface{}{
		"text":                   text + " ",
		"try_trigger_generation": true,
	}
	if err := conn.WriteJSON(msg); err != nil {
		conn.Close()
		return nil, WrapError(providerElevenLabsWS, fmt.Errorf("send text: %w", err))
	}

	// End of stream
	if err := conn.WriteJSON(map[string]interface{}{"text": ""}); err != nil {
		conn.Close()
		return nil, WrapError(providerElevenLabsWS, fmt.Errorf("send EOS: %w", err))
	}

	conn.SetReadDeadline(time.Now().Add(e.config.StreamTimeout))

	return &wsStream{
		conn: conn,
		format: AudioFormat{
			Encoding:   e.config.OutputFormat,
			SampleRate: SampleRateFromEncoding(e.config.OutputFormat),
			Channels:   1,
			BitDepth:   16,
		},
	}, nil
}

// Health dials the stream-input endpoint and closes it again. A bad key
// surfaces as a handshake rejection.
func (e *ElevenLabsWS) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/%s/stream-input?model_id=%s",
		e.baseURL, e.config.VoiceID, e.config.ModelID)

	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)

	conn, resp, err := e.dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return &APIError{
				StatusCode: resp.StatusCode,
				Message:    err.Error(),
				Provider:   providerElevenLabsWS,
			}
		}
		return WrapError(providerElevenLabsWS, fmt.Errorf("health check: %w", err))
	}

	conn.WriteJSON(map[string]interface{}{"text": ""})
	return conn.Close()
}

// Close is a no-op; connections are per-synthesis.
func (e *ElevenLabsWS) Close() error {
	return nil
}

// VoiceID returns the resolved voice ID.
func (e *ElevenLabsWS) VoiceID() string {
	return e.config.VoiceID
}

// estimateDuration estimates audio duration from byte count (PCM16).
func (e *ElevenLabsWS) estimateDuration(bytes int) time.Duration {
	sampleRate := SampleRateFromEncoding(e.config.OutputFormat)
	samples := bytes / 2
	seconds := float64(samples) / float64(sampleRate)
	return time.Duration(seconds * float64(time.Second))
}

// wsStream reads audio frames off a stream-input connection.
type wsStream struct {
	conn   *websocket.Conn
	format AudioFormat
	done   bool
}

// Read returns the next audio chunk, or nil when synthesis is complete.
// Frames without audio (alignment metadata) are skipped.
func (s *wsStream) Read() ([]byte, error) {
	if s.done {
		return nil, nil
	}

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.done = true
				return nil, nil
			}
			return nil, WrapError(providerElevenLabsWS, err)
		}

		var frame struct {
			Audio   string `json:"audio"`
			IsFinal bool   `json:"isFinal"`
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(message, &frame); err != nil {
			return nil, WrapError(providerElevenLabsWS, fmt.Errorf("parse frame: %w", err))
		}

		if frame.Error != "" {
			return nil, WrapError(providerElevenLabsWS, fmt.Errorf("%s: %s", frame.Error, frame.Message))
		}

		if frame.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(frame.Audio)
			if err != nil {
				return nil, WrapError(providerElevenLabsWS, fmt.Errorf("decode audio: %w", err))
			}
			if frame.IsFinal {
				s.done = true
			}
			return chunk, nil
		}

		if frame.IsFinal {
			s.done = true
			return nil, nil
		}
	}
}

// Close tears down the connection.
func (s *wsStream) Close() error {
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

// Format returns the audio format.
func (s *wsStream) Format() AudioFormat {
	return s.format
}

// Verify ElevenLabsWS implements Provider at compile time.
var _ Provider = (*ElevenLabsWS)(nil)
