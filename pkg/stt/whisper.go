package stt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

const (
	providerWhisper = "whisper"

	// DefaultWhisperBaseURL targets the OpenAI API. Point BaseURL at a
	// local faster-whisper server for offline transcription; the wire
	// format is the same.
	DefaultWhisperBaseURL = "https://api.openai.com/v1"

	// DefaultWhisperModel is the hosted Whisper model identifier.
	DefaultWhisperModel = "whisper-1"

	// DefaultSampleRate is the capture rate of the utterance pipeline.
	DefaultSampleRate = 16000
)

// Whisper transcribes speech through any OpenAI-compatible
// /audio/transcriptions endpoint: the hosted OpenAI API or a local
// whisper server. The two differ only in BaseURL and whether an API
// key is sent.
type Whisper struct {
	config  *Config
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewWhisper creates a Whisper transcription provider.
func NewWhisper(opts ...Option) (*Whisper, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Whisper{
		config:  cfg,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With("component", "stt.whisper"),
	}, nil
}

// Transcribe uploads one utterance and returns its transcript.
// Raw PCM16 input is wrapped in a WAV container; input that already
// carries a RIFF header is uploaded as-is. Empty audio and silent
// utterances both come back as "" with a nil error.
func (w *Whisper) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}

	start := time.Now()

	wav := audio
	if !isWAV(audio) {
		wav = wavWrap(audio, w.config.SampleRate)
	}

	body, contentType, err := w.buildForm(wav)
	if err != nil {
		return "", WrapError(providerWhisper, fmt.Errorf("build form: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.baseURL+"/audio/transcriptions", bytes.NewReader(body))
	if err != nil {
		return "", WrapError(providerWhisper, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	if w.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.config.APIKey)
	}

	resp, err := w.doWithRetry(ctx, req, body)
	if err != nil {
		return "", classifyTransport(providerWhisper, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := w.parseError(resp)
		// 400/422 mean the server could not make sense of the audio
		// payload; retrying the same bytes cannot help.
		if apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusUnprocessableEntity {
			return "", &TranscriptionError{
				Provider: providerWhisper,
				Err:      fmt.Errorf("%w: %s", ErrMalformedAudio, apiErr.Message),
			}
		}
		return "", apiErr
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", WrapError(providerWhisper, fmt.Errorf("decode response: %w", err))
	}

	text := strings.TrimSpace(result.Text)
	w.logger.Debug("utterance transcribed",
		"chars", len(text),
		"audio_bytes", len(audio),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return text, nil
}

// Health checks API connectivity.
func (w *Whisper) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", w.baseURL+"/models", nil)
	if err != nil {
		return WrapError(providerWhisper, fmt.Errorf("create request: %w", err))
	}
	if w.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.config.APIKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return classifyTransport(providerWhisper, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return w.parseError(resp)
	}
	return nil
}

// Close releases resources.
func (w *Whisper) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

// buildForm assembles the multipart upload: the WAV file plus the
// model, optional language hint, and response format fields.
func (w *Whisper) buildForm(wav []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(wav); err != nil {
		return nil, "", err
	}

	if err := mw.WriteField("model", w.config.Model); err != nil {
		return nil, "", err
	}
	if w.config.Language != "" {
		if err := mw.WriteField("language", w.config.Language); err != nil {
			return nil, "", err
		}
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return nil, "", err
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// doWithRetry performs the request with retry logic.
func (w *Whisper) doWithRetry(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(w.config.RetryDelay * time.Duration(attempt)):
			}
			// Reset body for retry
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = err
			w.logger.Warn("request failed, retrying",
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = w.parseError(resp)
			w.logger.Warn("retrying request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads and parses an error response. Hosted OpenAI wraps
// errors in an "error" envelope; FastAPI-based local whisper servers
// use a flat "detail" field.
func (w *Whisper) parseError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
		Detail string `json:"detail"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil {
		switch {
		case errResp.Error.Message != "":
			message = errResp.Error.Message
			code = errResp.Error.Code
		case errResp.Detail != "":
			message = errResp.Detail
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerWhisper,
	}
}

// classifyTransport maps transport failures onto the sentinel taxonomy.
// Anything unrecognized is wrapped with provider context.
func classifyTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, provider, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, provider, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) {
		return fmt.Errorf("%w: %s: %v", ErrUnreachable, provider, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %s: %v", ErrUnreachable, provider, err)
	}
	return WrapError(provider, err)
}

// isWAV reports whether data already carries a RIFF/WAVE header.
func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// wavWrap puts a minimal RIFF/WAVE header around raw mono PCM16 so the
// upload looks like a file to servers that sniff the container.
func wavWrap(pcm []byte, sampleRate int) []byte {
	const (
		channels = 1
		bitDepth = 16
	)
	blockAlign := channels * bitDepth / 8
	byteRate := sampleRate * blockAlign

	buf := make([]byte, 44+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], channels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitDepth)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}

// Ensure Whisper implements Provider.
var _ Provider = (*Whisper)(nil)
