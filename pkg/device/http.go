package device

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lumenrobotics/go-aria/internal/httpc"
)

// httpClient is shared by all HTTPController instances. The daemon lives
// on the local network, so anything slower than 2s is effectively down.
var httpClient = httpc.NewClient(2 * time.Second)

// HTTPController drives the device daemon's HTTP API.
type HTTPController struct {
	BaseURL string
}

// NewHTTPController creates a controller for the daemon at http://{ip}:8000.
func NewHTTPController(deviceIP string) *HTTPController {
	return &HTTPController{
		BaseURL: fmt.Sprintf("http://%s:8000", deviceIP),
	}
}

// SetLight turns the front light on or off.
func (c *HTTPController) SetLight(on bool) error {
	return c.post("/api/light/set", map[string]any{"on": on})
}

// SetVolume sets the speaker volume (0-100, clamped).
func (c *HTTPController) SetVolume(level int) error {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	return c.post("/api/volume/set", map[string]any{"volume": level})
}

// PlayAudio sends PCM16 audio to the device speaker.
func (c *HTTPController) PlayAudio(pcm []byte, sampleRate int) error {
	return c.post("/api/audio/play", map[string]any{
		"audio":       base64.StdEncoding.EncodeToString(pcm),
		"sample_rate": sampleRate,
	})
}

// DaemonStatus returns the daemon state string (e.g. "running").
func (c *HTTPController) DaemonStatus() (string, error) {
	resp, err := httpClient.Get(c.BaseURL + "/api/daemon/status")
	if err != nil {
		return "", fmt.Errorf("device: daemon status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("device: daemon status returned %d", resp.StatusCode)
	}

	var status struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("device: failed to decode daemon status: %w", err)
	}
	return status.State, nil
}

// post sends a JSON command to the daemon and checks for an error status.
func (c *HTTPController) post(path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("device: failed to marshal %s payload: %w", path, err)
	}

	resp, err := httpClient.Post(c.BaseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("device: %s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("device: %s returned %d", path, resp.StatusCode)
	}
	return nil
}
