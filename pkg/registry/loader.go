package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// agentFile is the on-disk form of an AgentConfig. Durations are plain
// milliseconds so agent files stay hand-editable.
type agentFile struct {
	AgentConfig
	SilenceTimeoutMs int `json:"silence_timeout_ms,omitempty"`
	LLMTimeoutMs     int `json:"llm_timeout_ms,omitempty"`
}

// LoadDir registers every *.json agent file found in dir. A missing
// directory is not an error; a malformed file is, wrapped in
// ErrConfigInvalid with the file path. Files override built-ins that
// share a name.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("registry: reading agents dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		cfg, err := loadFile(path)
		if err != nil {
			return err
		}
		if cfg.Name == "" {
			cfg.Name = strings.TrimSuffix(entry.Name(), ".json")
		}
		if err := r.Register(cfg); err != nil {
			return fmt.Errorf("%w: %s", err, path)
		}
	}
	return nil
}

func loadFile(path string) (AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AgentConfig{}, fmt.Errorf("registry: reading %s: %w", path, err)
	}

	var file agentFile
	if err := json.Unmarshal(data, &file); err != nil {
		return AgentConfig{}, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, path, err)
	}

	cfg := file.AgentConfig
	if file.SilenceTimeoutMs > 0 {
		cfg.SilenceTimeout = time.Duration(file.SilenceTimeoutMs) * time.Millisecond
	}
	if file.LLMTimeoutMs > 0 {
		cfg.LLMTimeout = time.Duration(file.LLMTimeoutMs) * time.Millisecond
	}
	return cfg, nil
}
