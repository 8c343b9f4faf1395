package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickIntervalMs  int `yaml:"tick_interval_ms"`
	FlushIntervalMs int `yaml:"flush_interval_ms"`
	SessionQueue    int `yaml:"session_queue"`

	ReadTimeoutS  int `yaml:"read_timeout_s"`
	WriteTimeoutS int `yaml:"write_timeout_s"`
}

func defaults() Tuning {
	return Tuning{
		TickIntervalMs:  1000,
		FlushIntervalMs: 30000,
		SessionQueue:    64,
		ReadTimeoutS:    60,
		WriteTimeoutS:   5,
	}
}

// Load reads tuning.yaml. An empty path returns defaults; a missing file is
// an error so a mistyped flag does not silently run on defaults.
func Load(path string) (Tuning, error) {
	t := defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickIntervalMs <= 0 {
		return fmt.Errorf("tuning: tick_interval_ms must be positive")
	}
	if t.FlushIntervalMs <= 0 {
		return fmt.Errorf("tuning: flush_interval_ms must be positive")
	}
	if t.SessionQueue <= 0 {
		return fmt.Errorf("tuning: session_queue must be positive")
	}
	return nil
}
