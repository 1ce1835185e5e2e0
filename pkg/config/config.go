// Package config loads settings from ~/.exogram/config.yaml with
// EXOGRAM_* environment overrides on top. Every field has a working
// default; a missing config file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Settings is the full configuration surface.
type Settings struct {
	// DataDir is the root for recordings, cognition files, memory, and
	// auth state. Defaults to ~/.exogram.
	DataDir string `yaml:"data_dir"`

	// DistillModel is used for demonstration distillation.
	DistillModel string `yaml:"distill_model"`
	// AgentModel drives the browsing agent.
	AgentModel string `yaml:"agent_model"`
	// BaseURL overrides the model API endpoint, for compatible gateways.
	BaseURL string `yaml:"base_url"`
	// APIKey authenticates model calls. The OPENAI_API_KEY environment
	// variable also works.
	APIKey string `yaml:"api_key"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	// TimeoutSeconds bounds a single model call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// MaxRetries bounds distillation attempts per document.
	MaxRetries int `yaml:"max_retries"`

	// SafeMode withholds destructive browser actions until confirmed.
	// On by default.
	SafeMode bool `yaml:"safe_mode"`
	// Headless hides the browser window. On by default.
	Headless bool `yaml:"headless"`
}

func defaults() *Settings {
	home, _ := os.UserHomeDir()
	return &Settings{
		DataDir:        filepath.Join(home, ".exogram"),
		DistillModel:   "gpt-4o",
		AgentModel:     "gpt-4o",
		Temperature:    0.2,
		MaxTokens:      4096,
		TimeoutSeconds: 120,
		MaxRetries:     3,
		SafeMode:       true,
		Headless:       true,
	}
}

// Path returns the config file location.
func Path() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".exogram", "config.yaml")
}

// Load reads the config file if present and applies environment
// overrides. A missing file yields the defaults.
func Load() (*Settings, error) {
	return LoadFrom(Path())
}

// LoadFrom loads settings from an explicit file path.
func LoadFrom(path string) (*Settings, error) {
	s := defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	s.applyEnv()
	return s, nil
}

func (s *Settings) applyEnv() {
	setString(&s.DataDir, "EXOGRAM_DATA_DIR")
	setString(&s.DistillModel, "EXOGRAM_DISTILL_MODEL")
	setString(&s.AgentModel, "EXOGRAM_AGENT_MODEL")
	setString(&s.BaseURL, "EXOGRAM_BASE_URL")
	setString(&s.APIKey, "EXOGRAM_API_KEY")
	setInt(&s.MaxTokens, "EXOGRAM_MAX_TOKENS")
	setInt(&s.TimeoutSeconds, "EXOGRAM_TIMEOUT_SECONDS")
	setInt(&s.MaxRetries, "EXOGRAM_MAX_RETRIES")
	setFloat(&s.Temperature, "EXOGRAM_TEMPERATURE")
	setBool(&s.SafeMode, "EXOGRAM_SAFE_MODE")
	setBool(&s.Headless, "EXOGRAM_HEADLESS")
}

// StepsDir is where normalized recordings live.
func (s *Settings) StepsDir() string { return filepath.Join(s.DataDir, "steps") }

// CognitionDir is where distilled cognition records live.
func (s *Settings) CognitionDir() string { return filepath.Join(s.DataDir, "cognition") }

// MemoryPath is the append-only memory store file.
func (s *Settings) MemoryPath() string { return filepath.Join(s.DataDir, "memory", "cognition.jsonl") }

// AuthDir is where per-domain login state lives.
func (s *Settings) AuthDir() string { return filepath.Join(s.DataDir, "auth") }

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
