package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds run-level parameters for the harness.
// Zero values mean "unspecified"; defaults are applied by the consumers
// (the generator applies sampling defaults, the CLI applies addr defaults).
type Config struct {
	// Executable is the path to the ggml runner binary. When empty, the
	// GGML_MAIN_PATH environment variable is consulted instead.
	Executable string `json:"executable" yaml:"executable" toml:"executable"`
	// Model is the gguf model file used by one-shot runs.
	Model string `json:"model" yaml:"model" toml:"model"`
	// ModelsDir is scanned for *.gguf files in serve mode.
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	// Addr is the HTTP listen address for serve mode, e.g. ":8080".
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
	// Seed drives the runner's -s flag. nil resolves to 0, never to the
	// runner's "random" sentinel.
	Seed *int `json:"seed" yaml:"seed" toml:"seed"`
	// Verbose controls diagnostics; > 1 dumps full command lines.
	Verbose int `json:"verbose" yaml:"verbose" toml:"verbose"`
	// Generations is the completions-per-prompt count (0 → generator default).
	Generations int `json:"generations" yaml:"generations" toml:"generations"`
	// RaiseOnFailure toggles the first-call escalation policy (nil → true).
	RaiseOnFailure *bool `json:"raise_on_failure" yaml:"raise_on_failure" toml:"raise_on_failure"`

	// Sampling overrides; nil fields keep the generator defaults.
	MaxTokens        *int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	RepeatPenalty    *float64 `json:"repeat_penalty" yaml:"repeat_penalty" toml:"repeat_penalty"`
	PresencePenalty  *float64 `json:"presence_penalty" yaml:"presence_penalty" toml:"presence_penalty"`
	FrequencyPenalty *float64 `json:"frequency_penalty" yaml:"frequency_penalty" toml:"frequency_penalty"`
	TopK             *int     `json:"top_k" yaml:"top_k" toml:"top_k"`
	TopP             *float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	Temperature      *float64 `json:"temperature" yaml:"temperature" toml:"temperature"`

	CORS CORSConfig `json:"cors" yaml:"cors" toml:"cors"`
}

// CORSConfig configures the serve-mode CORS middleware (opt-in).
type CORSConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
