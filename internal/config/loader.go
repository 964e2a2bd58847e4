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

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelPath string `json:"model_path" yaml:"model_path" toml:"model_path"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	// StorePath is the SQLite file for conversation state. Empty keeps
	// everything in memory.
	StorePath string `json:"store_path" yaml:"store_path" toml:"store_path"`

	// Model runtime knobs.
	CtxLength   int     `json:"ctx_length" yaml:"ctx_length" toml:"ctx_length"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Temperature float32 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP        float32 `json:"top_p" yaml:"top_p" toml:"top_p"`
	TopK        int     `json:"top_k" yaml:"top_k" toml:"top_k"`
	GPULayers   int     `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	Threads     int     `json:"threads" yaml:"threads" toml:"threads"`
	BatchSize   int     `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	RepeatGuard int     `json:"repeat_guard" yaml:"repeat_guard" toml:"repeat_guard"`

	// Queue and HTTP behavior.
	QueueDepth         int   `json:"queue_depth" yaml:"queue_depth" toml:"queue_depth"`
	MaxBodyBytes       int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	GenerateTimeoutSec int64 `json:"generate_timeout_sec" yaml:"generate_timeout_sec" toml:"generate_timeout_sec"`

	// Routing thresholds. Zero keeps the built-in defaults.
	SupportThreshold    float32 `json:"support_threshold" yaml:"support_threshold" toml:"support_threshold"`
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold" toml:"confidence_threshold"`

	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`

	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
	CORSAllowedMethods []string `json:"cors_allowed_methods" yaml:"cors_allowed_methods" toml:"cors_allowed_methods"`
	CORSAllowedHeaders []string `json:"cors_allowed_headers" yaml:"cors_allowed_headers" toml:"cors_allowed_headers"`
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
