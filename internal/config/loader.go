package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel     string `json:"log_level" yaml:"log_level" toml:"log_level"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`
	// Extra model ids advertised by /v1/models alongside the default.
	Models []string `json:"models" yaml:"models" toml:"models"`
	// Directory scanned for *.gguf files to advertise; optional.
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`

	Limits   Limits   `json:"limits" yaml:"limits" toml:"limits"`
	Security Security `json:"security" yaml:"security" toml:"security"`
	Redis    Redis    `json:"redis" yaml:"redis" toml:"redis"`
	Backend  Backend  `json:"backend" yaml:"backend" toml:"backend"`
	CORS     CORS     `json:"cors" yaml:"cors" toml:"cors"`
}

// Limits bounds request admission: sliding-window rate limits per client,
// concurrent in-flight requests, and request body size.
type Limits struct {
	MaxRequests     int `json:"max_requests" yaml:"max_requests" toml:"max_requests"`
	WindowSeconds   int `json:"window_seconds" yaml:"window_seconds" toml:"window_seconds"`
	ChatMaxRequests int `json:"chat_max_requests" yaml:"chat_max_requests" toml:"chat_max_requests"`
	MaxConcurrent   int `json:"max_concurrent" yaml:"max_concurrent" toml:"max_concurrent"`
	MaxBodyBytes    int `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// Security bounds the recursive payload validator.
type Security struct {
	MaxDepth     int `json:"max_depth" yaml:"max_depth" toml:"max_depth"`
	MaxStringLen int `json:"max_string_len" yaml:"max_string_len" toml:"max_string_len"`
	MaxListLen   int `json:"max_list_len" yaml:"max_list_len" toml:"max_list_len"`
}

// Redis selects the shared rate-limit store. When Addr is empty the service
// falls back to the in-memory store.
type Redis struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	Password string `json:"password" yaml:"password" toml:"password"`
	DB       int    `json:"db" yaml:"db" toml:"db"`
}

// Backend selects where inference runs: "upstream" proxies an
// OpenAI-compatible API, "local" runs in-process via llama.cpp.
type Backend struct {
	Mode string `json:"mode" yaml:"mode" toml:"mode"`

	UpstreamURL     string `json:"upstream_url" yaml:"upstream_url" toml:"upstream_url"`
	UpstreamAPIKey  string `json:"upstream_api_key" yaml:"upstream_api_key" toml:"upstream_api_key"`
	UpstreamTimeout int    `json:"upstream_timeout_seconds" yaml:"upstream_timeout_seconds" toml:"upstream_timeout_seconds"`

	ModelPath string `json:"model_path" yaml:"model_path" toml:"model_path"`
	CtxSize   int    `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	Threads   int    `json:"threads" yaml:"threads" toml:"threads"`
}

// CORS gates browser cross-origin access; off unless enabled.
type CORS struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
}

// Defaults matching the documented behavior of the public API.
const (
	DefaultAddr            = ":8080"
	DefaultLogLevel        = "info"
	DefaultMaxRequests     = 60
	DefaultWindowSeconds   = 60
	DefaultChatMaxRequests = 30
	DefaultMaxConcurrent   = 10
	DefaultMaxBodyBytes    = 1 << 20
	DefaultMaxDepth        = 10
	DefaultMaxStringLen    = 10000
	DefaultMaxListLen      = 1000
	DefaultBackendMode     = "upstream"
)

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

// ApplyDefaults fills every unspecified field with its documented default.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Limits.MaxRequests <= 0 {
		c.Limits.MaxRequests = DefaultMaxRequests
	}
	if c.Limits.WindowSeconds <= 0 {
		c.Limits.WindowSeconds = DefaultWindowSeconds
	}
	if c.Limits.ChatMaxRequests <= 0 {
		c.Limits.ChatMaxRequests = DefaultChatMaxRequests
	}
	if c.Limits.MaxConcurrent <= 0 {
		c.Limits.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Limits.MaxBodyBytes <= 0 {
		c.Limits.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Security.MaxDepth <= 0 {
		c.Security.MaxDepth = DefaultMaxDepth
	}
	if c.Security.MaxStringLen <= 0 {
		c.Security.MaxStringLen = DefaultMaxStringLen
	}
	if c.Security.MaxListLen <= 0 {
		c.Security.MaxListLen = DefaultMaxListLen
	}
	if c.Backend.Mode == "" {
		c.Backend.Mode = DefaultBackendMode
	}
}

// Validate rejects combinations that cannot serve.
func (c Config) Validate() error {
	switch c.Backend.Mode {
	case "upstream":
		if c.Backend.UpstreamURL == "" {
			return fmt.Errorf("backend mode %q requires upstream_url", c.Backend.Mode)
		}
	case "local":
		if c.Backend.ModelPath == "" {
			return fmt.Errorf("backend mode %q requires model_path", c.Backend.Mode)
		}
	default:
		return fmt.Errorf("unknown backend mode: %q", c.Backend.Mode)
	}
	if c.CORS.Enabled && len(c.CORS.AllowedOrigins) == 0 {
		return fmt.Errorf("cors enabled but no allowed_origins")
	}
	return nil
}

// Window returns the rate-limit window as a duration.
func (l Limits) Window() time.Duration {
	return time.Duration(l.WindowSeconds) * time.Second
}

// UpstreamTimeoutDuration returns the configured upstream timeout, or zero
// when unset so the backend picks its own default.
func (b Backend) UpstreamTimeoutDuration() time.Duration {
	return time.Duration(b.UpstreamTimeout) * time.Second
}
