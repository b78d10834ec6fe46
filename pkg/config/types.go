package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Security   SecurityConfig   `yaml:"security"`
	Logging    LoggingConfig    `yaml:"logging"`
	Generation GenerationConfig `yaml:"generation"`
	Engine     EngineConfig     `yaml:"engine"`
	Client     ClientConfig     `yaml:"client"`
	Retention  RetentionConfig  `yaml:"retention"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	DBPath  string    `yaml:"db_path"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// SecurityConfig holds security related settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	APIKeys struct {
		Backend  []string `yaml:"backend"`
		Frontend []string `yaml:"frontend"`
	} `yaml:"api_keys"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// GenerationConfig selects and tunes the generation capability used by the
// engine to produce assistant replies.
type GenerationConfig struct {
	// Provider is "openai" or "scripted" (tests/dev).
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// APIKey may also come from ATELIER_GENERATION_API_KEY or OPENAI_API_KEY.
	APIKey    string `yaml:"api_key"`
	MaxTokens int    `yaml:"max_tokens"`
	// Timeout bounds a single generation call; zero means no deadline.
	Timeout Duration `yaml:"timeout"`
	// SystemPrompt prefixes every conversation sent to the provider.
	SystemPrompt string `yaml:"system_prompt"`
}

// EngineConfig controls the per-project generation queues.
type EngineConfig struct {
	// QueueCapacity bounds each project's pending-turn queue.
	QueueCapacity int `yaml:"queue_capacity"`
	// MaxPooledBufferBytes caps prompt buffers returned to the pool.
	MaxPooledBufferBytes SizeBytes `yaml:"max_pooled_buffer_bytes"`
}

// ClientConfig holds polling-client settings.
type ClientConfig struct {
	// RefreshInterval is the poll cadence; defaults to 5s.
	RefreshInterval Duration `yaml:"refresh_interval"`
}

// RetentionConfig holds configuration for the soft-deleted-project purge
// runner.
type RetentionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	// MinAge keeps a soft-deleted project recoverable for at least this long.
	MinAge Duration `yaml:"min_age"`
	DryRun bool     `yaml:"dry_run"`
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly
// strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration is a wrapper around time.Duration that supports YAML parsing from
// strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
