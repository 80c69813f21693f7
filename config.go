package citelens

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pdewitt/citelens/llm"
	"github.com/pdewitt/citelens/viewer"
)

// Config holds all configuration for the citelens engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.citelens/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "citelens".
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.citelens/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// Chat configures the extraction LLM.
	Chat llm.Config `json:"chat" yaml:"chat"`

	// ExtractConcurrency caps parallel LLM calls during extraction (default 4).
	ExtractConcurrency int `json:"extract_concurrency" yaml:"extract_concurrency"`

	// Reducto configures the remote parsing service for pdf/docx/pptx.
	Reducto *ReductoConfig `json:"reducto,omitempty" yaml:"reducto,omitempty"`

	// Viewer tunes the active-citation timers.
	Viewer ViewerConfig `json:"viewer" yaml:"viewer"`

	// Serve configures the HTTP server.
	Serve ServeConfig `json:"serve" yaml:"serve"`
}

// ReductoConfig configures the Reducto external parsing service.
type ReductoConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// ViewerConfig tunes highlight timing.
type ViewerConfig struct {
	// DwellSeconds is how long a highlight stays before fading (default 15).
	DwellSeconds int `json:"dwell_seconds" yaml:"dwell_seconds"`
	// FadeMillis is the fade animation duration (default 400).
	FadeMillis int `json:"fade_millis" yaml:"fade_millis"`
}

// ServeConfig configures the HTTP server.
type ServeConfig struct {
	Addr   string `json:"addr" yaml:"addr"`
	APIKey string `json:"api_key" yaml:"api_key"` // optional bearer token
}

// DefaultConfig returns a Config with sensible defaults for local inference.
// Database is stored in ~/.citelens/citelens.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "citelens",
		StorageDir: "home",
		Chat: llm.Config{
			Provider: "ollama",
			Model:    "llama3.1:8b",
			BaseURL:  "http://localhost:11434",
		},
		ExtractConcurrency: 4,
		Viewer: ViewerConfig{
			DwellSeconds: 15,
			FadeMillis:   400,
		},
		Serve: ServeConfig{
			Addr: ":8520",
		},
	}
}

// LoadConfig reads a YAML or JSON config file, layers it over the
// defaults, and applies CITELENS_* environment overrides. An empty path
// returns defaults plus environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			if err := json.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides config fields from CITELENS_* environment variables.
func (c *Config) applyEnv() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&c.DBPath, "CITELENS_DB_PATH")
	setStr(&c.Chat.Provider, "CITELENS_CHAT_PROVIDER")
	setStr(&c.Chat.Model, "CITELENS_CHAT_MODEL")
	setStr(&c.Chat.BaseURL, "CITELENS_CHAT_BASE_URL")
	setStr(&c.Chat.APIKey, "CITELENS_CHAT_API_KEY")
	setStr(&c.Serve.Addr, "CITELENS_ADDR")
	setStr(&c.Serve.APIKey, "CITELENS_API_KEY")

	if v := os.Getenv("CITELENS_REDUCTO_API_KEY"); v != "" {
		if c.Reducto == nil {
			c.Reducto = &ReductoConfig{}
		}
		c.Reducto.APIKey = v
	}
	if v := os.Getenv("CITELENS_EXTRACT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.ExtractConcurrency = n
		}
	}
}

// viewerConfig converts the duration fields for the viewer package.
func (c *Config) viewerConfig() viewer.Config {
	vc := viewer.Config{}
	if c.Viewer.DwellSeconds > 0 {
		vc.Dwell = time.Duration(c.Viewer.DwellSeconds) * time.Second
	}
	if c.Viewer.FadeMillis > 0 {
		vc.Fade = time.Duration(c.Viewer.FadeMillis) * time.Millisecond
	}
	return vc
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "citelens"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".citelens", name+".db")
	}
}
