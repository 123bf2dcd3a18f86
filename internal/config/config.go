package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "codesense.yaml"

type Config struct {
	DataDir string      `yaml:"data_dir"`
	Log     LogConfig   `yaml:"log"`
	Index   IndexConfig `yaml:"index"`
	Embed   EmbedConfig `yaml:"embedding"`
	LLM     LLMConfig   `yaml:"llm"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type IndexConfig struct {
	Workers          int  `yaml:"workers"`
	RespectGitignore bool `yaml:"respect_gitignore"`
}

type EmbedConfig struct {
	Provider  string `yaml:"provider"` // hashing, openai, ollama, gemini
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
}

type LLMConfig struct {
	Provider    string        `yaml:"provider"` // openai, gemini
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Default returns a Config that works offline for indexing and search.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Index: IndexConfig{
			Workers: 4,
		},
		Embed: EmbedConfig{
			Provider:  "hashing",
			Dimension: 384,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			Timeout:     90 * time.Second,
		},
	}
}

// Load reads the YAML config at path on top of Default(), then applies .env and
// CODESENSE_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.Merge(&fileCfg)
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge copies every non-zero field of other into c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	setString(&c.DataDir, other.DataDir)
	setString(&c.Log.Level, other.Log.Level)
	setString(&c.Log.Format, other.Log.Format)
	if other.Index.Workers != 0 {
		c.Index.Workers = other.Index.Workers
	}
	if other.Index.RespectGitignore {
		c.Index.RespectGitignore = true
	}

	setString(&c.Embed.Provider, other.Embed.Provider)
	setString(&c.Embed.Model, other.Embed.Model)
	setString(&c.Embed.BaseURL, other.Embed.BaseURL)
	setString(&c.Embed.APIKey, other.Embed.APIKey)
	if other.Embed.Dimension != 0 {
		c.Embed.Dimension = other.Embed.Dimension
	}

	setString(&c.LLM.Provider, other.LLM.Provider)
	setString(&c.LLM.Model, other.LLM.Model)
	setString(&c.LLM.BaseURL, other.LLM.BaseURL)
	setString(&c.LLM.APIKey, other.LLM.APIKey)
	if other.LLM.Temperature != 0 {
		c.LLM.Temperature = other.LLM.Temperature
	}
	if other.LLM.Timeout != 0 {
		c.LLM.Timeout = other.LLM.Timeout
	}
}

func (c *Config) applyEnv() {
	setString(&c.DataDir, os.Getenv("CODESENSE_DATA_DIR"))
	setString(&c.Log.Level, os.Getenv("CODESENSE_LOG_LEVEL"))
	setString(&c.Embed.Provider, os.Getenv("CODESENSE_EMBED_PROVIDER"))
	setString(&c.Embed.Model, os.Getenv("CODESENSE_EMBED_MODEL"))
	setString(&c.Embed.APIKey, os.Getenv("CODESENSE_EMBED_API_KEY"))
	setString(&c.LLM.Provider, os.Getenv("CODESENSE_LLM_PROVIDER"))
	setString(&c.LLM.Model, os.Getenv("CODESENSE_LLM_MODEL"))
	setString(&c.LLM.APIKey, os.Getenv("CODESENSE_LLM_API_KEY"))
	if v := os.Getenv("CODESENSE_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.Workers = n
		}
	}

	// OPENAI_API_KEY is honoured for openai providers without an explicit key.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.LLM.APIKey == "" && strings.EqualFold(c.LLM.Provider, "openai") {
			c.LLM.APIKey = key
		}
		if c.Embed.APIKey == "" && strings.EqualFold(c.Embed.Provider, "openai") {
			c.Embed.APIKey = key
		}
	}
}

// Validate reports configuration mistakes that would otherwise surface on first use.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Embed.Provider) {
	case "hashing", "openai", "ollama", "gemini":
	default:
		return fmt.Errorf("unsupported embedding provider: %q", c.Embed.Provider)
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unsupported llm provider: %q", c.LLM.Provider)
	}
	if c.Index.Workers <= 0 {
		return fmt.Errorf("index.workers must be positive, got %d", c.Index.Workers)
	}
	if c.Embed.Dimension < 0 {
		return fmt.Errorf("embedding.dimension must not be negative")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %q", c.Log.Format)
	}
	return nil
}

func (c *Config) GraphDir() string    { return filepath.Join(c.DataDir, "graph") }
func (c *Config) VectorDir() string   { return filepath.Join(c.DataDir, "vectors") }
func (c *Config) ProjectsDir() string { return filepath.Join(c.DataDir, "projects") }
func (c *Config) DBPath() string      { return filepath.Join(c.DataDir, "codesense.db") }

// SlogLevel maps Log.Level onto slog levels, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger described by Log.
func (c *Config) NewLogger(w *os.File) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
