// Package config loads nodegraph settings from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the nodegraph configuration
type Config struct {
	// Backend is the backend configuration string, e.g.
	// "sqlite:///var/lib/nodegraph/graph.db" or "neo4j://localhost:7687".
	Backend string `yaml:"backend"`
	// BlobDir is the root of the content blob store.
	BlobDir string `yaml:"blob_dir"`
	// BlobCompression stores new blobs zstd-compressed.
	BlobCompression bool `yaml:"blob_compression"`
	// Listen is the HTTP API address.
	Listen string `yaml:"listen"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// LogFormat is text or json.
	LogFormat string `yaml:"log_format"`
	// Tracing configures span export.
	Tracing Tracing `yaml:"tracing"`
}

// Tracing configures the OpenTelemetry tracer provider
type Tracing struct {
	// Exporter is none or stdout. stdout writes spans as JSON to stderr.
	Exporter string `yaml:"exporter"`
	// ServiceName is reported as service.name.
	ServiceName string `yaml:"service_name"`
	// SampleRate is the fraction of scopes traced, from 0 to 1.
	SampleRate float64 `yaml:"sample_rate"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Backend:   "sqlite://nodegraph.db",
		BlobDir:   "blobs",
		Listen:    ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		Tracing: Tracing{
			Exporter:    "none",
			ServiceName: "nodegraph",
			SampleRate:  1,
		},
	}
}

// DefaultPath returns the path of the per-user config file
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "nodegraph.yaml"
	}
	return filepath.Join(homeDir, ".config", "nodegraph", "config.yaml")
}

// Load reads the file at path over the defaults and applies environment
// overrides. A missing file is not an error unless path was given
// explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyEnv() {
	c.Backend = getEnv("NODEGRAPH_BACKEND", c.Backend)
	c.BlobDir = getEnv("NODEGRAPH_BLOB_DIR", c.BlobDir)
	c.BlobCompression = getEnvBool("NODEGRAPH_BLOB_COMPRESSION", c.BlobCompression)
	c.Listen = getEnv("NODEGRAPH_LISTEN", c.Listen)
	c.LogLevel = getEnv("NODEGRAPH_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("NODEGRAPH_LOG_FORMAT", c.LogFormat)
	c.Tracing.Exporter = getEnv("NODEGRAPH_TRACING_EXPORTER", c.Tracing.Exporter)
	c.Tracing.ServiceName = getEnv("NODEGRAPH_TRACING_SERVICE_NAME", c.Tracing.ServiceName)
	c.Tracing.SampleRate = getEnvFloat("NODEGRAPH_TRACING_SAMPLE_RATE", c.Tracing.SampleRate)
}

// Validate checks the fields that have a closed set of values
func (c *Config) Validate() error {
	if c.Backend == "" {
		return errors.New("config: backend is required")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log_format %q", c.LogFormat)
	}
	switch strings.ToLower(c.Tracing.Exporter) {
	case "none", "stdout":
	default:
		return fmt.Errorf("config: unknown tracing exporter %q", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("config: tracing sample_rate %v out of range [0, 1]", c.Tracing.SampleRate)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
