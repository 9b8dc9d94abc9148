package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// WorkspaceDir is the per-workspace state directory.
const WorkspaceDir = ".payloadforge"

// DefaultMainSpec is the logical name of the main specification document.
const DefaultMainSpec = "profile-specific-payload-keys"

// Config holds the payloadforge application configuration.
type Config struct {
	// Where documents come from
	Source SourceConfig `yaml:"source"`

	// Persisted tier location and backend
	Cache CacheConfig `yaml:"cache"`

	// Orchestration
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// SourceConfig locates the live documentation source and the JSONPath
// expressions used to pick apart its documents.
type SourceConfig struct {
	BaseURL        string `yaml:"base_url"`
	MainSpec       string `yaml:"main_spec"`       // logical name of the main specification
	TopicsPath     string `yaml:"topics_path"`     // JSONPath to the topic array
	PlatformsPath  string `yaml:"platforms_path"`  // JSONPath to platform names
	ParametersPath string `yaml:"parameters_path"` // JSONPath to a section's parameters
}

// CacheConfig configures the persisted tier.
type CacheConfig struct {
	Dir        string `yaml:"dir"`
	Backend    string `yaml:"backend"` // dir, sqlite
	SQLitePath string `yaml:"sqlite_path"`
}

// PipelineConfig configures section fan-out.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL:        "https://developer.apple.com/tutorials/data/documentation/devicemanagement",
			MainSpec:       DefaultMainSpec,
			TopicsPath:     "$.topicSections",
			PlatformsPath:  "$.metadata.platforms[*].name",
			ParametersPath: "$.parameters",
		},
		Cache: CacheConfig{
			Dir:        filepath.Join(WorkspaceDir, "cache"),
			Backend:    "dir",
			SQLitePath: filepath.Join(WorkspaceDir, "cache.db"),
		},
		Pipeline: PipelineConfig{
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults if config file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("PAYLOADFORGE_SOURCE_URL"); url != "" {
		c.Source.BaseURL = url
	}
	if dir := os.Getenv("PAYLOADFORGE_CACHE_DIR"); dir != "" {
		c.Cache.Dir = dir
	}
	if backend := os.Getenv("PAYLOADFORGE_STORE_BACKEND"); backend != "" {
		c.Cache.Backend = strings.ToLower(backend)
	}
}

// ValidBackends lists the supported persisted-tier backends.
var ValidBackends = []string{"dir", "sqlite"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validBackend := false
	for _, b := range ValidBackends {
		if c.Cache.Backend == b {
			validBackend = true
			break
		}
	}
	if !validBackend {
		return fmt.Errorf("invalid cache backend: %s (valid: %v)", c.Cache.Backend, ValidBackends)
	}
	if c.Source.MainSpec == "" {
		return fmt.Errorf("source.main_spec must not be empty")
	}
	if c.Pipeline.Concurrency <= 0 {
		c.Pipeline.Concurrency = 4
	}
	return nil
}

// ResolvePaths makes relative cache locations relative to workspace.
func (c *Config) ResolvePaths(workspace string) {
	if !filepath.IsAbs(c.Cache.Dir) {
		c.Cache.Dir = filepath.Join(workspace, c.Cache.Dir)
	}
	if !filepath.IsAbs(c.Cache.SQLitePath) {
		c.Cache.SQLitePath = filepath.Join(workspace, c.Cache.SQLitePath)
	}
}

// StoreLocation returns the directory or database path for the configured backend.
func (c *Config) StoreLocation() string {
	if c.Cache.Backend == "sqlite" {
		return c.Cache.SQLitePath
	}
	return c.Cache.Dir
}

// DefaultConfigPath returns <workspace>/.payloadforge/config.yaml.
func DefaultConfigPath(workspace string) string {
	return filepath.Join(workspace, WorkspaceDir, "config.yaml")
}

// DefaultSettingsPath returns <workspace>/.payloadforge/settings.json.
func DefaultSettingsPath(workspace string) string {
	return filepath.Join(workspace, WorkspaceDir, "settings.json")
}

// FindWorkspaceRoot attempts to find the project root by looking for
// .payloadforge or go.mod. If not found, returns the current working directory.
func FindWorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	originalDir := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, WorkspaceDir)); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return originalDir, nil
}
