// Package config handles configuration loading and management for Cascade.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for Cascade.
type Config struct {
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Planner    PlannerConfig    `mapstructure:"planner"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	Store      StoreConfig      `mapstructure:"store"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	// Model is the model used for planning and synthesis.
	Model string `mapstructure:"model"`
	// UseBedrock routes API calls through AWS Bedrock.
	UseBedrock bool `mapstructure:"use_bedrock"`
}

// PlannerConfig holds request-decomposition settings.
type PlannerConfig struct {
	// MaxSubtasks caps the number of subtasks in a generated plan.
	MaxSubtasks int `mapstructure:"max_subtasks"`
}

// SchedulerConfig holds task-graph execution settings.
type SchedulerConfig struct {
	// Mode is the default execution mode (sequential, parallel, dag).
	Mode string `mapstructure:"mode"`
	// MaxParallel bounds the number of concurrently running tasks.
	MaxParallel int `mapstructure:"max_parallel"`
	// MaxRetries is the per-task retry budget.
	MaxRetries int `mapstructure:"max_retries"`
	// TaskTimeout is the per-attempt timeout. Zero disables it.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

// AggregatorConfig holds result-merging settings.
type AggregatorConfig struct {
	// Strategy is the default aggregation strategy.
	Strategy string `mapstructure:"strategy"`
	// SimilarityThreshold is the near-duplicate cutoff in (0,1].
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	// TopN bounds how many results the rank strategy keeps.
	TopN int `mapstructure:"top_n"`
}

// StoreConfig holds workflow-history retention settings.
type StoreConfig struct {
	// Capacity bounds how many finished workflows are retained.
	Capacity int `mapstructure:"capacity"`
	// TTL is how long a finished workflow stays retrievable.
	TTL time.Duration `mapstructure:"ttl"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.cascade.yaml in current directory or parent)
// 3. User config (~/.config/cascade/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Load user config from XDG path
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.use_bedrock", "CASCADE_USE_BEDROCK")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Watch reloads the config file at path whenever it changes on disk and
// passes the result to onChange. Reload failures keep the previous config.
func Watch(path string, onChange func(*Config)) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config from %s: %w", path, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg := &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Printf("[config] ignoring unreadable change to %s: %v", e.Name, err)
			return
		}
		cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("planner.max_subtasks", cfg.Planner.MaxSubtasks)
	v.Set("scheduler.mode", cfg.Scheduler.Mode)
	v.Set("scheduler.max_parallel", cfg.Scheduler.MaxParallel)
	v.Set("scheduler.max_retries", cfg.Scheduler.MaxRetries)
	v.Set("scheduler.task_timeout", cfg.Scheduler.TaskTimeout.String())
	v.Set("aggregator.strategy", cfg.Aggregator.Strategy)
	v.Set("aggregator.similarity_threshold", cfg.Aggregator.SimilarityThreshold)
	v.Set("aggregator.top_n", cfg.Aggregator.TopN)
	v.Set("store.capacity", cfg.Store.Capacity)
	v.Set("store.ttl", cfg.Store.TTL.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("planner.max_subtasks", 10)

	v.SetDefault("scheduler.mode", "dag")
	v.SetDefault("scheduler.max_parallel", 5)
	v.SetDefault("scheduler.max_retries", 3)
	v.SetDefault("scheduler.task_timeout", "2m")

	v.SetDefault("aggregator.strategy", "synthesize")
	v.SetDefault("aggregator.similarity_threshold", 0.85)
	v.SetDefault("aggregator.top_n", 10)

	v.SetDefault("store.capacity", 100)
	v.SetDefault("store.ttl", "1h")
}

// getUserConfigDir returns the XDG config directory for Cascade.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "cascade")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "cascade")
	}
	return filepath.Join(home, ".config", "cascade")
}

// findProjectConfig searches for .cascade.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".cascade.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-5",
		},
		Planner: PlannerConfig{
			MaxSubtasks: 10,
		},
		Scheduler: SchedulerConfig{
			Mode:        "dag",
			MaxParallel: 5,
			MaxRetries:  3,
			TaskTimeout: 2 * time.Minute,
		},
		Aggregator: AggregatorConfig{
			Strategy:            "synthesize",
			SimilarityThreshold: 0.85,
			TopN:                10,
		},
		Store: StoreConfig{
			Capacity: 100,
			TTL:      time.Hour,
		},
	}
}
