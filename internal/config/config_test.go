package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Anthropic.Model == "" {
		t.Error("expected a default model")
	}
	if cfg.Planner.MaxSubtasks != 10 {
		t.Errorf("expected max_subtasks 10, got %d", cfg.Planner.MaxSubtasks)
	}
	if cfg.Scheduler.Mode != "dag" {
		t.Errorf("expected default mode 'dag', got %q", cfg.Scheduler.Mode)
	}
	if cfg.Scheduler.MaxParallel != 5 {
		t.Errorf("expected max_parallel 5, got %d", cfg.Scheduler.MaxParallel)
	}
	if cfg.Scheduler.MaxRetries != 3 {
		t.Errorf("expected max_retries 3, got %d", cfg.Scheduler.MaxRetries)
	}
	if cfg.Scheduler.TaskTimeout != 2*time.Minute {
		t.Errorf("expected task_timeout 2m, got %v", cfg.Scheduler.TaskTimeout)
	}
	if cfg.Aggregator.Strategy != "synthesize" {
		t.Errorf("expected strategy 'synthesize', got %q", cfg.Aggregator.Strategy)
	}
	if cfg.Aggregator.SimilarityThreshold != 0.85 {
		t.Errorf("expected similarity_threshold 0.85, got %v", cfg.Aggregator.SimilarityThreshold)
	}
	if cfg.Aggregator.TopN != 10 {
		t.Errorf("expected top_n 10, got %d", cfg.Aggregator.TopN)
	}
	if cfg.Store.Capacity != 100 {
		t.Errorf("expected store capacity 100, got %d", cfg.Store.Capacity)
	}
	if cfg.Store.TTL != time.Hour {
		t.Errorf("expected store ttl 1h, got %v", cfg.Store.TTL)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
anthropic:
  api_key: sk-ant-file-key
  model: claude-haiku-4-5
planner:
  max_subtasks: 6
scheduler:
  mode: sequential
  max_parallel: 2
  task_timeout: 45s
aggregator:
  strategy: rank
  top_n: 3
store:
  ttl: 30m
`
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Anthropic.APIKey != "sk-ant-file-key" {
		t.Errorf("api_key = %q", cfg.Anthropic.APIKey)
	}
	if cfg.Anthropic.Model != "claude-haiku-4-5" {
		t.Errorf("model = %q", cfg.Anthropic.Model)
	}
	if cfg.Planner.MaxSubtasks != 6 {
		t.Errorf("max_subtasks = %d, want 6", cfg.Planner.MaxSubtasks)
	}
	if cfg.Scheduler.Mode != "sequential" {
		t.Errorf("mode = %q, want sequential", cfg.Scheduler.Mode)
	}
	if cfg.Scheduler.TaskTimeout != 45*time.Second {
		t.Errorf("task_timeout = %v, want 45s", cfg.Scheduler.TaskTimeout)
	}
	if cfg.Aggregator.Strategy != "rank" {
		t.Errorf("strategy = %q, want rank", cfg.Aggregator.Strategy)
	}
	if cfg.Aggregator.TopN != 3 {
		t.Errorf("top_n = %d, want 3", cfg.Aggregator.TopN)
	}
	if cfg.Store.TTL != 30*time.Minute {
		t.Errorf("store ttl = %v, want 30m", cfg.Store.TTL)
	}

	// Unset keys fall back to defaults.
	if cfg.Scheduler.MaxRetries != 3 {
		t.Errorf("max_retries = %d, want default 3", cfg.Scheduler.MaxRetries)
	}
	if cfg.Aggregator.SimilarityThreshold != 0.85 {
		t.Errorf("similarity_threshold = %v, want default 0.85", cfg.Aggregator.SimilarityThreshold)
	}
}

func TestLoadFromPath_ExpandsEnvReferences(t *testing.T) {
	t.Setenv("CASCADE_TEST_KEY", "sk-ant-from-env")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := "anthropic:\n  api_key: ${CASCADE_TEST_KEY}\n"
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-from-env" {
		t.Errorf("api_key = %q, want expanded env value", cfg.Anthropic.APIKey)
	}
}

func TestLoadFromPath_MissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestWatch_InvokesCallbackOnChange(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("planner:\n  max_subtasks: 4\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	changed := make(chan *Config, 1)
	if err := Watch(configPath, func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	}); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(configPath, []byte("planner:\n  max_subtasks: 7\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changed:
		if cfg.Planner.MaxSubtasks != 7 {
			t.Errorf("reloaded max_subtasks = %d, want 7", cfg.Planner.MaxSubtasks)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("config change callback not invoked")
	}
}
