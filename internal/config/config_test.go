package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Workflow: WorkflowConfig{Dataset: "articles"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port out of range", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"missing addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "postgres" }, "database.driver"},
		{"unknown engine", func(c *Config) { c.Engine.Type = "turbo" }, "engine.type"},
		{"negative limit", func(c *Config) { c.Engine.Limit = -1 }, "engine.limit"},
		{"missing dataset", func(c *Config) { c.Workflow.Dataset = "" }, "workflow.dataset"},
		{"worker out of range", func(c *Config) {
			c.Workflow.WorkerNumber = 2
			c.Workflow.TotalWorkers = 2
		}, "workflow.worker_number"},
		{"coverage above one", func(c *Config) { c.Workflow.Polling.MinCoverage = 1.5 }, "min_coverage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_MemoryDriverNeedsNoAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "memory"
	cfg.Database.Addrs = nil
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.Driver != "valkey" {
		t.Errorf("expected Driver=valkey, got %q", cfg.Database.Driver)
	}
	if cfg.Database.KeyPrefix != "workflows:" {
		t.Errorf("expected KeyPrefix='workflows:', got %q", cfg.Database.KeyPrefix)
	}
	if cfg.Engine.Type != "stable" {
		t.Errorf("expected Type=stable, got %q", cfg.Engine.Type)
	}
	if cfg.Engine.PullChunkSize != 3000 {
		t.Errorf("expected PullChunkSize=3000, got %d", cfg.Engine.PullChunkSize)
	}
	if cfg.Engine.TransformChunkSize != 20 {
		t.Errorf("expected TransformChunkSize=20, got %d", cfg.Engine.TransformChunkSize)
	}
	if cfg.Engine.CheckMissingFields == nil || !*cfg.Engine.CheckMissingFields {
		t.Error("expected CheckMissingFields=true")
	}
	if cfg.Engine.MaxRetries != 3 {
		t.Errorf("expected MaxRetries=3, got %d", cfg.Engine.MaxRetries)
	}
	if cfg.Workflow.TotalWorkers != 1 {
		t.Errorf("expected TotalWorkers=1, got %d", cfg.Workflow.TotalWorkers)
	}
	if cfg.Workflow.Polling.MinCoverage != 0.95 {
		t.Errorf("expected MinCoverage=0.95, got %g", cfg.Workflow.Polling.MinCoverage)
	}
	if cfg.Embedding.SourceField != "text" {
		t.Errorf("expected SourceField=text, got %q", cfg.Embedding.SourceField)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{KeyPrefix: "custom:"},
		Engine:   EngineConfig{Type: "multi_pass", PullChunkSize: 100},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Database.KeyPrefix)
	}
	if cfg.Engine.Type != "multi_pass" {
		t.Errorf("expected Type=multi_pass, got %q", cfg.Engine.Type)
	}
	if cfg.Engine.PullChunkSize != 100 {
		t.Errorf("expected PullChunkSize=100, got %d", cfg.Engine.PullChunkSize)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("WF_TEST_DATASET", "events")

	got := string(expandEnvVars([]byte("a: ${WF_TEST_DATASET}\nb: ${WF_TEST_UNSET:-fallback}\nc: ${WF_TEST_UNSET}")))
	want := "a: events\nb: fallback\nc: "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoad_FromConfigDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o750); err != nil {
		t.Fatal(err)
	}
	yml := `
database:
  driver: memory
engine:
  type: small_batch
workflow:
  dataset: ${WF_TEST_DS:-reviews}
  name: sentiment
`
	if err := os.WriteFile(filepath.Join(dir, "config", "unittest.yaml"), []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg, err := Load("unittest")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workflow.Dataset != "reviews" {
		t.Errorf("expected dataset reviews, got %q", cfg.Workflow.Dataset)
	}
	if cfg.Engine.Type != "small_batch" {
		t.Errorf("expected engine small_batch, got %q", cfg.Engine.Type)
	}
	if cfg.Engine.TransformThreshold != 1000 {
		t.Errorf("defaults not applied: threshold %d", cfg.Engine.TransformThreshold)
	}
}

func TestLoad_Missing(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load("does-not-exist"); err == nil {
		t.Fatal("expected error for missing config")
	}
}
