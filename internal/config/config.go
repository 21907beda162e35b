package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the workflow runner configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Engine    EngineConfig    `yaml:"engine"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds status API settings. Port 0 disables the server.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	APIKeys         []string `yaml:"api_keys"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, memory (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// EngineConfig selects the engine variant and its tuning.
type EngineConfig struct {
	Type               string   `yaml:"type"` // stable, small_batch, multi_pass, dense_output, in_memory
	PullChunkSize      int      `yaml:"pull_chunk_size"`
	TransformChunkSize int      `yaml:"transform_chunk_size"`
	TransformThreshold int      `yaml:"transform_threshold"`
	DocumentLimit      int      `yaml:"document_limit"`
	Limit              int      `yaml:"limit"` // 0 = no limit
	Refresh            bool     `yaml:"refresh"`
	SelectFields       []string `yaml:"select_fields"`
	IncludeVector      *bool    `yaml:"include_vector"` // default: variant decides (in_memory pulls vectors)
	CheckMissingFields *bool    `yaml:"check_missing_fields"` // default: true
	MaxRetries         int      `yaml:"max_retries"`
	RetryDelaySec      float64  `yaml:"retry_delay_sec"`
	IngestInBackground bool     `yaml:"ingest_in_background"`
	OutputToStatus     bool     `yaml:"output_to_status"`
}

// WorkflowConfig holds per-run settings.
type WorkflowConfig struct {
	Name               string        `yaml:"name"`
	Dataset            string        `yaml:"dataset"`
	JobID              string        `yaml:"job_id"`
	WorkerNumber       int           `yaml:"worker_number"`
	TotalWorkers       int           `yaml:"total_workers"`
	SuppressUserErrors bool          `yaml:"suppress_user_errors"`
	Polling            PollingConfig `yaml:"polling"`
}

// PollingConfig controls the post-run field coverage wait. Disabled unless Enabled.
type PollingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	MinCoverage float64 `yaml:"min_coverage"`
	IntervalSec int     `yaml:"interval_sec"`
	TimeoutSec  int     `yaml:"timeout_sec"`
}

// EmbeddingConfig holds the vectorizing operator settings.
type EmbeddingConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	SourceField string `yaml:"source_field"`
	Instruction string `yaml:"instruction"`
	ChunkSize   int    `yaml:"chunk_size"`
	Cache       bool   `yaml:"cache"` // cache vectors in the database; ignored by the memory driver
	CacheTTLSec int    `yaml:"cache_ttl_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "workflows:"
	}
	if c.Engine.Type == "" {
		c.Engine.Type = "stable"
	}
	if c.Engine.PullChunkSize <= 0 {
		c.Engine.PullChunkSize = 3000
	}
	if c.Engine.TransformChunkSize <= 0 {
		c.Engine.TransformChunkSize = 20
	}
	if c.Engine.TransformThreshold <= 0 {
		c.Engine.TransformThreshold = 1000
	}
	if c.Engine.DocumentLimit <= 0 {
		c.Engine.DocumentLimit = 10000
	}
	if c.Engine.CheckMissingFields == nil {
		check := true
		c.Engine.CheckMissingFields = &check
	}
	if c.Engine.MaxRetries <= 0 {
		c.Engine.MaxRetries = 3
	}
	if c.Engine.RetryDelaySec <= 0 {
		c.Engine.RetryDelaySec = 2
	}
	if c.Workflow.Name == "" {
		c.Workflow.Name = "workflow"
	}
	if c.Workflow.TotalWorkers <= 0 {
		c.Workflow.TotalWorkers = 1
	}
	if c.Workflow.Polling.MinCoverage <= 0 {
		c.Workflow.Polling.MinCoverage = 0.95
	}
	if c.Workflow.Polling.IntervalSec <= 0 {
		c.Workflow.Polling.IntervalSec = 10
	}
	if c.Workflow.Polling.TimeoutSec <= 0 {
		c.Workflow.Polling.TimeoutSec = 600
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.SourceField == "" {
		c.Embedding.SourceField = "text"
	}
	if c.Embedding.ChunkSize <= 0 {
		c.Embedding.ChunkSize = 20
	}
}

var engineTypes = map[string]struct{}{
	"stable":       {},
	"small_batch":  {},
	"multi_pass":   {},
	"dense_output": {},
	"in_memory":    {},
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 0 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be \"valkey\", \"redis\" or \"memory\", got %q", c.Database.Driver)
	}
	if _, ok := engineTypes[c.Engine.Type]; !ok {
		return fmt.Errorf("engine.type %q is not supported", c.Engine.Type)
	}
	if c.Engine.Limit < 0 {
		return fmt.Errorf("engine.limit must not be negative, got %d", c.Engine.Limit)
	}
	if c.Workflow.Dataset == "" {
		return fmt.Errorf("workflow.dataset is required")
	}
	w := c.Workflow
	if w.WorkerNumber < 0 || w.WorkerNumber >= w.TotalWorkers {
		return fmt.Errorf("workflow.worker_number must be in [0, %d), got %d", w.TotalWorkers, w.WorkerNumber)
	}
	if p := w.Polling.MinCoverage; p > 1 {
		return fmt.Errorf("workflow.polling.min_coverage must be in (0, 1], got %g", p)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
