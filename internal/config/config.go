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

// Config holds the memfed API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Recall     RecallConfig     `yaml:"recall"`
	Features   FeaturesConfig   `yaml:"features"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Provenance ProvenanceConfig `yaml:"provenance"`
	Stores     []StoreConfig    `yaml:"stores"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings. The database is
// optional: with driver "none" only in-memory stores are available.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, none (default: none)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RecallConfig tunes the recall pipeline.
type RecallConfig struct {
	MaxStores           int           `yaml:"max_stores"`
	MaxLatencyMS        int           `yaml:"max_latency_ms"`
	MaxResultsPerStore  int           `yaml:"max_results_per_store"`
	MaxTotalResults     int           `yaml:"max_total_results"`
	TimeoutBufferMS     int           `yaml:"timeout_buffer_ms"`
	Lambda              float64       `yaml:"lambda"`
	AdaptiveMMR         bool          `yaml:"adaptive_mmr"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	DedupThreshold      float64       `yaml:"dedup_threshold"`
	ConfidenceFloor     float64       `yaml:"confidence_floor"`
	TemporalDecayHours  float64       `yaml:"temporal_decay_hours"`
	EntityBoostMax      float64       `yaml:"entity_boost_max"`
	BreakerErrorRate    float64       `yaml:"breaker_error_rate"`
	BreakerMinSamples   int           `yaml:"breaker_min_samples"`
	BreakerCooldownSec  int           `yaml:"breaker_cooldown_sec"`
	Weights             WeightsConfig `yaml:"weights"`
}

// WeightsConfig holds the per-dimension similarity weights. Zero values
// fall back to the built-in defaults.
type WeightsConfig struct {
	Semantic   float64 `yaml:"semantic"`
	Temporal   float64 `yaml:"temporal"`
	Contextual float64 `yaml:"contextual"`
	Structural float64 `yaml:"structural"`
}

// FeaturesConfig holds feature extraction settings.
type FeaturesConfig struct {
	Provider   string `yaml:"provider"` // hash, openai (default: hash)
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
}

// ProvenanceConfig holds provenance sink settings.
type ProvenanceConfig struct {
	RingSize    int  `yaml:"ring_size"`
	OTelEnabled bool `yaml:"otel_enabled"`
}

// StoreConfig declares one registered memory store.
type StoreConfig struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`   // vector, graph, fulltext, episodic
	Driver string `yaml:"driver"` // memory, redistext (default: memory)
	Index  string `yaml:"index"`  // redistext: FT.SEARCH index name
	Prefix string `yaml:"prefix"` // redistext: document key prefix
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
		c.Database.Driver = "none"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Recall.MaxStores <= 0 {
		c.Recall.MaxStores = 4
	}
	if c.Recall.MaxLatencyMS <= 0 {
		c.Recall.MaxLatencyMS = 500
	}
	if c.Recall.MaxResultsPerStore <= 0 {
		c.Recall.MaxResultsPerStore = 20
	}
	if c.Recall.MaxTotalResults <= 0 {
		c.Recall.MaxTotalResults = 50
	}
	if c.Recall.TimeoutBufferMS <= 0 {
		c.Recall.TimeoutBufferMS = 50
	}
	if c.Features.Provider == "" {
		c.Features.Provider = "hash"
	}
	if c.Features.CacheSize <= 0 {
		c.Features.CacheSize = 4096
	}
	if c.Provenance.RingSize <= 0 {
		c.Provenance.RingSize = 256
	}
	for i := range c.Stores {
		if c.Stores[i].Driver == "" {
			c.Stores[i].Driver = "memory"
		}
	}
}

var validStoreKinds = map[string]bool{
	"vector":   true,
	"graph":    true,
	"fulltext": true,
	"episodic": true,
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "none":
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be \"redis\" or \"none\", got %q", c.Database.Driver)
	}
	switch c.Features.Provider {
	case "hash":
	case "openai":
		if c.Features.Model == "" {
			return fmt.Errorf("features.model is required for provider \"openai\"")
		}
	default:
		return fmt.Errorf("features.provider must be \"hash\" or \"openai\", got %q", c.Features.Provider)
	}
	if c.Recall.Lambda < 0 || c.Recall.Lambda > 1 {
		return fmt.Errorf("recall.lambda must be in [0, 1], got %g", c.Recall.Lambda)
	}
	seen := make(map[string]bool, len(c.Stores))
	for i, sc := range c.Stores {
		if sc.Name == "" {
			return fmt.Errorf("stores[%d].name is required", i)
		}
		if seen[sc.Name] {
			return fmt.Errorf("stores[%d].name %q is duplicated", i, sc.Name)
		}
		seen[sc.Name] = true
		if !validStoreKinds[sc.Kind] {
			return fmt.Errorf("stores[%d].kind must be vector, graph, fulltext or episodic, got %q", i, sc.Kind)
		}
		switch sc.Driver {
		case "memory":
		case "redistext":
			if c.Database.Driver == "none" {
				return fmt.Errorf("stores[%d]: driver \"redistext\" requires a database", i)
			}
			if sc.Index == "" {
				return fmt.Errorf("stores[%d].index is required for driver \"redistext\"", i)
			}
		default:
			return fmt.Errorf("stores[%d].driver must be \"memory\" or \"redistext\", got %q", i, sc.Driver)
		}
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
