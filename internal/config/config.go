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

// Config holds the assetdex API configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Inference   InferenceConfig   `yaml:"inference"`
	Search      SearchConfig      `yaml:"search"`
	Classify    ClassifyConfig    `yaml:"classify"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
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

// DatabaseConfig holds storage backend settings.
// Driver selects the backend explicitly; there is no ambient fallback.
type DatabaseConfig struct {
	Driver           string `yaml:"driver"` // postgres, sqlite (default: sqlite)
	DSN              string `yaml:"dsn"`    // postgres connection string
	Path             string `yaml:"path"`   // sqlite database file
	MaxConns         int    `yaml:"max_conns"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
}

// InferenceConfig holds settings for the OpenAI-compatible inference provider
// used by both the classifier and the semantic ranker.
type InferenceConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	ClassifierModel string `yaml:"classifier_model"`
	RankerModel     string `yaml:"ranker_model"`
	// ImageBaseURL is prefixed to asset storage keys so the vision model
	// can fetch the image.
	ImageBaseURL string `yaml:"image_base_url"`
	TimeoutSec   int    `yaml:"timeout_sec"`
}

// SearchConfig holds tier escalation and pagination settings.
type SearchConfig struct {
	// FulltextThreshold: escalate to the lexical tier when the structured
	// tier returns fewer matches than this.
	FulltextThreshold int `yaml:"fulltext_threshold"`
	// SemanticThreshold: escalate to the semantic tier when the result is
	// still below this after the lexical tier.
	SemanticThreshold int `yaml:"semantic_threshold"`
	// CandidateCap bounds how many described assets one bulk-scoring call sees.
	CandidateCap int `yaml:"candidate_cap"`
	// MinScore is the semantic relevance cutoff.
	MinScore        float64 `yaml:"min_score"`
	DefaultPageSize int     `yaml:"default_page_size"`
	MaxPageSize     int     `yaml:"max_page_size"`
	SuggestionLimit int     `yaml:"suggestion_limit"`
}

// ClassifyConfig holds classification pipeline settings.
type ClassifyConfig struct {
	Workers    int `yaml:"workers"`
	TimeoutSec int `yaml:"timeout_sec"`
}

// TelemetryConfig holds search audit queue settings.
type TelemetryConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

// PermissionsConfig holds accessible-site cache settings.
type PermissionsConfig struct {
	CacheSize   int `yaml:"cache_size"`
	CacheTTLSec int `yaml:"cache_ttl_sec"`
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
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "assetdex.db"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Inference.TimeoutSec <= 0 {
		c.Inference.TimeoutSec = 30
	}
	if c.Inference.ClassifierModel == "" {
		c.Inference.ClassifierModel = "gpt-4o-mini"
	}
	if c.Inference.RankerModel == "" {
		c.Inference.RankerModel = "gpt-4o-mini"
	}
	if c.Search.FulltextThreshold <= 0 {
		c.Search.FulltextThreshold = 10
	}
	if c.Search.SemanticThreshold <= 0 {
		c.Search.SemanticThreshold = 5
	}
	if c.Search.CandidateCap <= 0 {
		c.Search.CandidateCap = 1000
	}
	if c.Search.MinScore <= 0 {
		c.Search.MinScore = 0.3
	}
	if c.Search.DefaultPageSize <= 0 {
		c.Search.DefaultPageSize = 20
	}
	if c.Search.MaxPageSize <= 0 {
		c.Search.MaxPageSize = 100
	}
	if c.Search.SuggestionLimit <= 0 {
		c.Search.SuggestionLimit = 20
	}
	if c.Classify.Workers <= 0 {
		c.Classify.Workers = 4
	}
	if c.Classify.TimeoutSec <= 0 {
		c.Classify.TimeoutSec = 60
	}
	if c.Telemetry.BufferSize <= 0 {
		c.Telemetry.BufferSize = 1024
	}
	if c.Permissions.CacheSize <= 0 {
		c.Permissions.CacheSize = 4096
	}
	if c.Permissions.CacheTTLSec <= 0 {
		c.Permissions.CacheTTLSec = 30
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	case "sqlite":
		// path defaulted above
	default:
		return fmt.Errorf("database.driver must be \"postgres\" or \"sqlite\", got %q", c.Database.Driver)
	}
	if c.Search.MinScore > 1 {
		return fmt.Errorf("search.min_score must be at most 1, got %v", c.Search.MinScore)
	}
	if c.Search.SemanticThreshold > c.Search.FulltextThreshold {
		return fmt.Errorf(
			"search.semantic_threshold (%d) must not exceed search.fulltext_threshold (%d)",
			c.Search.SemanticThreshold, c.Search.FulltextThreshold,
		)
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
