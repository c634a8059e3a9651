// Package config provides configuration management for the router
// supervisor.
//
// Configuration can be loaded from multiple sources (in order of precedence):
// 1. Environment variables (highest priority)
// 2. Configuration file (JSON)
// 3. Default values (lowest priority)
//
// Feature flags allow enabling/disabling specific router stages at runtime.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config represents the complete router configuration.
type Config struct {
	Server      ServerConfig      `json:"server"`
	Storage     StorageConfig     `json:"storage"`
	Thresholds  ThresholdsConfig  `json:"thresholds"`
	Weights     WeightsConfig     `json:"weights"`
	Features    FeatureFlags      `json:"features"`
	Performance PerformanceConfig `json:"performance"`
	Logging     LoggingConfig     `json:"logging"`
}

// ServerConfig contains server-level configuration.
type ServerConfig struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// StorageConfig locates the vector store and the catalog root.
type StorageConfig struct {
	// VectorStorePath persists the vector store; empty means in-memory only.
	VectorStorePath string `json:"vector_store_path"`

	// CatalogRoot is the directory workflow/tool files are discovered under.
	CatalogRoot string `json:"catalog_root"`

	// CatalogCachePath is the sqlite file backing the load-hash cache.
	CatalogCachePath string `json:"catalog_cache_path"`
}

// ThresholdsConfig holds every similarity/confidence cutoff named in
// spec.md §6.
type ThresholdsConfig struct {
	RelevanceThreshold           float64 `json:"relevance_threshold"`
	MemoryThreshold              float64 `json:"memory_threshold"`
	ModifierWordThreshold        float64 `json:"modifier_word_threshold"`
	AdaptationSemanticThreshold  float64 `json:"adaptation_semantic_threshold"`
	ConfidenceHigh               float64 `json:"confidence_high"`
	ConfidenceMedium             float64 `json:"confidence_medium"`
}

// WeightsConfig holds the per-matcher ensemble weights.
type WeightsConfig struct {
	Keyword  float64 `json:"keyword"`
	Semantic float64 `json:"semantic"`
	Pattern  float64 `json:"pattern"`
}

// FeatureFlags controls which router stages are enabled.
type FeatureFlags struct {
	EnableFirewall           bool `json:"enable_firewall"`
	EnableOverrides          bool `json:"enable_overrides"`
	EnableWorkflowAdaptation bool `json:"enable_workflow_adaptation"`
}

// PerformanceConfig contains tuning options.
type PerformanceConfig struct {
	CacheTTLSeconds    int `json:"cache_ttl_seconds"`
	MaxWorkflowSteps   int `json:"max_workflow_steps"`
	ExecutorTimeoutMs  int `json:"executor_timeout_ms"`
	EmbeddingCacheMax  int `json:"embedding_cache_max"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level            string `json:"level"`
	Format           string `json:"format"`
	EnableTimestamps bool   `json:"enable_timestamps"`
}

// Default returns the default configuration, with the exact threshold and
// weight values spec.md §6 enumerates.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:        "routersupervisor",
			Version:     "1.0.0",
			Environment: "development",
		},
		Storage: StorageConfig{
			VectorStorePath:  "",
			CatalogRoot:      "./workflows",
			CatalogCachePath: "./catalog_cache.db",
		},
		Thresholds: ThresholdsConfig{
			RelevanceThreshold:          0.40,
			MemoryThreshold:             0.85,
			ModifierWordThreshold:       0.65,
			AdaptationSemanticThreshold: 0.60,
			ConfidenceHigh:              0.70,
			ConfidenceMedium:            0.50,
		},
		Weights: WeightsConfig{
			Keyword:  0.40,
			Semantic: 0.40,
			Pattern:  0.20,
		},
		Features: FeatureFlags{
			EnableFirewall:           true,
			EnableOverrides:          true,
			EnableWorkflowAdaptation: true,
		},
		Performance: PerformanceConfig{
			CacheTTLSeconds:   300,
			MaxWorkflowSteps:  500,
			ExecutorTimeoutMs: 5000,
			EmbeddingCacheMax: 10000,
		},
		Logging: LoggingConfig{
			Level:            "info",
			Format:           "text",
			EnableTimestamps: true,
		},
	}
}

// Load loads configuration from environment variables and applies defaults.
func Load() (*Config, error) {
	cfg := Default()
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file, with environment
// variables applied on top.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromEnv loads configuration from environment variables.
// Environment variables follow the pattern: RS_<SECTION>_<KEY>
// Example: RS_SERVER_NAME, RS_THRESHOLDS_MEMORY_THRESHOLD
func (c *Config) loadFromEnv() error {
	if v := os.Getenv("RS_SERVER_NAME"); v != "" {
		c.Server.Name = v
	}
	if v := os.Getenv("RS_SERVER_VERSION"); v != "" {
		c.Server.Version = v
	}
	if v := os.Getenv("RS_SERVER_ENVIRONMENT"); v != "" {
		c.Server.Environment = v
	}

	if v := os.Getenv("RS_STORAGE_VECTOR_STORE_PATH"); v != "" {
		c.Storage.VectorStorePath = v
	}
	if v := os.Getenv("RS_STORAGE_CATALOG_ROOT"); v != "" {
		c.Storage.CatalogRoot = v
	}
	if v := os.Getenv("RS_STORAGE_CATALOG_CACHE_PATH"); v != "" {
		c.Storage.CatalogCachePath = v
	}

	setFloat(&c.Thresholds.RelevanceThreshold, "RS_THRESHOLDS_RELEVANCE_THRESHOLD")
	setFloat(&c.Thresholds.MemoryThreshold, "RS_THRESHOLDS_MEMORY_THRESHOLD")
	setFloat(&c.Thresholds.ModifierWordThreshold, "RS_THRESHOLDS_MODIFIER_WORD_THRESHOLD")
	setFloat(&c.Thresholds.AdaptationSemanticThreshold, "RS_THRESHOLDS_ADAPTATION_SEMANTIC_THRESHOLD")
	setFloat(&c.Thresholds.ConfidenceHigh, "RS_THRESHOLDS_CONFIDENCE_HIGH")
	setFloat(&c.Thresholds.ConfidenceMedium, "RS_THRESHOLDS_CONFIDENCE_MEDIUM")

	setFloat(&c.Weights.Keyword, "RS_WEIGHTS_KEYWORD")
	setFloat(&c.Weights.Semantic, "RS_WEIGHTS_SEMANTIC")
	setFloat(&c.Weights.Pattern, "RS_WEIGHTS_PATTERN")

	if v := os.Getenv("RS_FEATURES_ENABLE_FIREWALL"); v != "" {
		c.Features.EnableFirewall = parseBool(v)
	}
	if v := os.Getenv("RS_FEATURES_ENABLE_OVERRIDES"); v != "" {
		c.Features.EnableOverrides = parseBool(v)
	}
	if v := os.Getenv("RS_FEATURES_ENABLE_WORKFLOW_ADAPTATION"); v != "" {
		c.Features.EnableWorkflowAdaptation = parseBool(v)
	}

	setInt(&c.Performance.CacheTTLSeconds, "RS_PERFORMANCE_CACHE_TTL_SECONDS")
	setInt(&c.Performance.MaxWorkflowSteps, "RS_PERFORMANCE_MAX_WORKFLOW_STEPS")
	setInt(&c.Performance.ExecutorTimeoutMs, "RS_PERFORMANCE_EXECUTOR_TIMEOUT_MS")
	setInt(&c.Performance.EmbeddingCacheMax, "RS_PERFORMANCE_EMBEDDING_CACHE_MAX")

	if v := os.Getenv("RS_LOGGING_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("RS_LOGGING_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv("RS_LOGGING_ENABLE_TIMESTAMPS"); v != "" {
		c.Logging.EnableTimestamps = parseBool(v)
	}

	return nil
}

func setFloat(dst *float64, env string) {
	if v := os.Getenv(env); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return fmt.Errorf("server.name cannot be empty")
	}
	if c.Server.Environment != "development" && c.Server.Environment != "staging" && c.Server.Environment != "production" {
		return fmt.Errorf("server.environment must be one of: development, staging, production")
	}

	for name, v := range map[string]float64{
		"thresholds.relevance_threshold":           c.Thresholds.RelevanceThreshold,
		"thresholds.memory_threshold":              c.Thresholds.MemoryThreshold,
		"thresholds.modifier_word_threshold":       c.Thresholds.ModifierWordThreshold,
		"thresholds.adaptation_semantic_threshold":  c.Thresholds.AdaptationSemanticThreshold,
		"thresholds.confidence_high":                c.Thresholds.ConfidenceHigh,
		"thresholds.confidence_medium":              c.Thresholds.ConfidenceMedium,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, v)
		}
	}
	if c.Thresholds.ConfidenceMedium > c.Thresholds.ConfidenceHigh {
		return fmt.Errorf("thresholds.confidence_medium must be <= thresholds.confidence_high")
	}

	if c.Weights.Keyword < 0 || c.Weights.Semantic < 0 || c.Weights.Pattern < 0 {
		return fmt.Errorf("weights cannot be negative")
	}

	if c.Performance.CacheTTLSeconds < 0 {
		return fmt.Errorf("performance.cache_ttl_seconds cannot be negative")
	}
	if c.Performance.MaxWorkflowSteps < 1 {
		return fmt.Errorf("performance.max_workflow_steps must be >= 1")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json'")
	}

	return nil
}

// IsFeatureEnabled checks if a specific router stage is enabled.
func (c *Config) IsFeatureEnabled(feature string) bool {
	switch strings.ToLower(feature) {
	case "firewall", "enable_firewall":
		return c.Features.EnableFirewall
	case "overrides", "enable_overrides":
		return c.Features.EnableOverrides
	case "adaptation", "enable_workflow_adaptation":
		return c.Features.EnableWorkflowAdaptation
	default:
		return false
	}
}

// parseBool parses a boolean from string (handles various formats).
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on" || s == "enabled"
}

// ToJSON serializes the configuration to JSON.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// SaveToFile saves the configuration to a JSON file.
func (c *Config) SaveToFile(path string) error {
	data, err := c.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
