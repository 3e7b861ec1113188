// Package config loads and validates slice-server configuration: the
// tunables recognized per spec §6 (slice.*, cache.*), plus a
// policy cap pair enforced by the orchestrator's clamping protocol.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// EnvOverride records an environment variable override that was applied.
type EnvOverride struct {
	EnvVar    string
	Path      string
	Value     interface{}
	FromValue string
}

// LoadResult carries the loaded config plus metadata about how it was loaded.
type LoadResult struct {
	Config       *Config
	ConfigPath   string
	EnvOverrides []EnvOverride
	UsedDefaults bool
}

// SliceConfig holds the slice.* options from spec §6.
type SliceConfig struct {
	DefaultMaxCards  int                `json:"defaultMaxCards" mapstructure:"defaultMaxCards"`
	DefaultMaxTokens int                `json:"defaultMaxTokens" mapstructure:"defaultMaxTokens"`
	EdgeWeights      map[string]float64 `json:"edgeWeights" mapstructure:"edgeWeights"`
	ScoreThreshold   float64            `json:"scoreThreshold" mapstructure:"scoreThreshold"`
	MaxFrontier      int                `json:"maxFrontier" mapstructure:"maxFrontier"`
}

// CacheConfig holds the cache.* options from spec §6.
type CacheConfig struct {
	Enabled    bool `json:"enabled" mapstructure:"enabled"`
	MaxEntries int  `json:"maxEntries" mapstructure:"maxEntries"`
	TTLMs      int  `json:"ttlMs" mapstructure:"ttlMs"`
}

// PolicyConfig holds the policy-clamping caps (§6, "Policy-clamping protocol").
type PolicyConfig struct {
	MaxCards         int `json:"maxCards" mapstructure:"maxCards"`
	MaxEstimatedTokens int `json:"maxEstimatedTokens" mapstructure:"maxEstimatedTokens"`
}

// LoggingConfig controls the ambient logger.
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// Config is the complete slice-server configuration.
type Config struct {
	Version int           `json:"version" mapstructure:"version"`
	Slice   SliceConfig   `json:"slice" mapstructure:"slice"`
	Cache   CacheConfig   `json:"cache" mapstructure:"cache"`
	Policy  PolicyConfig  `json:"policy" mapstructure:"policy"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// DefaultConfig returns the default configuration (spec §6 defaults).
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Slice: SliceConfig{
			DefaultMaxCards:  30,
			DefaultMaxTokens: 5000,
			EdgeWeights: map[string]float64{
				"call":   1.0,
				"import": 0.6,
				"config": 0.8,
			},
			ScoreThreshold: 0.05,
			MaxFrontier:    256,
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 512,
			TTLMs:      300000,
		},
		Policy: PolicyConfig{
			MaxCards:           200,
			MaxEstimatedTokens: 50000,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from repoRoot/.slice/config.json.
func LoadConfig(repoRoot string) (*Config, error) {
	result, err := LoadConfigWithDetails(repoRoot)
	if err != nil {
		return nil, err
	}
	return result.Config, nil
}

// LoadConfigWithDetails loads configuration and reports how it was loaded:
// which file (if any) was read, and which environment variables overrode it.
func LoadConfigWithDetails(repoRoot string) (*LoadResult, error) {
	result := &LoadResult{}

	if configPath := os.Getenv("SLICE_CONFIG_PATH"); configPath != "" {
		cfg, err := loadConfigFromPath(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from SLICE_CONFIG_PATH=%s: %w", configPath, err)
		}
		result.Config = cfg
		result.ConfigPath = configPath
	} else {
		v := viper.New()
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(filepath.Join(repoRoot, ".slice"))

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				result.Config = DefaultConfig()
				result.UsedDefaults = true
			} else {
				return nil, err
			}
		} else {
			cfg := DefaultConfig()
			if err := v.Unmarshal(cfg); err != nil {
				return nil, err
			}
			result.Config = cfg
			result.ConfigPath = v.ConfigFileUsed()
		}
	}

	if err := applyPolicyOverride(repoRoot, result.Config); err != nil {
		return nil, err
	}

	result.EnvOverrides = applyEnvOverrides(result.Config)

	return result, nil
}

func loadConfigFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid JSON in config file: %w", err)
	}

	return cfg, nil
}

// policyOverrideFile is a repo-level TOML file that may only tighten
// (never loosen) the policy caps, following the teacher's
// federation.Config TOML-loading idiom.
type policyOverrideFile struct {
	MaxCards           int `toml:"max_cards"`
	MaxEstimatedTokens int `toml:"max_estimated_tokens"`
}

func applyPolicyOverride(repoRoot string, cfg *Config) error {
	path := filepath.Join(repoRoot, ".slice", "policy.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read policy override %s: %w", path, err)
	}

	var override policyOverrideFile
	if err := toml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("invalid TOML in policy override %s: %w", path, err)
	}

	if override.MaxCards > 0 && override.MaxCards < cfg.Policy.MaxCards {
		cfg.Policy.MaxCards = override.MaxCards
	}
	if override.MaxEstimatedTokens > 0 && override.MaxEstimatedTokens < cfg.Policy.MaxEstimatedTokens {
		cfg.Policy.MaxEstimatedTokens = override.MaxEstimatedTokens
	}

	return nil
}

type envVarDef struct {
	path    string
	varType string // "string", "int", "float", "bool"
}

var envVarMappings = map[string]envVarDef{
	"SLICE_LOG_LEVEL":               {path: "logging.level", varType: "string"},
	"SLICE_LOG_FORMAT":              {path: "logging.format", varType: "string"},
	"SLICE_DEFAULT_MAX_CARDS":       {path: "slice.defaultMaxCards", varType: "int"},
	"SLICE_DEFAULT_MAX_TOKENS":      {path: "slice.defaultMaxTokens", varType: "int"},
	"SLICE_SCORE_THRESHOLD":         {path: "slice.scoreThreshold", varType: "float"},
	"SLICE_MAX_FRONTIER":            {path: "slice.maxFrontier", varType: "int"},
	"SLICE_CACHE_ENABLED":           {path: "cache.enabled", varType: "bool"},
	"SLICE_CACHE_MAX_ENTRIES":       {path: "cache.maxEntries", varType: "int"},
	"SLICE_CACHE_TTL_MS":            {path: "cache.ttlMs", varType: "int"},
	"SLICE_POLICY_MAX_CARDS":        {path: "policy.maxCards", varType: "int"},
	"SLICE_POLICY_MAX_TOKENS":       {path: "policy.maxEstimatedTokens", varType: "int"},
}

func applyEnvOverrides(cfg *Config) []EnvOverride {
	var overrides []EnvOverride

	for envVar, def := range envVarMappings {
		value := os.Getenv(envVar)
		if value == "" {
			continue
		}

		var parsedValue interface{}
		var err error

		switch def.varType {
		case "string":
			parsedValue = value
		case "int":
			parsedValue, err = strconv.Atoi(value)
		case "float":
			parsedValue, err = strconv.ParseFloat(value, 64)
		case "bool":
			parsedValue, err = strconv.ParseBool(value)
		}
		if err != nil {
			continue
		}

		if applyOverride(cfg, def.path, parsedValue) {
			overrides = append(overrides, EnvOverride{
				EnvVar:    envVar,
				Path:      def.path,
				Value:     parsedValue,
				FromValue: value,
			})
		}
	}

	return overrides
}

func applyOverride(cfg *Config, path string, value interface{}) bool {
	parts := strings.Split(path, ".")
	if len(parts) < 2 {
		return false
	}

	switch parts[0] {
	case "logging":
		switch parts[1] {
		case "level":
			if v, ok := value.(string); ok {
				cfg.Logging.Level = v
				return true
			}
		case "format":
			if v, ok := value.(string); ok {
				cfg.Logging.Format = v
				return true
			}
		}
	case "slice":
		switch parts[1] {
		case "defaultMaxCards":
			if v, ok := value.(int); ok {
				cfg.Slice.DefaultMaxCards = v
				return true
			}
		case "defaultMaxTokens":
			if v, ok := value.(int); ok {
				cfg.Slice.DefaultMaxTokens = v
				return true
			}
		case "scoreThreshold":
			if v, ok := value.(float64); ok {
				cfg.Slice.ScoreThreshold = v
				return true
			}
		case "maxFrontier":
			if v, ok := value.(int); ok {
				cfg.Slice.MaxFrontier = v
				return true
			}
		}
	case "cache":
		switch parts[1] {
		case "enabled":
			if v, ok := value.(bool); ok {
				cfg.Cache.Enabled = v
				return true
			}
		case "maxEntries":
			if v, ok := value.(int); ok {
				cfg.Cache.MaxEntries = v
				return true
			}
		case "ttlMs":
			if v, ok := value.(int); ok {
				cfg.Cache.TTLMs = v
				return true
			}
		}
	case "policy":
		switch parts[1] {
		case "maxCards":
			if v, ok := value.(int); ok {
				cfg.Policy.MaxCards = v
				return true
			}
		case "maxEstimatedTokens":
			if v, ok := value.(int); ok {
				cfg.Policy.MaxEstimatedTokens = v
				return true
			}
		}
	}

	return false
}

// GetSupportedEnvVars returns every recognized environment variable.
func GetSupportedEnvVars() []string {
	vars := make([]string, 0, len(envVarMappings))
	for v := range envVarMappings {
		vars = append(vars, v)
	}
	return vars
}

// Save writes the configuration to repoRoot/.slice/config.json.
func (c *Config) Save(repoRoot string) error {
	configPath := filepath.Join(repoRoot, ".slice", "config.json")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0o644)
}

// SupportedConfigVersions lists config schema versions this code can handle.
var SupportedConfigVersions = []int{1}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	supported := false
	for _, v := range SupportedConfigVersions {
		if c.Version == v {
			supported = true
			break
		}
	}
	if !supported {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d, supported versions: %v", c.Version, SupportedConfigVersions)}
	}
	if c.Slice.DefaultMaxCards <= 0 {
		return &ConfigError{Field: "slice.defaultMaxCards", Message: "must be positive"}
	}
	if c.Slice.DefaultMaxTokens <= 0 {
		return &ConfigError{Field: "slice.defaultMaxTokens", Message: "must be positive"}
	}
	if c.Slice.MaxFrontier <= 0 {
		return &ConfigError{Field: "slice.maxFrontier", Message: "must be positive"}
	}
	for kind, w := range c.Slice.EdgeWeights {
		if w < 0 || w > 1 {
			return &ConfigError{Field: "slice.edgeWeights." + kind, Message: "must be in [0,1]"}
		}
	}
	if c.Cache.Enabled && c.Cache.MaxEntries <= 0 {
		return &ConfigError{Field: "cache.maxEntries", Message: "must be positive when cache is enabled"}
	}
	if c.Policy.MaxCards <= 0 || c.Policy.MaxEstimatedTokens <= 0 {
		return &ConfigError{Field: "policy", Message: "maxCards and maxEstimatedTokens must be positive"}
	}
	return nil
}

// ConfigError reports a single invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
