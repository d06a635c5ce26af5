package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonzs/domain/association"
	"gonzs/domain/core"
	"gonzs/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Analysis AnalysisConfig
	Server   ServerConfig
	Database DatabaseConfig
	Report   ReportConfig
	Limits   LimitsConfig
}

// AnalysisConfig holds the defaults applied to every analysis
type AnalysisConfig struct {
	association.Config
	// UniverseSize is used when a request does not name one.
	UniverseSize int
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// DatabaseConfig holds database connection settings. An empty URL disables
// the result cache.
type DatabaseConfig struct {
	URL string
}

// Enabled reports whether a database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// ReportConfig holds the substitution policy applied by reports
type ReportConfig struct {
	SubstituteThreshold float64
	SubstituteValue     float64
}

// LimitsConfig caps what a single API request may ask for
type LimitsConfig struct {
	MaxIterations   int
	MaxReplicates   int
	MaxFractions    int
	MaxUniverseSize int
	MaxBodyBytes    int64
}

// DefaultLimits returns the caps used when no environment override is set
func DefaultLimits() LimitsConfig {
	return LimitsConfig{
		MaxIterations:   100000,
		MaxReplicates:   1000,
		MaxFractions:    100,
		MaxUniverseSize: 50000000,
		MaxBodyBytes:    32 << 20,
	}
}

// Check rejects options beyond the configured caps
func (l LimitsConfig) Check(cfg association.Config, universeSize int) error {
	switch {
	case cfg.Iterations > l.MaxIterations:
		return core.NewInvalidArgumentError("iterations", fmt.Sprintf("%d exceeds the limit of %d", cfg.Iterations, l.MaxIterations))
	case cfg.Replicates > l.MaxReplicates:
		return core.NewInvalidArgumentError("replicates", fmt.Sprintf("%d exceeds the limit of %d", cfg.Replicates, l.MaxReplicates))
	case len(cfg.Fractions) > l.MaxFractions:
		return core.NewInvalidArgumentError("fractions", fmt.Sprintf("%d entries exceed the limit of %d", len(cfg.Fractions), l.MaxFractions))
	case universeSize > l.MaxUniverseSize:
		return core.NewInvalidArgumentError("universe size", fmt.Sprintf("%d exceeds the limit of %d", universeSize, l.MaxUniverseSize))
	}
	return nil
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	analysisConfig, err := loadAnalysisConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load analysis configuration")
	}
	config.Analysis = *analysisConfig

	config.Server = *loadServerConfig()
	config.Database = DatabaseConfig{URL: os.Getenv("DATABASE_URL")}
	config.Report = *loadReportConfig()
	config.Limits = *loadLimitsConfig()

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadAnalysisConfig() (*AnalysisConfig, error) {
	defaults := association.DefaultConfig()

	fractions := defaults.Fractions
	if raw := os.Getenv("FRACTIONS"); raw != "" {
		parsed, err := ParseFractions(raw)
		if err != nil {
			return nil, err
		}
		fractions = parsed
	}

	return &AnalysisConfig{
		Config: association.Config{
			Iterations:       getEnvIntOrDefault("ITERATIONS", defaults.Iterations),
			Fractions:        fractions,
			Replicates:       getEnvIntOrDefault("REPLICATES", defaults.Replicates),
			Evaluator:        getEnvOrDefault("EVALUATOR", defaults.Evaluator),
			Seed:             int64(getEnvIntOrDefault("SEED", int(defaults.Seed))),
			Workers:          getEnvIntOrDefault("WORKERS", defaults.Workers),
			StrictDegenerate: getEnvBoolOrDefault("STRICT_DEGENERATE", false),
		},
		UniverseSize: getEnvIntOrDefault("UNIVERSE_SIZE", 0),
	}, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
	}
}

func loadReportConfig() *ReportConfig {
	return &ReportConfig{
		SubstituteThreshold: getEnvFloatOrDefault("SUBSTITUTE_THRESHOLD", 1.96),
		SubstituteValue:     getEnvFloatOrDefault("SUBSTITUTE_VALUE", 0),
	}
}

func loadLimitsConfig() *LimitsConfig {
	defaults := DefaultLimits()
	return &LimitsConfig{
		MaxIterations:   getEnvIntOrDefault("MAX_ITERATIONS", defaults.MaxIterations),
		MaxReplicates:   getEnvIntOrDefault("MAX_REPLICATES", defaults.MaxReplicates),
		MaxFractions:    getEnvIntOrDefault("MAX_FRACTIONS", defaults.MaxFractions),
		MaxUniverseSize: getEnvIntOrDefault("MAX_UNIVERSE_SIZE", defaults.MaxUniverseSize),
		MaxBodyBytes:    int64(getEnvIntOrDefault("MAX_BODY_BYTES", int(defaults.MaxBodyBytes))),
	}
}

func validateConfig(config *Config) error {
	if err := config.Analysis.Validate(); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	if config.Analysis.UniverseSize < 0 {
		return errors.ConfigInvalid("UNIVERSE_SIZE must not be negative")
	}
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if config.Report.SubstituteThreshold < 0 {
		return errors.ConfigInvalid("SUBSTITUTE_THRESHOLD must not be negative")
	}
	l := config.Limits
	if l.MaxIterations < association.MinIterations || l.MaxReplicates < 1 || l.MaxFractions < 1 || l.MaxUniverseSize < 1 || l.MaxBodyBytes < 1 {
		return errors.ConfigInvalid("MAX_* limits must be positive")
	}
	if err := l.Check(config.Analysis.Config, config.Analysis.UniverseSize); err != nil {
		return errors.ConfigInvalid("analysis defaults exceed limits: " + err.Error())
	}
	return nil
}

// ParseFractions parses a comma separated list such as "0.1,0.5,1"
func ParseFractions(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	fractions := make([]float64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, errors.ConfigInvalid(fmt.Sprintf("fraction %q is not a number", part))
		}
		fractions = append(fractions, f)
	}
	if err := association.ValidateFractions(fractions); err != nil {
		return nil, errors.ConfigInvalid(err.Error())
	}
	return fractions, nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
