package config

import (
	"time"
)

// Config is the root configuration for the Loom engine.
type Config struct {
	Core       CoreConfig       `mapstructure:"core" yaml:"core" validate:"required"`
	Generator  GeneratorConfig  `mapstructure:"generator" yaml:"generator"`
	Execution  ExecutionConfig  `mapstructure:"execution" yaml:"execution" validate:"required"`
	Refiner    RefinerConfig    `mapstructure:"refiner" yaml:"refiner"`
	CrossCheck CrossCheckConfig `mapstructure:"cross_check" yaml:"cross_check"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
}

// CoreConfig contains core application settings.
type CoreConfig struct {
	HomeDir string        `mapstructure:"home_dir" yaml:"home_dir"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=1s"`
	Debug   bool          `mapstructure:"debug" yaml:"debug"`
}

// GeneratorConfig contains LLM provider settings. APIKey supports
// ${VAR_NAME} environment interpolation so keys stay out of config files.
type GeneratorConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

// ExecutionConfig contains pipeline execution settings.
type ExecutionConfig struct {
	// MaxRetries bounds the per-step self-correction loop.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries" validate:"min=0,max=10"`

	// TokenBudget caps tokens per generation call (0 = unlimited).
	TokenBudget int `mapstructure:"token_budget" yaml:"token_budget" validate:"min=0"`

	// QualityTarget is the fallback quality bar for unconfigured kinds.
	QualityTarget float64 `mapstructure:"quality_target" yaml:"quality_target" validate:"min=0,max=10"`
}

// RefinerConfig contains the producer/critic loop tuning constants.
type RefinerConfig struct {
	MaxIterations      int                `mapstructure:"max_iterations" yaml:"max_iterations" validate:"min=0,max=20"`
	ConvergenceEpsilon float64            `mapstructure:"convergence_epsilon" yaml:"convergence_epsilon" validate:"min=0"`
	ConvergenceCount   int                `mapstructure:"convergence_count" yaml:"convergence_count" validate:"min=1"`
	Thresholds         map[string]float64 `mapstructure:"thresholds" yaml:"thresholds,omitempty"`
	DefaultThreshold   float64            `mapstructure:"default_threshold" yaml:"default_threshold" validate:"min=0,max=10"`
}

// CrossCheckConfig contains cross-layer validation settings.
type CrossCheckConfig struct {
	Blocking   bool           `mapstructure:"blocking" yaml:"blocking"`
	MinDensity map[string]int `mapstructure:"min_density" yaml:"min_density,omitempty"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=json text"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}
