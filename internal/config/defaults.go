package config

import (
	"time"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Core: CoreConfig{
			HomeDir: DefaultHomeDir(),
			Timeout: 5 * time.Minute,
			Debug:   false,
		},
		Generator: GeneratorConfig{
			Provider: "openai",
			Model:    "gpt-4o",
			APIKey:   "${OPENAI_API_KEY}",
		},
		Execution: ExecutionConfig{
			MaxRetries:    2,
			TokenBudget:   0,
			QualityTarget: 7.0,
		},
		Refiner: RefinerConfig{
			MaxIterations:      3,
			ConvergenceEpsilon: 0.25,
			ConvergenceCount:   2,
			Thresholds: map[string]float64{
				"markup":   8.0,
				"style":    7.5,
				"behavior": 7.0,
				"copy":     6.5,
			},
			DefaultThreshold: 7.0,
		},
		CrossCheck: CrossCheckConfig{
			Blocking: false,
			MinDensity: map[string]int{
				"markup": 3,
				"style":  2,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Endpoint: "",
		},
	}
}
