package config

import (
	"io"
	"log/slog"

	"github.com/loom-ai/loom/internal/capability"
	"github.com/loom-ai/loom/internal/pipeline"
)

// PipelineRefinerConfig converts the refiner section into the engine's
// runtime configuration.
func (c *Config) PipelineRefinerConfig() pipeline.RefinerConfig {
	thresholds := make(map[capability.ArtifactKind]float64, len(c.Refiner.Thresholds))
	for kind, threshold := range c.Refiner.Thresholds {
		thresholds[capability.ArtifactKind(kind)] = threshold
	}

	return pipeline.RefinerConfig{
		MaxIterations:      c.Refiner.MaxIterations,
		ConvergenceEpsilon: c.Refiner.ConvergenceEpsilon,
		ConvergenceCount:   c.Refiner.ConvergenceCount,
		Thresholds:         thresholds,
		DefaultThreshold:   c.Refiner.DefaultThreshold,
	}
}

// PipelineCrossCheckConfig converts the cross_check section into the
// engine's runtime configuration.
func (c *Config) PipelineCrossCheckConfig() pipeline.CrossCheckConfig {
	minDensity := make(map[capability.ArtifactKind]int, len(c.CrossCheck.MinDensity))
	for kind, minimum := range c.CrossCheck.MinDensity {
		minDensity[capability.ArtifactKind(kind)] = minimum
	}

	return pipeline.CrossCheckConfig{
		Blocking:   c.CrossCheck.Blocking,
		MinDensity: minDensity,
	}
}

// RunConfig derives the per-run settings handed to new pipeline contexts.
func (c *Config) RunConfig() pipeline.RunConfig {
	return pipeline.RunConfig{
		QualityTarget: c.Execution.QualityTarget,
		TokenBudget:   c.Execution.TokenBudget,
	}
}

// NewLogger builds a structured logger per the logging section. Debug mode
// on the core section wins over the configured level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch c.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if c.Core.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if c.Logging.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}
