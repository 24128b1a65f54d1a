package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/loom-ai/loom/internal/capability"
	"github.com/loom-ai/loom/internal/capability/providers"
	"github.com/loom-ai/loom/internal/config"
	"github.com/loom-ai/loom/internal/pipeline"
	"github.com/spf13/cobra"
)

var flagPipelineType string

var runCmd = &cobra.Command{
	Use:   "run <definition.yaml>",
	Short: "Run a pipeline definition",
	Long: `Run executes the given pipeline definition end to end and prints the
result as JSON. The configured generator provider serves every capability
the definition references.`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&flagPipelineType, "type", "", "Override the pipeline type from the definition")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	def, err := pipeline.LoadDefinition(args[0])
	if err != nil {
		return err
	}

	logger := cfg.NewLogger(os.Stderr)

	registry := pipeline.NewRegistry(nil, nil)
	if err := registerCapabilities(registry, def, cfg); err != nil {
		return err
	}

	tracker := capability.NewUsageTracker()
	orchestrator := pipeline.NewOrchestrator(registry, pipeline.NewCheckpointStore(), tracker,
		pipeline.WithLogger(logger),
		pipeline.WithMaxRetries(cfg.Execution.MaxRetries),
		pipeline.WithRefinerConfig(cfg.PipelineRefinerConfig()),
		pipeline.WithCrossCheckConfig(cfg.PipelineCrossCheckConfig()),
	)

	pipelineType := def.Type
	if flagPipelineType != "" {
		pipelineType = flagPipelineType
	}

	pctx := pipeline.NewContext(pipelineType, cfg.RunConfig())
	result := orchestrator.RunPipeline(cmd.Context(), def, pctx)

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("pipeline failed: %s", result.Err.Error())
	}
	return nil
}

// registerCapabilities binds the configured provider to every capability
// name the definition references, so preflight finds them all registered.
func registerCapabilities(registry *pipeline.Registry, def *pipeline.Definition, cfg *config.Config) error {
	names := make(map[string]struct{})
	for _, stage := range def.Stages {
		if stage.Step != nil {
			names[stage.Step.Capability] = struct{}{}
		}
		if stage.Group != nil {
			for _, step := range stage.Group.Steps {
				names[step.Capability] = struct{}{}
			}
		}
	}

	for name := range names {
		gen, err := buildGenerator(cfg)
		if err != nil {
			return err
		}
		if err := registry.RegisterGenerator(name, gen); err != nil {
			return err
		}
	}
	return nil
}

// buildGenerator constructs the generator named by the config.
func buildGenerator(cfg *config.Config) (capability.Generator, error) {
	switch cfg.Generator.Provider {
	case "openai", "":
		return providers.NewOpenAIGenerator(providers.ProviderConfig{
			APIKey:       cfg.Generator.APIKey,
			DefaultModel: cfg.Generator.Model,
			BaseURL:      cfg.Generator.BaseURL,
		})
	case "mock":
		// Exercises definitions end to end without a provider account.
		return providers.NewMockGenerator("mock output"), nil
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Generator.Provider)
	}
}
