package main

import (
	"fmt"

	"github.com/loom-ai/loom/internal/pipeline"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <definition.yaml>",
	Short: "Statically validate a pipeline definition",
	Args:  cobra.ExactArgs(1),
	RunE:  validateDefinition,
}

func validateDefinition(cmd *cobra.Command, args []string) error {
	def, err := pipeline.LoadDefinition(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Definition %q is valid: %d stages\n", def.Type, def.StepCount())
	for i, stage := range def.Stages {
		if stage.Step != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  %d. step %s (%s -> %s)\n", i+1, stage.Step.ID, stage.Step.Capability, stage.Step.Kind)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %d. group %s (%d branches)\n", i+1, stage.Group.Name, len(stage.Group.Steps))
	}
	return nil
}
