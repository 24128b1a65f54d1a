package pipeline

import (
	"testing"

	"github.com/loom-ai/loom/internal/capability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markupStep(id string) Step {
	return Step{ID: id, Capability: "markup", Kind: capability.KindMarkup}
}

func styleStep(id string) Step {
	return Step{ID: id, Capability: "style", Kind: capability.KindStyle}
}

func TestDefinitionValidate(t *testing.T) {
	tests := []struct {
		name    string
		def     Definition
		wantErr string
	}{
		{
			name: "valid sequential",
			def: Definition{Type: "webpage", Stages: []Stage{
				StepStage(markupStep("gen-markup")),
				StepStage(styleStep("gen-style")),
			}},
		},
		{
			name:    "missing type",
			def:     Definition{Stages: []Stage{StepStage(markupStep("a"))}},
			wantErr: "type is required",
		},
		{
			name:    "no stages",
			def:     Definition{Type: "webpage"},
			wantErr: "no stages",
		},
		{
			name: "duplicate step id",
			def: Definition{Type: "webpage", Stages: []Stage{
				StepStage(markupStep("gen")),
				StepStage(styleStep("gen")),
			}},
			wantErr: "duplicate step id",
		},
		{
			name: "kind claimed twice outside groups",
			def: Definition{Type: "webpage", Stages: []Stage{
				StepStage(markupStep("a")),
				StepStage(markupStep("b")),
			}},
			wantErr: "claimed by both",
		},
		{
			name: "same kind allowed inside a group",
			def: Definition{Type: "webpage", Stages: []Stage{
				GroupStage(ParallelGroup{Name: "sections", Steps: []Step{
					markupStep("hero"),
					markupStep("footer"),
				}}),
			}},
		},
		{
			name: "empty group",
			def: Definition{Type: "webpage", Stages: []Stage{
				GroupStage(ParallelGroup{Name: "sections"}),
			}},
			wantErr: "has no steps",
		},
		{
			name: "step without capability",
			def: Definition{Type: "webpage", Stages: []Stage{
				StepStage(Step{ID: "a", Kind: capability.KindMarkup}),
			}},
			wantErr: "has no capability",
		},
		{
			name:    "empty stage",
			def:     Definition{Type: "webpage", Stages: []Stage{{}}},
			wantErr: "is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNewDefinitionRejectsInvalid(t *testing.T) {
	_, err := NewDefinition("")
	assert.Error(t, err)

	def, err := NewDefinition("webpage", StepStage(markupStep("gen-markup")))
	require.NoError(t, err)
	assert.Equal(t, 1, def.StepCount())
}

func TestRefinableKinds(t *testing.T) {
	markup := markupStep("gen-markup")
	markup.Refinable = true
	hero := markupStep("hero")
	hero.Refinable = true
	style := styleStep("gen-style")
	style.Refinable = true

	def, err := NewDefinition("webpage",
		StepStage(markup),
		GroupStage(ParallelGroup{Name: "sections", Steps: []Step{hero}}),
		StepStage(style),
	)
	require.NoError(t, err)

	// Declaration order, no duplicate for the kind produced twice.
	assert.Equal(t, []capability.ArtifactKind{capability.KindMarkup, capability.KindStyle}, def.RefinableKinds())
}

func TestProducerFor(t *testing.T) {
	sequential := markupStep("sequential-markup")
	branch := markupStep("branch-markup")

	def, err := NewDefinition("webpage",
		GroupStage(ParallelGroup{Name: "sections", Steps: []Step{branch}}),
		StepStage(sequential),
	)
	require.NoError(t, err)

	// Sequential producers win over group branches for the same kind.
	producer := def.ProducerFor(capability.KindMarkup)
	require.NotNil(t, producer)
	assert.Equal(t, "sequential-markup", producer.ID)

	assert.Nil(t, def.ProducerFor(capability.KindBehavior))
}
