package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/loom-ai/loom/internal/capability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
name: landing page
type: webpage
stages:
  - step:
      id: gen-markup
      capability: markup
      kind: markup
      required: true
      compress_output: true
      refinable: true
  - group:
      name: sections
      steps:
        - id: gen-hero
          capability: markup
          kind: markup
          section: hero
        - id: gen-footer
          capability: markup
          kind: markup
          section: footer
  - step:
      id: gen-style
      capability: style
      kind: style
      recoverable: true
      should_run: always
`

func TestParseDefinition(t *testing.T) {
	def, err := ParseDefinition([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "webpage", def.Type)
	require.Len(t, def.Stages, 3)

	markup := def.Stages[0].Step
	require.NotNil(t, markup)
	assert.Equal(t, "gen-markup", markup.ID)
	assert.Equal(t, capability.KindMarkup, markup.Kind)
	assert.True(t, markup.Required)
	assert.True(t, markup.CompressOutput)
	assert.True(t, markup.Refinable)

	group := def.Stages[1].Group
	require.NotNil(t, group)
	assert.Equal(t, "sections", group.Name)
	require.Len(t, group.Steps, 2)
	assert.Equal(t, "hero", group.Steps[0].BranchSection)
	assert.Equal(t, "footer", group.Steps[1].BranchSection)

	style := def.Stages[2].Step
	require.NotNil(t, style)
	assert.True(t, style.Recoverable)
	require.NotNil(t, style.ShouldRun)
	assert.True(t, style.ShouldRun(NewContext("webpage", RunConfig{})))
}

func TestParseDefinitionErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "not yaml",
			yaml:    "{{{",
			wantErr: "failed to parse",
		},
		{
			name:    "missing type",
			yaml:    "name: x\nstages:\n  - step:\n      id: a\n      capability: c\n      kind: markup\n",
			wantErr: "type is required",
		},
		{
			name:    "empty stage",
			yaml:    "type: webpage\nstages:\n  - {}\n",
			wantErr: "step or group is required",
		},
		{
			name: "unknown predicate",
			yaml: "type: webpage\nstages:\n  - step:\n      id: a\n      capability: c\n      kind: markup\n      should_run: nope\n",
			wantErr: "unknown predicate",
		},
		{
			name: "duplicate ids rejected by validation",
			yaml: "type: webpage\nstages:\n  - step:\n      id: a\n      capability: c\n      kind: markup\n  - step:\n      id: a\n      capability: c\n      kind: style\n",
			wantErr: "duplicate step id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegisterPredicate(t *testing.T) {
	RegisterPredicate("markup_present", func(pctx *Context) bool {
		return pctx.Artifact(capability.KindMarkup) != ""
	})

	def, err := ParseDefinition([]byte(`
type: webpage
stages:
  - step:
      id: gen-style
      capability: style
      kind: style
      should_run: markup_present
`))
	require.NoError(t, err)

	step := def.Stages[0].Step
	require.NotNil(t, step.ShouldRun)

	pctx := NewContext("webpage", RunConfig{})
	assert.False(t, step.ShouldRun(pctx))
	pctx.SetArtifact(capability.KindMarkup, "<main></main>")
	assert.True(t, step.ShouldRun(pctx))
}

func TestLoadDefinition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	def, err := LoadDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, 3, def.StepCount())

	_, err = LoadDefinition(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}
