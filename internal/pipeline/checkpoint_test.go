package pipeline

import (
	"testing"

	"github.com/loom-ai/loom/internal/capability"
	"github.com/loom-ai/loom/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointStoreSaveAndCount(t *testing.T) {
	store := NewCheckpointStore()
	pctx := NewContext("webpage", RunConfig{})

	require.NoError(t, store.Save(pctx.CorrelationID, 0, "gen-markup", pctx))
	require.NoError(t, store.Save(pctx.CorrelationID, 1, "gen-style", pctx))

	assert.Equal(t, 2, store.Count(pctx.CorrelationID))
	assert.Equal(t, 0, store.Count(types.NewID()))
}

func TestCheckpointSnapshotIsImmutable(t *testing.T) {
	store := NewCheckpointStore()
	pctx := NewContext("webpage", RunConfig{})
	pctx.SetArtifact(capability.KindMarkup, `<main id="before"></main>`)

	require.NoError(t, store.Save(pctx.CorrelationID, 0, "gen-markup", pctx))

	// Later mutation must not leak into the stored snapshot.
	pctx.SetArtifact(capability.KindMarkup, `<main id="after"></main>`)

	cp, ok := store.GetLastBefore(pctx.CorrelationID, 1)
	require.True(t, ok)

	restored, err := cp.RestoreContext()
	require.NoError(t, err)
	assert.Equal(t, `<main id="before"></main>`, restored.Artifact(capability.KindMarkup))
	assert.Equal(t, pctx.CorrelationID, restored.CorrelationID)
	assert.Equal(t, []string{"before"}, restored.Digests[capability.KindMarkup].Identifiers)
}

func TestGetLastBefore(t *testing.T) {
	store := NewCheckpointStore()
	pctx := NewContext("webpage", RunConfig{})

	for i, name := range []string{"stage-0", "stage-1", "stage-2"} {
		require.NoError(t, store.Save(pctx.CorrelationID, i, name, pctx))
	}

	cp, ok := store.GetLastBefore(pctx.CorrelationID, 2)
	require.True(t, ok)
	assert.Equal(t, 1, cp.StepIndex)
	assert.Equal(t, "stage-1", cp.StageName)

	_, ok = store.GetLastBefore(pctx.CorrelationID, 0)
	assert.False(t, ok)

	_, ok = store.GetLastBefore(types.NewID(), 5)
	assert.False(t, ok)
}

func TestCheckpointStoreClear(t *testing.T) {
	store := NewCheckpointStore()
	kept := NewContext("webpage", RunConfig{})
	cleared := NewContext("webpage", RunConfig{})

	require.NoError(t, store.Save(kept.CorrelationID, 0, "a", kept))
	require.NoError(t, store.Save(cleared.CorrelationID, 0, "a", cleared))

	store.Clear(cleared.CorrelationID)

	assert.Equal(t, 0, store.Count(cleared.CorrelationID))
	assert.Equal(t, 1, store.Count(kept.CorrelationID))
}
