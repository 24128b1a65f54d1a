package pipeline

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/loom-ai/loom/internal/types"
)

// Checkpoint is an immutable pre-step snapshot of the pipeline context,
// used for diagnostics and recovery decisions. It is not automatic
// rollback: steps are idempotent by construction, since a fresh generator
// call simply overwrites the prior artifact of its kind.
type Checkpoint struct {
	StepIndex int       `json:"step_index"`
	StageName string    `json:"stage_name"`
	Snapshot  []byte    `json:"snapshot"`
	Timestamp time.Time `json:"timestamp"`
}

// RestoreContext deserializes the snapshot back into a Context.
func (c Checkpoint) RestoreContext() (*Context, error) {
	var pctx Context
	if err := json.Unmarshal(c.Snapshot, &pctx); err != nil {
		return nil, fmt.Errorf("failed to restore checkpoint snapshot: %w", err)
	}
	return &pctx, nil
}

// CheckpointStore is an in-memory append log of per-run context snapshots,
// keyed by correlation id. One store may serve many concurrent runs; the
// per-run logs never interleave because each run appends only its own.
type CheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[types.ID][]Checkpoint
}

// NewCheckpointStore creates an empty CheckpointStore.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		checkpoints: make(map[types.ID][]Checkpoint),
	}
}

// Save appends an immutable snapshot of the context for the given run.
// The context is serialized at call time, so later mutations do not leak
// into the stored checkpoint.
func (s *CheckpointStore) Save(correlationID types.ID, stepIndex int, stageName string, pctx *Context) error {
	snapshot, err := json.Marshal(pctx)
	if err != nil {
		return types.WrapError(types.PIPELINE_STEP_FAILED, "failed to serialize context snapshot", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkpoints[correlationID] = append(s.checkpoints[correlationID], Checkpoint{
		StepIndex: stepIndex,
		StageName: stageName,
		Snapshot:  snapshot,
		Timestamp: time.Now(),
	})

	return nil
}

// GetLastBefore returns the nearest checkpoint with StepIndex strictly
// below the given index, or false when none exists.
func (s *CheckpointStore) GetLastBefore(correlationID types.ID, stepIndex int) (Checkpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.checkpoints[correlationID]
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].StepIndex < stepIndex {
			return log[i], true
		}
	}
	return Checkpoint{}, false
}

// Count returns the number of checkpoints held for a run.
func (s *CheckpointStore) Count(correlationID types.ID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.checkpoints[correlationID])
}

// Clear releases all snapshots for a finished run. Called at run end
// regardless of outcome.
func (s *CheckpointStore) Clear(correlationID types.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, correlationID)
}
