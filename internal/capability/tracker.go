package capability

import (
	"sync"

	"github.com/loom-ai/loom/internal/types"
)

// UsageScope identifies where token usage was incurred: one pipeline run
// (by correlation id) and optionally one step within it.
type UsageScope struct {
	CorrelationID types.ID
	StepID        string
}

// Key returns a unique map key for this scope.
func (s UsageScope) Key() string {
	if s.StepID != "" {
		return s.CorrelationID.String() + "/" + s.StepID
	}
	return s.CorrelationID.String()
}

// UsageRecord accumulates token usage for one scope.
type UsageRecord struct {
	Scope     UsageScope
	Usage     TokenUsage
	CallCount int
}

// UsageTracker aggregates token usage per pipeline run and per step.
// It is safe for concurrent use; parallel branches record usage directly.
type UsageTracker struct {
	mu    sync.RWMutex
	usage map[string]*UsageRecord
	steps map[types.ID][]string
}

// NewUsageTracker creates an empty UsageTracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		usage: make(map[string]*UsageRecord),
		steps: make(map[types.ID][]string),
	}
}

// Record adds usage for a step scope and aggregates it to the run scope.
func (t *UsageTracker) Record(scope UsageScope, usage TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.recordLocked(scope, usage)
	if scope.StepID != "" {
		t.recordLocked(UsageScope{CorrelationID: scope.CorrelationID}, usage)
	}
}

func (t *UsageTracker) recordLocked(scope UsageScope, usage TokenUsage) {
	key := scope.Key()
	record, exists := t.usage[key]
	if !exists {
		record = &UsageRecord{Scope: scope}
		t.usage[key] = record
		if scope.StepID != "" {
			t.steps[scope.CorrelationID] = append(t.steps[scope.CorrelationID], scope.StepID)
		}
	}

	record.Usage = record.Usage.Add(usage)
	record.CallCount++
}

// Total returns the aggregate usage for one pipeline run.
func (t *UsageTracker) Total(correlationID types.ID) TokenUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	record, exists := t.usage[UsageScope{CorrelationID: correlationID}.Key()]
	if !exists {
		return TokenUsage{}
	}
	return record.Usage
}

// PerStep returns token totals per step id for one pipeline run.
func (t *UsageTracker) PerStep(correlationID types.ID) map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	perStep := make(map[string]int, len(t.steps[correlationID]))
	for _, stepID := range t.steps[correlationID] {
		scope := UsageScope{CorrelationID: correlationID, StepID: stepID}
		if record, exists := t.usage[scope.Key()]; exists {
			perStep[stepID] = record.Usage.Total()
		}
	}
	return perStep
}

// Reset clears all usage recorded for one pipeline run.
func (t *UsageTracker) Reset(correlationID types.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, stepID := range t.steps[correlationID] {
		delete(t.usage, UsageScope{CorrelationID: correlationID, StepID: stepID}.Key())
	}
	delete(t.usage, UsageScope{CorrelationID: correlationID}.Key())
	delete(t.steps, correlationID)
}
