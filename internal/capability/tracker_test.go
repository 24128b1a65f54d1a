package capability

import (
	"sync"
	"testing"

	"github.com/loom-ai/loom/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestUsageTracker_RecordAndTotal(t *testing.T) {
	tracker := NewUsageTracker()
	runID := types.NewID()

	tracker.Record(UsageScope{CorrelationID: runID, StepID: "markup"}, TokenUsage{InputTokens: 100, OutputTokens: 200})
	tracker.Record(UsageScope{CorrelationID: runID, StepID: "markup"}, TokenUsage{InputTokens: 50, OutputTokens: 25})
	tracker.Record(UsageScope{CorrelationID: runID, StepID: "style"}, TokenUsage{InputTokens: 10, OutputTokens: 20})

	total := tracker.Total(runID)
	assert.Equal(t, 160, total.InputTokens)
	assert.Equal(t, 245, total.OutputTokens)

	perStep := tracker.PerStep(runID)
	assert.Equal(t, map[string]int{"markup": 375, "style": 30}, perStep)
}

func TestUsageTracker_IsolatesRuns(t *testing.T) {
	tracker := NewUsageTracker()
	runA := types.NewID()
	runB := types.NewID()

	tracker.Record(UsageScope{CorrelationID: runA, StepID: "markup"}, TokenUsage{InputTokens: 1, OutputTokens: 1})
	tracker.Record(UsageScope{CorrelationID: runB, StepID: "markup"}, TokenUsage{InputTokens: 7, OutputTokens: 7})

	assert.Equal(t, 2, tracker.Total(runA).Total())
	assert.Equal(t, 14, tracker.Total(runB).Total())
}

func TestUsageTracker_Reset(t *testing.T) {
	tracker := NewUsageTracker()
	runID := types.NewID()

	tracker.Record(UsageScope{CorrelationID: runID, StepID: "markup"}, TokenUsage{InputTokens: 5, OutputTokens: 5})
	tracker.Reset(runID)

	assert.Zero(t, tracker.Total(runID).Total())
	assert.Empty(t, tracker.PerStep(runID))
}

func TestUsageTracker_ConcurrentRecord(t *testing.T) {
	tracker := NewUsageTracker()
	runID := types.NewID()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Record(UsageScope{CorrelationID: runID, StepID: "branch"}, TokenUsage{InputTokens: 1, OutputTokens: 2})
		}()
	}
	wg.Wait()

	assert.Equal(t, 150, tracker.Total(runID).Total())
}

func TestTokenUsage_Add(t *testing.T) {
	sum := TokenUsage{InputTokens: 1, OutputTokens: 2}.Add(TokenUsage{InputTokens: 3, OutputTokens: 4})
	assert.Equal(t, TokenUsage{InputTokens: 4, OutputTokens: 6}, sum)
	assert.Equal(t, 10, sum.Total())
}
