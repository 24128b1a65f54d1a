package capability

import (
	"context"
	"fmt"
)

// Dimension names one axis of artifact quality scored by a critic.
type Dimension string

const (
	DimensionStructure     Dimension = "structure"
	DimensionConsistency   Dimension = "consistency"
	DimensionCompleteness  Dimension = "completeness"
	DimensionAccessibility Dimension = "accessibility"
)

// dimensionWeights are the fixed weights used to fold per-dimension scores
// into an overall score. They sum to 1.0.
var dimensionWeights = map[Dimension]float64{
	DimensionStructure:     0.30,
	DimensionConsistency:   0.25,
	DimensionCompleteness:  0.25,
	DimensionAccessibility: 0.20,
}

// QualityScore holds named sub-scores in the range 0..10 with a weighted
// overall score.
type QualityScore struct {
	Scores  map[Dimension]float64 `json:"scores"`
	Overall float64               `json:"overall"`
}

// NewQualityScore computes the weighted overall score from per-dimension
// sub-scores. Dimensions missing from the input contribute zero; unknown
// dimensions are rejected.
func NewQualityScore(scores map[Dimension]float64) (QualityScore, error) {
	overall := 0.0
	for dim, score := range scores {
		weight, known := dimensionWeights[dim]
		if !known {
			return QualityScore{}, fmt.Errorf("unknown quality dimension: %s", dim)
		}
		if score < 0 || score > 10 {
			return QualityScore{}, fmt.Errorf("score for %s out of range [0,10]: %f", dim, score)
		}
		overall += score * weight
	}

	copied := make(map[Dimension]float64, len(scores))
	for dim, score := range scores {
		copied[dim] = score
	}

	return QualityScore{Scores: copied, Overall: overall}, nil
}

// Critique is the outcome of one critic evaluation: a quality score plus
// concrete improvement suggestions the producer can act on.
type Critique struct {
	Score        QualityScore `json:"score"`
	Improvements []string     `json:"improvements,omitempty"`
}

// Critic defines the interface for the quality-evaluation boundary.
// It scores a set of artifacts as a whole, so the refiner can judge a new
// candidate in the context of the fixed artifacts around it.
type Critic interface {
	// Evaluate scores the given artifacts and suggests improvements.
	Evaluate(ctx context.Context, artifacts map[ArtifactKind]string) (*Critique, error)
}
