package capability

import (
	"context"
	"strings"
)

// Severity classifies how serious a validation issue is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue describes a single problem a validator found in an artifact.
type Issue struct {
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// String renders the issue as a single feedback line suitable for
// injection into a regeneration prompt.
func (i Issue) String() string {
	if i.Suggestion != "" {
		return i.Message + " (suggestion: " + i.Suggestion + ")"
	}
	return i.Message
}

// ValidationReport is the outcome of validating one artifact.
type ValidationReport struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

// FeedbackText joins all issues into one correction-feedback string for
// the self-correction loop. Returns "" when there are no issues.
func (r ValidationReport) FeedbackText() string {
	if len(r.Issues) == 0 {
		return ""
	}
	lines := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		lines = append(lines, "- "+issue.String())
	}
	return strings.Join(lines, "\n")
}

// Validator defines the interface for the artifact validation boundary.
// Implementations check a single artifact in isolation; consistency checks
// spanning multiple artifacts belong to the cross-layer validator.
type Validator interface {
	// Validate checks one artifact of the given kind.
	Validate(ctx context.Context, artifact string, kind ArtifactKind) (*ValidationReport, error)
}
