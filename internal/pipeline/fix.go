package pipeline

import (
	"strings"

	"github.com/loom-ai/loom/internal/capability"
)

// Fixer is a pure transform applied to generated text before validation.
// It returns the rewritten text and the name of the fix when one applied,
// or the input unchanged with "".
type Fixer func(text string, kind capability.ArtifactKind) (fixed string, applied string)

// FixerChain applies fixers in order, collecting the names of fixes that
// changed the text. The chain itself holds no state, so one chain is safe
// to share across steps and runs.
type FixerChain struct {
	fixers []Fixer
}

// NewFixerChain creates a chain from the given fixers.
func NewFixerChain(fixers ...Fixer) *FixerChain {
	return &FixerChain{fixers: fixers}
}

// Apply runs every fixer in order and returns the final text plus the list
// of applied fix names.
func (c *FixerChain) Apply(text string, kind capability.ArtifactKind) (string, []string) {
	if c == nil {
		return text, nil
	}

	var applied []string
	for _, fixer := range c.fixers {
		fixed, name := fixer(text, kind)
		if name != "" {
			applied = append(applied, name)
		}
		text = fixed
	}
	return text, applied
}

// StripCodeFence removes a wrapping markdown code fence, a common artifact
// of model output that breaks downstream validators.
func StripCodeFence(text string, _ capability.ArtifactKind) (string, string) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text, ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 || !strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		return text, ""
	}

	return strings.Join(lines[1:len(lines)-1], "\n"), "strip_code_fence"
}

// TrimSurroundingProse drops leading commentary before the first markup tag
// for markup artifacts. Other kinds pass through untouched.
func TrimSurroundingProse(text string, kind capability.ArtifactKind) (string, string) {
	if kind != capability.KindMarkup {
		return text, ""
	}

	idx := strings.Index(text, "<")
	if idx <= 0 {
		return text, ""
	}
	if strings.TrimSpace(text[:idx]) == "" {
		return text, ""
	}

	return text[idx:], "trim_surrounding_prose"
}

// DefaultFixerChain returns the standard fix pipeline applied before
// validation.
func DefaultFixerChain() *FixerChain {
	return NewFixerChain(StripCodeFence, TrimSurroundingProse)
}
