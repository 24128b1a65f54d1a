package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/loom-ai/loom/internal/capability"
)

// sortedKinds returns map keys in a fixed order so rendered prompts are
// stable run to run.
func sortedKinds[V any](m map[capability.ArtifactKind]V) []capability.ArtifactKind {
	kinds := make([]capability.ArtifactKind, 0, len(m))
	for kind := range m {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// RequestBuilder maps a step plus the current context to a generation
// request. Prompt and template construction proper live outside the
// engine; this hook is the seam where callers plug theirs in.
type RequestBuilder func(step Step, pctx *Context) capability.GenerationRequest

// DefaultRequestBuilder renders the context into a compact request: the
// digests of earlier artifacts stand in for their full text, and any
// correction or quality feedback from previous attempts is appended so
// regeneration is feedback-augmented rather than blind.
func DefaultRequestBuilder(step Step, pctx *Context) capability.GenerationRequest {
	var b strings.Builder

	fmt.Fprintf(&b, "Produce the %s artifact for pipeline %q.\n", step.Kind, pctx.PipelineType)
	if pctx.BranchSection != "" {
		fmt.Fprintf(&b, "This call owns only the %q section.\n", pctx.BranchSection)
	}

	for _, kind := range sortedKinds(pctx.Digests) {
		digest := pctx.Digests[kind]
		if kind == step.Kind || digest.IsEmpty() {
			continue
		}
		fmt.Fprintf(&b, "\nExisting %s summary:\n", kind)
		if len(digest.Sections) > 0 {
			fmt.Fprintf(&b, "  sections: %s\n", strings.Join(digest.Sections, ", "))
		}
		if len(digest.Identifiers) > 0 {
			fmt.Fprintf(&b, "  identifiers: %s\n", strings.Join(digest.Identifiers, ", "))
		}
		if len(digest.Variables) > 0 {
			fmt.Fprintf(&b, "  variables: %s\n", strings.Join(digest.Variables, ", "))
		}
	}

	if pctx.CorrectionFeedback != "" {
		fmt.Fprintf(&b, "\nThe previous attempt failed validation. Fix these issues:\n%s\n", pctx.CorrectionFeedback)
	}

	if len(pctx.QualityFeedback) > 0 {
		b.WriteString("\nApply these quality improvements:\n")
		for _, improvement := range pctx.QualityFeedback {
			fmt.Fprintf(&b, "- %s\n", improvement)
		}
	}

	return capability.GenerationRequest{
		Prompt:            b.String(),
		SystemInstruction: fmt.Sprintf("You generate production-quality %s artifacts.", step.Kind),
		Config: capability.GenerationConfig{
			Temperature: 0.7,
			MaxTokens:   pctx.Config.TokenBudget,
		},
	}
}
