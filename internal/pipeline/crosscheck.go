package pipeline

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/loom-ai/loom/internal/capability"
)

func sortedNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CrossCheckConfig controls the final consistency pass.
type CrossCheckConfig struct {
	// Blocking escalates cross-layer issues from warnings to a pipeline
	// failure. Non-blocking by default.
	Blocking bool

	// MinDensity is the minimum structural element count per artifact
	// kind. Kinds missing from the map are not density-checked.
	MinDensity map[capability.ArtifactKind]int
}

// DefaultCrossCheckConfig returns the standard non-blocking configuration.
func DefaultCrossCheckConfig() CrossCheckConfig {
	return CrossCheckConfig{
		Blocking: false,
		MinDensity: map[capability.ArtifactKind]int{
			capability.KindMarkup: 3,
			capability.KindStyle:  2,
		},
	}
}

// CrossLayerValidator performs checks spanning multiple completed
// artifacts that no single step can verify alone: identifiers referenced
// by a later artifact must exist in an earlier one, shared variables must
// be both declared and used, and each artifact must clear a minimum
// structural density.
type CrossLayerValidator struct {
	config CrossCheckConfig
}

// NewCrossLayerValidator creates a CrossLayerValidator.
func NewCrossLayerValidator(config CrossCheckConfig) *CrossLayerValidator {
	return &CrossLayerValidator{config: config}
}

var (
	cssIDRefPattern  = regexp.MustCompile(`#([A-Za-z][\w-]*)\s*[{,]`)
	cssVarUsePattern = regexp.MustCompile(`var\(\s*(--[\w-]+)\s*[,)]`)
	elementPattern   = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9]*)[\s>]`)
	rulePattern      = regexp.MustCompile(`[^{}]+\{`)
)

// Validate runs all cross-layer checks over the completed artifacts and
// returns ok plus the issue list. Issues are non-fatal unless the
// validator is configured as blocking; the caller surfaces them on the
// final pipeline result either way.
func (v *CrossLayerValidator) Validate(pctx *Context) (bool, []capability.Issue) {
	var issues []capability.Issue

	issues = append(issues, v.checkIdentifierReferences(pctx)...)
	issues = append(issues, v.checkSharedVariables(pctx)...)
	issues = append(issues, v.checkStructuralDensity(pctx)...)

	return len(issues) == 0, issues
}

// Blocking reports whether issues from this validator abort the pipeline.
func (v *CrossLayerValidator) Blocking() bool {
	return v.config.Blocking
}

// checkIdentifierReferences verifies that ids referenced from style and
// behavior artifacts exist in the markup.
func (v *CrossLayerValidator) checkIdentifierReferences(pctx *Context) []capability.Issue {
	markup, hasMarkup := pctx.Artifacts[capability.KindMarkup]
	if !hasMarkup {
		return nil
	}

	declared := make(map[string]struct{})
	for _, id := range ComputeDigest(capability.KindMarkup, markup).Identifiers {
		declared[id] = struct{}{}
	}

	var issues []capability.Issue
	check := func(kind capability.ArtifactKind, refs []string) {
		for _, ref := range refs {
			if _, ok := declared[ref]; !ok {
				issues = append(issues, capability.Issue{
					Severity:   capability.SeverityWarning,
					Message:    fmt.Sprintf("%s references id %q not present in markup", kind, ref),
					Suggestion: fmt.Sprintf("add an element with id=%q or drop the reference", ref),
				})
			}
		}
	}

	if style, ok := pctx.Artifacts[capability.KindStyle]; ok {
		check(capability.KindStyle, dedupe(extractGroup(cssIDRefPattern, style, 1)))
	}
	if behavior, ok := pctx.Artifacts[capability.KindBehavior]; ok {
		check(capability.KindBehavior, dedupe(extractIDRefs(behavior)))
	}

	return issues
}

// checkSharedVariables flags style custom properties that are declared but
// never used, or used but never declared.
func (v *CrossLayerValidator) checkSharedVariables(pctx *Context) []capability.Issue {
	style, ok := pctx.Artifacts[capability.KindStyle]
	if !ok {
		return nil
	}

	declared := make(map[string]struct{})
	for _, name := range extractGroup(cssVarDeclPattern, style, 1) {
		declared[name] = struct{}{}
	}
	used := make(map[string]struct{})
	for _, name := range extractGroup(cssVarUsePattern, style, 1) {
		used[name] = struct{}{}
	}

	var issues []capability.Issue
	for _, name := range sortedNames(declared) {
		if _, ok := used[name]; !ok {
			issues = append(issues, capability.Issue{
				Severity: capability.SeverityInfo,
				Message:  fmt.Sprintf("style variable %s declared but never used", name),
			})
		}
	}
	for _, name := range sortedNames(used) {
		if _, ok := declared[name]; !ok {
			issues = append(issues, capability.Issue{
				Severity:   capability.SeverityWarning,
				Message:    fmt.Sprintf("style variable %s used but never declared", name),
				Suggestion: fmt.Sprintf("declare %s on :root", name),
			})
		}
	}

	return issues
}

// checkStructuralDensity applies the minimum element-count heuristics.
func (v *CrossLayerValidator) checkStructuralDensity(pctx *Context) []capability.Issue {
	var issues []capability.Issue

	for _, kind := range sortedKinds(v.config.MinDensity) {
		minimum := v.config.MinDensity[kind]
		text, ok := pctx.Artifacts[kind]
		if !ok {
			continue
		}

		count := 0
		switch kind {
		case capability.KindMarkup:
			count = len(elementPattern.FindAllString(text, -1))
		case capability.KindStyle:
			count = len(rulePattern.FindAllString(text, -1))
		default:
			count = len(text)
		}

		if count < minimum {
			issues = append(issues, capability.Issue{
				Severity: capability.SeverityWarning,
				Message:  fmt.Sprintf("%s artifact too sparse: %d structural elements, minimum %d", kind, count, minimum),
			})
		}
	}

	return issues
}
