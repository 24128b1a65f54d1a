package pipeline

import (
	"regexp"

	"github.com/loom-ai/loom/internal/capability"
)

// Digest is a compressed, re-derivable summary of one artifact: the
// identifiers, declared variable names, and section markers later stages
// need, without the full text. Passing digests instead of artifacts keeps
// downstream prompts small.
type Digest struct {
	Kind        capability.ArtifactKind `json:"kind"`
	Identifiers []string                `json:"identifiers,omitempty"`
	Variables   []string                `json:"variables,omitempty"`
	Sections    []string                `json:"sections,omitempty"`
}

// Clone returns an independent copy of the digest.
func (d Digest) Clone() Digest {
	clone := Digest{Kind: d.Kind}
	clone.Identifiers = append(clone.Identifiers, d.Identifiers...)
	clone.Variables = append(clone.Variables, d.Variables...)
	clone.Sections = append(clone.Sections, d.Sections...)
	return clone
}

// IsEmpty reports whether the digest extracted nothing.
func (d Digest) IsEmpty() bool {
	return len(d.Identifiers) == 0 && len(d.Variables) == 0 && len(d.Sections) == 0
}

var (
	markupIDPattern    = regexp.MustCompile(`\bid="([A-Za-z][\w-]*)"`)
	markupClassPattern = regexp.MustCompile(`\bclass="([^"]+)"`)
	sectionTagPattern  = regexp.MustCompile(`<(header|nav|main|section|article|aside|footer|form)\b`)
	cssSelectorPattern = regexp.MustCompile(`[#.]([A-Za-z][\w-]*)\s*[{,]`)
	cssVarDeclPattern  = regexp.MustCompile(`(--[\w-]+)\s*:`)
	jsNamePattern      = regexp.MustCompile(`\b(?:function|const|let|var|class)\s+([A-Za-z_$][\w$]*)`)
	jsIDRefPattern     = regexp.MustCompile(`getElementById\(\s*['"]([\w-]+)['"]\s*\)|querySelector(?:All)?\(\s*['"]#([\w-]+)['"]\s*\)`)
)

// ComputeDigest derives the digest for one artifact. It is a pure function
// of the full text: callers must never patch a digest incrementally.
func ComputeDigest(kind capability.ArtifactKind, text string) Digest {
	digest := Digest{Kind: kind}

	switch kind {
	case capability.KindMarkup:
		digest.Identifiers = dedupe(extractGroup(markupIDPattern, text, 1))
		digest.Variables = dedupe(splitMatches(extractGroup(markupClassPattern, text, 1)))
		digest.Sections = dedupe(extractGroup(sectionTagPattern, text, 1))

	case capability.KindStyle:
		digest.Identifiers = dedupe(extractGroup(cssSelectorPattern, text, 1))
		digest.Variables = dedupe(extractGroup(cssVarDeclPattern, text, 1))

	case capability.KindBehavior:
		digest.Variables = dedupe(extractGroup(jsNamePattern, text, 1))
		digest.Identifiers = dedupe(extractIDRefs(text))

	default:
		digest.Sections = dedupe(extractGroup(sectionTagPattern, text, 1))
	}

	return digest
}

// extractGroup returns the given capture group from every match.
func extractGroup(pattern *regexp.Regexp, text string, group int) []string {
	matches := pattern.FindAllStringSubmatch(text, -1)
	values := make([]string, 0, len(matches))
	for _, match := range matches {
		if group < len(match) && match[group] != "" {
			values = append(values, match[group])
		}
	}
	return values
}

// extractIDRefs collects element ids referenced from script text, covering
// both getElementById and '#id' selector forms.
func extractIDRefs(text string) []string {
	matches := jsIDRefPattern.FindAllStringSubmatch(text, -1)
	values := make([]string, 0, len(matches))
	for _, match := range matches {
		if match[1] != "" {
			values = append(values, match[1])
		} else if match[2] != "" {
			values = append(values, match[2])
		}
	}
	return values
}

// splitMatches splits whitespace-separated match values (class lists) into
// individual tokens.
func splitMatches(values []string) []string {
	var tokens []string
	for _, value := range values {
		start := -1
		for i := 0; i <= len(value); i++ {
			if i == len(value) || value[i] == ' ' || value[i] == '\t' {
				if start >= 0 {
					tokens = append(tokens, value[start:i])
					start = -1
				}
				continue
			}
			if start < 0 {
				start = i
			}
		}
	}
	return tokens
}

// dedupe removes duplicates preserving first-occurrence order.
func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
