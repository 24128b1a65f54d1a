package capability

// ArtifactKind identifies a named unit of generated output held in the
// pipeline context (e.g. markup, style, behavior). Artifact keys are
// disjoint per pipeline type.
type ArtifactKind string

const (
	KindMarkup   ArtifactKind = "markup"
	KindStyle    ArtifactKind = "style"
	KindBehavior ArtifactKind = "behavior"
	KindCopy     ArtifactKind = "copy"
)

// String returns the string representation of the ArtifactKind.
func (k ArtifactKind) String() string {
	return string(k)
}

// IsValid checks if the kind is one of the known artifact kinds.
func (k ArtifactKind) IsValid() bool {
	switch k {
	case KindMarkup, KindStyle, KindBehavior, KindCopy:
		return true
	default:
		return false
	}
}
