package sync

import (
	"github.com/kailas-cloud/toolsync/internal/domain/collection"
	"github.com/kailas-cloud/toolsync/internal/domain/tool"
)

// DetectChangedFields compares two versions of a tool over the catalog field
// registry and returns the names whose normalized values differ. Identity,
// timestamps and the sync sub-record are not part of the registry and can
// never be reported.
func DetectChangedFields(prev, next *tool.Tool) []string {
	var changed []string
	for _, f := range collection.AllFields() {
		if normalizeValue(prev.FieldValue(f)) != normalizeValue(next.FieldValue(f)) {
			changed = append(changed, f)
		}
	}
	return changed
}

// AffectedCollections maps changed field names through the ownership table,
// deduplicated, in collection declaration order. Metadata-only fields map to
// nothing.
func AffectedCollections(changed []string) []collection.Collection {
	seen := make(map[collection.Collection]bool, len(collection.All()))
	for _, f := range changed {
		for _, c := range collection.Owners(f) {
			seen[c] = true
		}
	}
	var out []collection.Collection
	for _, c := range collection.All() {
		if seen[c] {
			out = append(out, c)
		}
	}
	return out
}

// IsMetadataOnlyChange is true iff no changed field belongs to any
// collection's semantic set. Vacuously true for an empty change set.
func IsMetadataOnlyChange(changed []string) bool {
	for _, f := range changed {
		if collection.IsSemanticField(f) {
			return false
		}
	}
	return true
}

// HasSemanticChanges is false for an empty change set, otherwise the
// negation of IsMetadataOnlyChange.
func HasSemanticChanges(changed []string) bool {
	if len(changed) == 0 {
		return false
	}
	return !IsMetadataOnlyChange(changed)
}

// ChangeClass labels the effect of a change set on one collection.
type ChangeClass string

const (
	// ChangeSemantic means the collection's indexed content is affected.
	ChangeSemantic ChangeClass = "semantic"
	// ChangeNone means the collection is untouched.
	ChangeNone ChangeClass = "none"
)

// ClassifyChanges compares two versions and labels every collection.
func ClassifyChanges(prev, next *tool.Tool) map[collection.Collection]ChangeClass {
	affected := AffectedCollections(DetectChangedFields(prev, next))
	out := make(map[collection.Collection]ChangeClass, len(collection.All()))
	for _, c := range collection.All() {
		out[c] = ChangeNone
	}
	for _, c := range affected {
		out[c] = ChangeSemantic
	}
	return out
}
