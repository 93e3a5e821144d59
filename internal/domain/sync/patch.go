package sync

import (
	"time"

	"github.com/kailas-cloud/toolsync/internal/domain/collection"
)

// Patch is an ordered set of dot-path writes into the sync metadata
// sub-record. The primary-store adapter translates each op into a partial
// document update, so concurrent writers touching different collections
// never rewrite each other's state.
type Patch struct {
	ops []PatchOp
}

// PatchOp is a single dot-path assignment relative to the sync metadata root.
type PatchOp struct {
	Path  string
	Value any
}

// NewPatch creates an empty patch.
func NewPatch() *Patch { return &Patch{} }

// Set appends a dot-path assignment.
func (p *Patch) Set(path string, v any) *Patch {
	p.ops = append(p.ops, PatchOp{Path: path, Value: v})
	return p
}

// Ops returns the assignments in insertion order.
func (p *Patch) Ops() []PatchOp { return p.ops }

// Empty reports whether the patch carries no assignments.
func (p *Patch) Empty() bool { return len(p.ops) == 0 }

// Paths relative to the sync metadata root.
const (
	PathOverallStatus      = "overallStatus"
	PathLastModifiedFields = "lastModifiedFields"
	PathUpdatedAt          = "updatedAt"
)

// CollectionPath builds the dot path of one field of one collection's record.
func CollectionPath(c collection.Collection, field string) string {
	return "collections." + string(c) + "." + field
}

// SetCollectionStatus replaces the full per-collection record in one patch.
func (p *Patch) SetCollectionStatus(c collection.Collection, cs CollectionStatus) *Patch {
	return p.Set("collections."+string(c), cs)
}

// SetOverallStatus assigns the explicit overall status.
func (p *Patch) SetOverallStatus(s Status) *Patch {
	return p.Set(PathOverallStatus, s)
}

// SetLastModifiedFields records the most recent change set.
func (p *Patch) SetLastModifiedFields(fields []string) *Patch {
	return p.Set(PathLastModifiedFields, fields)
}

// Touch bumps the metadata update timestamp.
func (p *Patch) Touch(now time.Time) *Patch {
	return p.Set(PathUpdatedAt, now)
}
