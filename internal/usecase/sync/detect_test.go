package sync

import (
	"reflect"
	"testing"

	"github.com/kailas-cloud/toolsync/internal/domain/collection"
)

func TestDetectChangedFields_SingleField(t *testing.T) {
	prev := makeTool(t)
	next := prev.Clone()
	next.Name = "Renamed Tool"

	changed := DetectChangedFields(prev, next)
	if !reflect.DeepEqual(changed, []string{collection.FieldName}) {
		t.Errorf("expected [name], got %v", changed)
	}
}

func TestDetectChangedFields_NoChanges(t *testing.T) {
	prev := makeTool(t)
	next := prev.Clone()

	if changed := DetectChangedFields(prev, next); len(changed) != 0 {
		t.Errorf("expected no changes, got %v", changed)
	}
}

func TestDetectChangedFields_NormalizedEquality(t *testing.T) {
	prev := makeTool(t)
	next := prev.Clone()
	next.Name = "  TOOL ONE  "
	next.Platforms = []string{"macOS", "Linux"}

	if changed := DetectChangedFields(prev, next); len(changed) != 0 {
		t.Errorf("case and order differences are not changes, got %v", changed)
	}
}

func TestDetectChangedFields_IgnoresBookkeeping(t *testing.T) {
	prev := makeTool(t)
	next := prev.Clone()
	next.Approved = false
	next.Slug = "renamed-slug"
	next.Sync.OverallStatus = "failed"

	if changed := DetectChangedFields(prev, next); len(changed) != 0 {
		t.Errorf("identity, approval and sync state are not catalog fields, got %v", changed)
	}
}

func TestAffectedCollections_Ownership(t *testing.T) {
	cases := []struct {
		name    string
		changed []string
		want    []collection.Collection
	}{
		{
			name:    "name maps to tools",
			changed: []string{collection.FieldName},
			want:    []collection.Collection{collection.Tools},
		},
		{
			name:    "metadata fields map to nothing",
			changed: []string{collection.FieldPricing, collection.FieldWebsite},
			want:    nil,
		},
		{
			name:    "cross-collection change",
			changed: []string{collection.FieldName, collection.FieldFunctionality, collection.FieldIndustries},
			want:    []collection.Collection{collection.Tools, collection.Functionality, collection.UseCases},
		},
		{
			name:    "duplicate owners deduplicated",
			changed: []string{collection.FieldName, collection.FieldTagline, collection.FieldDescription},
			want:    []collection.Collection{collection.Tools},
		},
		{
			name:    "all semantic groups",
			changed: []string{collection.FieldCategories, collection.FieldFeatures, collection.FieldUserTypes, collection.FieldDeployment},
			want:    collection.All(),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AffectedCollections(tc.changed)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestIsMetadataOnlyChange(t *testing.T) {
	if !IsMetadataOnlyChange([]string{collection.FieldPricing, collection.FieldLogoURL}) {
		t.Error("pricing and logoUrl are metadata-only")
	}
	if IsMetadataOnlyChange([]string{collection.FieldPricing, collection.FieldName}) {
		t.Error("a semantic field in the set disqualifies metadata-only")
	}
	if !IsMetadataOnlyChange(nil) {
		t.Error("empty change set is vacuously metadata-only")
	}
}

func TestHasSemanticChanges(t *testing.T) {
	if HasSemanticChanges(nil) {
		t.Error("empty change set has no semantic changes")
	}
	if HasSemanticChanges([]string{collection.FieldWebsite}) {
		t.Error("metadata-only set has no semantic changes")
	}
	if !HasSemanticChanges([]string{collection.FieldInterfaceType}) {
		t.Error("interfaceType is semantic")
	}
}

func TestClassifyChanges(t *testing.T) {
	prev := makeTool(t)
	next := prev.Clone()
	next.UseCases = []string{"Team planning", "Roadmapping"}
	next.Pricing = "free"

	classes := ClassifyChanges(prev, next)
	if classes[collection.UseCases] != ChangeSemantic {
		t.Errorf("expected usecases semantic, got %s", classes[collection.UseCases])
	}
	for _, c := range []collection.Collection{collection.Tools, collection.Functionality, collection.Interface} {
		if classes[c] != ChangeNone {
			t.Errorf("expected %s untouched, got %s", c, classes[c])
		}
	}
}
