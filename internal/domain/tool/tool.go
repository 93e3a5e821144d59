// Package tool defines the catalog entry aggregate. Tools are created and
// mutated by the catalog layer; the sync engine only reads them and writes
// the embedded sync metadata sub-record.
package tool

import (
	"fmt"
	"regexp"
	"time"

	"github.com/kailas-cloud/toolsync/internal/domain"
	"github.com/kailas-cloud/toolsync/internal/domain/collection"
	domsync "github.com/kailas-cloud/toolsync/internal/domain/sync"
)

var (
	idRegex   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// Tool is a curated catalog entry.
type Tool struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`

	Name          string   `json:"name"`
	Tagline       string   `json:"tagline,omitempty"`
	Description   string   `json:"description,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	Functionality []string `json:"functionality,omitempty"`
	Features      []string `json:"features,omitempty"`
	Integrations  []string `json:"integrations,omitempty"`
	UseCases      []string `json:"useCases,omitempty"`
	Industries    []string `json:"industries,omitempty"`
	UserTypes     []string `json:"userTypes,omitempty"`
	InterfaceType string   `json:"interfaceType,omitempty"`
	Platforms     []string `json:"platforms,omitempty"`
	Deployment    []string `json:"deployment,omitempty"`

	Pricing          string `json:"pricing,omitempty"`
	Website          string `json:"website,omitempty"`
	LogoURL          string `json:"logoUrl,omitempty"`
	DocumentationURL string `json:"documentationUrl,omitempty"`

	Approved bool            `json:"approved"`
	Sync     domsync.Metadata `json:"syncMetadata"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New validates identity fields and creates a Tool with fresh sync metadata
// (every collection pending, overall pending, not approved).
func New(id, slug, name string, now time.Time) (*Tool, error) {
	if err := ValidateIdentity(id, slug, name); err != nil {
		return nil, err
	}
	return &Tool{
		ID:        id,
		Slug:      slug,
		Name:      name,
		Sync:      domsync.NewMetadata(now),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidateIdentity checks the invariants the sync engine relies on.
func ValidateIdentity(id, slug, name string) error {
	if id == "" || len(id) > 128 || !idRegex.MatchString(id) {
		return fmt.Errorf("tool ID %q must be alphanumeric with underscores and hyphens, 1-128 chars: %w",
			id, domain.ErrInvalidToolData)
	}
	if slug == "" || len(slug) > 128 || !slugRegex.MatchString(slug) {
		return fmt.Errorf("tool slug %q must be lowercase kebab-case, 1-128 chars: %w",
			slug, domain.ErrInvalidToolData)
	}
	if name == "" {
		return fmt.Errorf("tool name is required: %w", domain.ErrInvalidToolData)
	}
	return nil
}

// FieldValue returns the value of the named catalog field as a string or a
// []string. Unknown names (including bookkeeping fields) return nil, so the
// change detector and the hasher can never observe identity, timestamps or
// the sync sub-record itself.
func (t *Tool) FieldValue(name string) any {
	switch name {
	case collection.FieldName:
		return t.Name
	case collection.FieldTagline:
		return t.Tagline
	case collection.FieldDescription:
		return t.Description
	case collection.FieldCategories:
		return t.Categories
	case collection.FieldFunctionality:
		return t.Functionality
	case collection.FieldFeatures:
		return t.Features
	case collection.FieldIntegrations:
		return t.Integrations
	case collection.FieldUseCases:
		return t.UseCases
	case collection.FieldIndustries:
		return t.Industries
	case collection.FieldUserTypes:
		return t.UserTypes
	case collection.FieldInterfaceType:
		return t.InterfaceType
	case collection.FieldPlatforms:
		return t.Platforms
	case collection.FieldDeployment:
		return t.Deployment
	case collection.FieldPricing:
		return t.Pricing
	case collection.FieldWebsite:
		return t.Website
	case collection.FieldLogoURL:
		return t.LogoURL
	case collection.FieldDocumentationURL:
		return t.DocumentationURL
	}
	return nil
}

// Clone returns a deep copy (slices and the sync collection map included).
func (t *Tool) Clone() *Tool {
	c := *t
	c.Categories = cloneSlice(t.Categories)
	c.Functionality = cloneSlice(t.Functionality)
	c.Features = cloneSlice(t.Features)
	c.Integrations = cloneSlice(t.Integrations)
	c.UseCases = cloneSlice(t.UseCases)
	c.Industries = cloneSlice(t.Industries)
	c.UserTypes = cloneSlice(t.UserTypes)
	c.Platforms = cloneSlice(t.Platforms)
	c.Deployment = cloneSlice(t.Deployment)
	if t.Sync.Collections != nil {
		cols := make(map[collection.Collection]domsync.CollectionStatus, len(t.Sync.Collections))
		for k, v := range t.Sync.Collections {
			cols[k] = v
		}
		c.Sync.Collections = cols
	}
	c.Sync.LastModifiedFields = cloneSlice(t.Sync.LastModifiedFields)
	return &c
}

func cloneSlice(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
