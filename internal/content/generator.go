// Package content assembles the per-collection text profiles fed to the
// embedding provider and the stored payload fields returned with search hits.
package content

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/toolsync/internal/domain"
	"github.com/kailas-cloud/toolsync/internal/domain/collection"
	"github.com/kailas-cloud/toolsync/internal/domain/tool"
)

// Generator builds collection-specific embedding text from a tool's owned
// fields. Each collection gets a different textual profile so the four
// indexes answer different kinds of queries over the same catalog entry.
type Generator struct{}

// NewGenerator creates a content generator.
func NewGenerator() *Generator { return &Generator{} }

// Generate returns the embedding text for one collection. The tools profile
// always has content (name is mandatory); the other profiles fail when every
// owned field is empty, since embedding an empty string would index noise.
func (g *Generator) Generate(t *tool.Tool, c collection.Collection) (string, error) {
	if t == nil {
		return "", fmt.Errorf("content: nil tool: %w", domain.ErrInvalidToolData)
	}

	var b builder
	switch c {
	case collection.Tools:
		b.line(t.Name)
		b.line(t.Tagline)
		b.line(t.Description)
		b.labeled("Categories", t.Categories)
	case collection.Functionality:
		b.labeled("Functionality", t.Functionality)
		b.labeled("Features", t.Features)
		b.labeled("Integrations", t.Integrations)
	case collection.UseCases:
		b.labeled("Use cases", t.UseCases)
		b.labeled("Industries", t.Industries)
		b.labeled("User types", t.UserTypes)
	case collection.Interface:
		if t.InterfaceType != "" {
			b.line("Interface: " + t.InterfaceType)
		}
		b.labeled("Platforms", t.Platforms)
		b.labeled("Deployment", t.Deployment)
	default:
		return "", fmt.Errorf("content: %q: %w", c, domain.ErrUnknownCollection)
	}

	text := b.String()
	if text == "" {
		return "", fmt.Errorf("content: tool %s has no %s content: %w", t.ID, c, domain.ErrInvalidToolData)
	}
	return text, nil
}

// Payload returns the fields stored next to every vector and echoed on
// search hits. Identical across collections; a metadata-only change rewrites
// exactly this map. Every key is always present — a cleared field is written
// as the empty string so the partial HSET overwrites the stale value.
func (g *Generator) Payload(t *tool.Tool) map[string]string {
	return map[string]string{
		"tool_id":           t.ID,
		"slug":              t.Slug,
		"name":              t.Name,
		"tagline":           t.Tagline,
		"categories":        strings.Join(t.Categories, ","),
		"pricing":           t.Pricing,
		"website":           t.Website,
		"logo_url":          t.LogoURL,
		"documentation_url": t.DocumentationURL,
	}
}

// builder accumulates non-empty profile lines.
type builder struct {
	lines []string
}

func (b *builder) line(s string) {
	s = strings.TrimSpace(s)
	if s != "" {
		b.lines = append(b.lines, s)
	}
}

func (b *builder) labeled(label string, values []string) {
	vals := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			vals = append(vals, v)
		}
	}
	if len(vals) > 0 {
		b.lines = append(b.lines, label+": "+strings.Join(vals, ", "))
	}
}

func (b *builder) String() string {
	return strings.Join(b.lines, "\n")
}
