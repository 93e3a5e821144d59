package catalog

import "github.com/kailas-cloud/toolsync/internal/domain/tool"

// CreateInput carries the initial catalog payload of a new tool. Tools are
// created unapproved; nothing reaches the search indexes until approval.
type CreateInput struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`

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
}

func (in *CreateInput) applyTo(t *tool.Tool) {
	t.Tagline = in.Tagline
	t.Description = in.Description
	t.Categories = in.Categories
	t.Functionality = in.Functionality
	t.Features = in.Features
	t.Integrations = in.Integrations
	t.UseCases = in.UseCases
	t.Industries = in.Industries
	t.UserTypes = in.UserTypes
	t.InterfaceType = in.InterfaceType
	t.Platforms = in.Platforms
	t.Deployment = in.Deployment
	t.Pricing = in.Pricing
	t.Website = in.Website
	t.LogoURL = in.LogoURL
	t.DocumentationURL = in.DocumentationURL
}

// UpdateInput is a partial catalog update. Nil fields are left untouched, so
// callers can patch a single field without resending the document.
type UpdateInput struct {
	Name          *string   `json:"name,omitempty"`
	Tagline       *string   `json:"tagline,omitempty"`
	Description   *string   `json:"description,omitempty"`
	Categories    *[]string `json:"categories,omitempty"`
	Functionality *[]string `json:"functionality,omitempty"`
	Features      *[]string `json:"features,omitempty"`
	Integrations  *[]string `json:"integrations,omitempty"`
	UseCases      *[]string `json:"useCases,omitempty"`
	Industries    *[]string `json:"industries,omitempty"`
	UserTypes     *[]string `json:"userTypes,omitempty"`
	InterfaceType *string   `json:"interfaceType,omitempty"`
	Platforms     *[]string `json:"platforms,omitempty"`
	Deployment    *[]string `json:"deployment,omitempty"`

	Pricing          *string `json:"pricing,omitempty"`
	Website          *string `json:"website,omitempty"`
	LogoURL          *string `json:"logoUrl,omitempty"`
	DocumentationURL *string `json:"documentationUrl,omitempty"`
}

func (in *UpdateInput) applyTo(t *tool.Tool) {
	if in.Name != nil {
		t.Name = *in.Name
	}
	if in.Tagline != nil {
		t.Tagline = *in.Tagline
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Categories != nil {
		t.Categories = *in.Categories
	}
	if in.Functionality != nil {
		t.Functionality = *in.Functionality
	}
	if in.Features != nil {
		t.Features = *in.Features
	}
	if in.Integrations != nil {
		t.Integrations = *in.Integrations
	}
	if in.UseCases != nil {
		t.UseCases = *in.UseCases
	}
	if in.Industries != nil {
		t.Industries = *in.Industries
	}
	if in.UserTypes != nil {
		t.UserTypes = *in.UserTypes
	}
	if in.InterfaceType != nil {
		t.InterfaceType = *in.InterfaceType
	}
	if in.Platforms != nil {
		t.Platforms = *in.Platforms
	}
	if in.Deployment != nil {
		t.Deployment = *in.Deployment
	}
	if in.Pricing != nil {
		t.Pricing = *in.Pricing
	}
	if in.Website != nil {
		t.Website = *in.Website
	}
	if in.LogoURL != nil {
		t.LogoURL = *in.LogoURL
	}
	if in.DocumentationURL != nil {
		t.DocumentationURL = *in.DocumentationURL
	}
}
