package collection

// Catalog field names. Semantic fields feed at least one collection's indexed
// content; metadata fields are stored alongside vectors but never embedded.
const (
	FieldName          = "name"
	FieldTagline       = "tagline"
	FieldDescription   = "description"
	FieldCategories    = "categories"
	FieldFunctionality = "functionality"
	FieldFeatures      = "features"
	FieldIntegrations  = "integrations"
	FieldUseCases      = "useCases"
	FieldIndustries    = "industries"
	FieldUserTypes     = "userTypes"
	FieldInterfaceType = "interfaceType"
	FieldPlatforms     = "platforms"
	FieldDeployment    = "deployment"

	FieldPricing          = "pricing"
	FieldWebsite          = "website"
	FieldLogoURL          = "logoUrl"
	FieldDocumentationURL = "documentationUrl"
)

// semanticFields is the exhaustive collection → owned fields table.
var semanticFields = map[Collection][]string{
	Tools:         {FieldName, FieldTagline, FieldDescription, FieldCategories},
	Functionality: {FieldFunctionality, FieldFeatures, FieldIntegrations},
	UseCases:      {FieldUseCases, FieldIndustries, FieldUserTypes},
	Interface:     {FieldInterfaceType, FieldPlatforms, FieldDeployment},
}

var metadataFields = []string{
	FieldPricing, FieldWebsite, FieldLogoURL, FieldDocumentationURL,
}

// SemanticFields returns the catalog fields whose content feeds collection c.
func (c Collection) SemanticFields() []string {
	fields := semanticFields[c]
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// MetadataFields returns the fields stored with vectors but never embedded.
func MetadataFields() []string {
	out := make([]string, len(metadataFields))
	copy(out, metadataFields)
	return out
}

// AllFields returns every catalog-managed field, semantic first, in a stable
// order. Bookkeeping fields (identity, approval, timestamps, sync state) are
// deliberately not part of this registry.
func AllFields() []string {
	out := make([]string, 0, 16)
	for _, c := range All() {
		out = append(out, semanticFields[c]...)
	}
	out = append(out, metadataFields...)
	return out
}

// Owners returns the collections whose indexed content depends on field.
// Metadata-only and unknown fields have no owners.
func Owners(field string) []Collection {
	var out []Collection
	for _, c := range All() {
		for _, f := range semanticFields[c] {
			if f == field {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// IsSemanticField reports whether field belongs to any collection's semantic set.
func IsSemanticField(field string) bool {
	return len(Owners(field)) > 0
}
