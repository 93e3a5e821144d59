// Package collection defines the fixed set of derived search collections and
// the static ownership table mapping catalog fields to the collections whose
// indexed content depends on them.
package collection

// Collection identifies one of the derived search indexes. The set is fixed
// at compile time; each collection owns a subset of the tool's semantic
// fields and an embedding profile.
type Collection string

const (
	// Tools is the general-purpose index over name, tagline, description and categories.
	Tools Collection = "tools"
	// Functionality indexes what the tool does: functionality, features, integrations.
	Functionality Collection = "functionality"
	// UseCases indexes who uses the tool and for what: use cases, industries, user types.
	UseCases Collection = "usecases"
	// Interface indexes how the tool is operated: interface type, platforms, deployment.
	Interface Collection = "interface"
)

// All returns every collection in declaration order.
func All() []Collection {
	return []Collection{Tools, Functionality, UseCases, Interface}
}

// Parse returns the collection for name, or false for anything outside the fixed set.
func Parse(name string) (Collection, bool) {
	c := Collection(name)
	if _, ok := semanticFields[c]; !ok {
		return "", false
	}
	return c, true
}

// String returns the collection name.
func (c Collection) String() string { return string(c) }

// Profile selects the embedding profile for a collection's content.
type Profile string

const (
	// ProfileGeneral embeds broad descriptive text.
	ProfileGeneral Profile = "general"
	// ProfileFunctional embeds capability-oriented text.
	ProfileFunctional Profile = "functional"
	// ProfileScenario embeds audience and use-case text.
	ProfileScenario Profile = "scenario"
	// ProfileTechnical embeds interface and deployment text.
	ProfileTechnical Profile = "technical"
)

var profiles = map[Collection]Profile{
	Tools:         ProfileGeneral,
	Functionality: ProfileFunctional,
	UseCases:      ProfileScenario,
	Interface:     ProfileTechnical,
}

// VectorProfile returns the embedding profile identifier for c.
func (c Collection) VectorProfile() Profile { return profiles[c] }
