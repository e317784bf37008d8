package model

import "strings"

// Provenance records how a spring option entered the registry.
type Provenance string

const (
	ProvenanceKnown      Provenance = "known"
	ProvenanceDiscovered Provenance = "discovered"
)

// Scope limits a spring option to a brand and model family. Year is
// informational; registry keys ignore it.
type Scope struct {
	Brand       string `json:"brand" yaml:"brand"`
	ModelFamily string `json:"model_family" yaml:"model_family"`
	Year        int    `json:"year,omitempty" yaml:"year,omitempty"`
}

// ModificationSet is the change a spring option applies to a specification.
// Set holds scalar overwrites keyed by specification path (for example
// "track.length_mm"); AddFeatures is unioned into the feature list.
type ModificationSet struct {
	Set         map[string]string `json:"set,omitempty" yaml:"set,omitempty"`
	AddFeatures []string          `json:"add_features,omitempty" yaml:"add_features,omitempty"`
}

// Empty reports whether the set changes nothing.
func (m ModificationSet) Empty() bool {
	return len(m.Set) == 0 && len(m.AddFeatures) == 0
}

// Clone returns a deep copy.
func (m ModificationSet) Clone() ModificationSet {
	out := ModificationSet{}
	if m.Set != nil {
		out.Set = make(map[string]string, len(m.Set))
		for k, v := range m.Set {
			out.Set[k] = v
		}
	}
	if m.AddFeatures != nil {
		out.AddFeatures = append([]string(nil), m.AddFeatures...)
	}
	return out
}

// SpringOption is a named seasonal customization bundle.
type SpringOption struct {
	Name          string          `json:"name"`
	Scope         Scope           `json:"scope"`
	Modifications ModificationSet `json:"modifications"`
	Confidence    float64         `json:"confidence"`
	Provenance    Provenance      `json:"provenance"`
}

// RegistryKey returns the normalized (brand, model family, name) upsert key.
func (o SpringOption) RegistryKey() string {
	return OptionKey(o.Scope, o.Name)
}

// KeyPart normalizes one component of a registry key: whitespace collapsed,
// upper-cased.
func KeyPart(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// OptionKey builds the registry key for a scope and option name.
func OptionKey(scope Scope, name string) string {
	return KeyPart(scope.Brand) + "|" + KeyPart(scope.ModelFamily) + "|" + KeyPart(name)
}
