package model

import (
	"sort"
	"strings"
)

// Variant dimensions narrowed by variant selection.
const (
	DimEngine  = "engine"
	DimTrack   = "track"
	DimStarter = "starter"
	DimDisplay = "display"
)

// Dimensions lists the variant dimensions in processing order.
var Dimensions = []string{DimEngine, DimTrack, DimStarter, DimDisplay}

// OptionDescriptor describes a single selectable option. Only the attributes
// relevant to the option's dimension are set.
type OptionDescriptor struct {
	Label string `json:"label" yaml:"label"`

	// Engine
	DisplacementCC int    `json:"displacement_cc,omitempty" yaml:"displacement_cc,omitempty"`
	EngineType     string `json:"engine_type,omitempty" yaml:"engine_type,omitempty"`
	HorsePower     int    `json:"horsepower,omitempty" yaml:"horsepower,omitempty"`

	// Track
	LengthMM int     `json:"length_mm,omitempty" yaml:"length_mm,omitempty"`
	WidthMM  int     `json:"width_mm,omitempty" yaml:"width_mm,omitempty"`
	LugMM    float64 `json:"lug_mm,omitempty" yaml:"lug_mm,omitempty"`

	// Display
	SizeIn float64 `json:"size_in,omitempty" yaml:"size_in,omitempty"`
}

// OptionSet maps option ids to descriptors and names the default option.
type OptionSet struct {
	Default string                      `json:"default,omitempty" yaml:"default,omitempty"`
	Options map[string]OptionDescriptor `json:"options,omitempty" yaml:"options,omitempty"`
}

// IDs returns the option ids in ascending order.
func (s OptionSet) IDs() []string {
	ids := make([]string, 0, len(s.Options))
	for id := range s.Options {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultID returns the declared default, or the lowest id when the
// declared default is missing or unknown. Empty sets return "".
func (s OptionSet) DefaultID() string {
	if _, ok := s.Options[s.Default]; ok && s.Default != "" {
		return s.Default
	}
	ids := s.IDs()
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// Clone returns a deep copy of the set.
func (s OptionSet) Clone() OptionSet {
	out := OptionSet{Default: s.Default}
	if s.Options != nil {
		out.Options = make(map[string]OptionDescriptor, len(s.Options))
		for id, d := range s.Options {
			out.Options[id] = d
		}
	}
	return out
}

// ModelOptions groups the option sets of a base model.
type ModelOptions struct {
	Engine  OptionSet `json:"engine" yaml:"engine"`
	Track   OptionSet `json:"track" yaml:"track"`
	Starter OptionSet `json:"starter" yaml:"starter"`
	Display OptionSet `json:"display" yaml:"display"`
}

// Set returns the option set for a dimension.
func (o ModelOptions) Set(dim string) OptionSet {
	switch dim {
	case DimEngine:
		return o.Engine
	case DimTrack:
		return o.Track
	case DimStarter:
		return o.Starter
	case DimDisplay:
		return o.Display
	default:
		return OptionSet{}
	}
}

// Measurements holds the physical dimensions of a model. Zero means unknown.
type Measurements struct {
	LengthMM      int     `json:"length_mm,omitempty" yaml:"length_mm,omitempty"`
	WidthMM       int     `json:"width_mm,omitempty" yaml:"width_mm,omitempty"`
	HeightMM      int     `json:"height_mm,omitempty" yaml:"height_mm,omitempty"`
	SkiStanceMM   int     `json:"ski_stance_mm,omitempty" yaml:"ski_stance_mm,omitempty"`
	DryWeightKG   int     `json:"dry_weight_kg,omitempty" yaml:"dry_weight_kg,omitempty"`
	FuelCapacityL float64 `json:"fuel_capacity_l,omitempty" yaml:"fuel_capacity_l,omitempty"`
}

// BaseCatalogModel is the un-customized specification of a model family for
// one model year. Instances belong to a catalog snapshot and are never mutated.
type BaseCatalogModel struct {
	Brand       string       `json:"brand" yaml:"brand"`
	ModelFamily string       `json:"model_family" yaml:"model_family"`
	Package     string       `json:"package,omitempty" yaml:"package,omitempty"`
	Year        int          `json:"year" yaml:"year"`
	Options     ModelOptions `json:"options" yaml:"options"`
	Dimensions  Measurements `json:"dimensions" yaml:"dimensions"`
	Features    []string     `json:"features,omitempty" yaml:"features,omitempty"`
	LookupKey   string       `json:"lookup_key" yaml:"lookup_key"`
}

// SameBrandYear reports whether the model shares the entry's brand and year.
// Brands compare trimmed and case-insensitively; years compare exactly.
func (m BaseCatalogModel) SameBrandYear(brand string, year int) bool {
	return m.Year == year && strings.EqualFold(strings.TrimSpace(m.Brand), strings.TrimSpace(brand))
}
