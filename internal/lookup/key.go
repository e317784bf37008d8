// Package lookup builds canonical catalog lookup keys and their fallback
// variations, and normalizes free text for comparison.
package lookup

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/catalog-resolver/internal/model"
)

// Separator joins key segments.
const Separator = "_"

// MaxVariations bounds the fallback keys tried after the canonical key.
const MaxVariations = 5

// BuildCanonical builds the exact-match key for a brand/model/package/year.
// Segments are NFC-normalized, trimmed and whitespace-collapsed; case is
// preserved. A blank package or a zero year is omitted.
func BuildCanonical(brand, modelName, pkg string, year int) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{brand, modelName, pkg} {
		if c := cleanSegment(p); c != "" {
			parts = append(parts, c)
		}
	}
	if year != 0 {
		parts = append(parts, strconv.Itoa(year))
	}
	return strings.Join(parts, Separator)
}

// CanonicalFor builds the canonical key for an entry.
func CanonicalFor(e model.RawEntry) string {
	return BuildCanonical(e.Brand, e.Model, e.Package, e.Year)
}

// BuildVariations returns the fallback keys for a canonical key, most
// information-preserving first:
//
//  1. without package
//  2. upper-cased
//  3. lower-cased
//  4. separator swapped (underscore and space exchanged)
//  5. without the trailing year segment
//
// Variations identical to the canonical key or to an earlier variation are
// dropped.
func BuildVariations(canonical string, e model.RawEntry) []string {
	candidates := []string{
		BuildCanonical(e.Brand, e.Model, "", e.Year),
		cases.Upper(language.Und).String(canonical),
		cases.Lower(language.Und).String(canonical),
		swapSeparators(canonical),
		stripYear(canonical, e.Year),
	}

	seen := map[string]bool{canonical: true}
	out := make([]string, 0, MaxVariations)
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Keys returns the canonical key followed by its variations.
func Keys(e model.RawEntry) []string {
	canonical := CanonicalFor(e)
	return append([]string{canonical}, BuildVariations(canonical, e)...)
}

func cleanSegment(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func swapSeparators(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch r {
		case '_':
			b.WriteRune(' ')
		case ' ':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripYear(key string, year int) string {
	if year == 0 {
		return ""
	}
	suffix := Separator + strconv.Itoa(year)
	if !strings.HasSuffix(key, suffix) {
		return ""
	}
	return strings.TrimSuffix(key, suffix)
}
