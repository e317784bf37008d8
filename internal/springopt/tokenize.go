// Package springopt applies named seasonal "spring option" bundles to draft
// products, researching and registering options it has not seen before.
package springopt

import (
	"strings"
)

// Tokenize splits spring option text on , ; + / | and newlines. Blank
// tokens are dropped and duplicates are removed case-insensitively,
// keeping the first spelling.
func Tokenize(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ',', ';', '+', '/', '|', '\n', '\r':
			return true
		}
		return false
	})

	seen := make(map[string]bool, len(parts))
	var out []string
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		if p == "" {
			continue
		}
		k := strings.ToLower(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return out
}
