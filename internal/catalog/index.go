// Package catalog holds the immutable catalog snapshot used for matching.
package catalog

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-resolver/internal/lookup"
	"github.com/sells-group/catalog-resolver/internal/model"
)

// Index is a read-only snapshot of base catalog models keyed by lookup key
// and grouped by brand and year. It is fully built before it is returned and
// is safe for concurrent use.
type Index struct {
	models      []model.BaseCatalogModel
	byKey       map[string]*model.BaseCatalogModel
	byBrandYear map[string][]*model.BaseCatalogModel
}

// NewIndex builds a snapshot from models. Models without a lookup key get
// the canonical key derived from brand, family, package and year. Duplicate
// keys are rejected.
func NewIndex(models []model.BaseCatalogModel) (*Index, error) {
	idx := &Index{
		models:      make([]model.BaseCatalogModel, len(models)),
		byKey:       make(map[string]*model.BaseCatalogModel, len(models)),
		byBrandYear: make(map[string][]*model.BaseCatalogModel),
	}
	copy(idx.models, models)

	for i := range idx.models {
		m := &idx.models[i]
		if strings.TrimSpace(m.Brand) == "" || strings.TrimSpace(m.ModelFamily) == "" || m.Year == 0 {
			return nil, eris.Errorf("catalog: model %d missing brand, family or year", i)
		}
		if m.LookupKey == "" {
			m.LookupKey = lookup.BuildCanonical(m.Brand, m.ModelFamily, m.Package, m.Year)
		}
		if _, dup := idx.byKey[m.LookupKey]; dup {
			return nil, eris.Errorf("catalog: duplicate lookup key %q", m.LookupKey)
		}
		idx.byKey[m.LookupKey] = m
		by := brandYearKey(m.Brand, m.Year)
		idx.byBrandYear[by] = append(idx.byBrandYear[by], m)
	}

	for _, group := range idx.byBrandYear {
		sort.Slice(group, func(i, j int) bool { return group[i].LookupKey < group[j].LookupKey })
	}
	return idx, nil
}

// Lookup returns the model stored under key.
func (x *Index) Lookup(key string) (*model.BaseCatalogModel, bool) {
	m, ok := x.byKey[key]
	return m, ok
}

// Candidates lists the models sharing brand (case-insensitive) and year,
// ordered by lookup key.
func (x *Index) Candidates(brand string, year int) []*model.BaseCatalogModel {
	group := x.byBrandYear[brandYearKey(brand, year)]
	out := make([]*model.BaseCatalogModel, len(group))
	copy(out, group)
	return out
}

// Len returns the number of models in the snapshot.
func (x *Index) Len() int {
	return len(x.models)
}

// Keys returns every lookup key in ascending order.
func (x *Index) Keys() []string {
	keys := make([]string, 0, len(x.byKey))
	for k := range x.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func brandYearKey(brand string, year int) string {
	return strings.ToUpper(strings.TrimSpace(brand)) + "|" + strconv.Itoa(year)
}
