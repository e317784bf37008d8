// Package store persists the spring option registry, resolved products and
// their audit trails in SQLite or Postgres.
package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-resolver/internal/model"
)

// OptionFilter narrows ListOptions.
type OptionFilter struct {
	Brand       string `json:"brand,omitempty"`
	ModelFamily string `json:"model_family,omitempty"`
	Provenance  string `json:"provenance,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// Store is the persistence interface used by the resolver. The registry
// methods follow the first-write-wins, max-confidence upsert policy.
type Store interface {
	// Registry
	LookupOption(ctx context.Context, scope model.Scope, name string) (*model.SpringOption, error)
	UpsertOption(ctx context.Context, opt model.SpringOption) error
	ListOptions(ctx context.Context, filter OptionFilter) ([]model.SpringOption, error)

	// Products
	SaveResolvedProduct(ctx context.Context, p *model.ResolvedProduct) error
	SaveAuditRecords(ctx context.Context, productID string, recs []model.AuditStageRecord) error
	GetResolvedProduct(ctx context.Context, id string) (*model.ResolvedProduct, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a store for driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite":
		return NewSQLite(dsn)
	case "postgres", "postgresql", "pgx":
		return NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// optionRow is the flattened registry row shared by both drivers.
type optionRow struct {
	brandKey, familyKey, nameKey string
	mods                         []byte
}

func toOptionRow(opt model.SpringOption) (optionRow, error) {
	if opt.Scope.Brand == "" || opt.Scope.ModelFamily == "" || opt.Name == "" {
		return optionRow{}, eris.Errorf("store: option %q needs brand, model family and name", opt.Name)
	}
	mods, err := json.Marshal(opt.Modifications)
	if err != nil {
		return optionRow{}, eris.Wrap(err, "store: marshal modifications")
	}
	return optionRow{
		brandKey:  model.KeyPart(opt.Scope.Brand),
		familyKey: model.KeyPart(opt.Scope.ModelFamily),
		nameKey:   model.KeyPart(opt.Name),
		mods:      mods,
	}, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanOption(row scannable) (*model.SpringOption, error) {
	var (
		opt        model.SpringOption
		mods       []byte
		provenance string
	)
	if err := row.Scan(&opt.Scope.Brand, &opt.Scope.ModelFamily, &opt.Name, &opt.Scope.Year, &mods, &opt.Confidence, &provenance); err != nil {
		return nil, err
	}
	if len(mods) > 0 {
		if err := json.Unmarshal(mods, &opt.Modifications); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal modifications")
		}
	}
	opt.Provenance = model.Provenance(provenance)
	return &opt, nil
}

func marshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal audit payload")
	}
	return b, nil
}
