package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/catalog-resolver/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	// busy_timeout must hold on every pooled connection, not only the first.
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", dsn+sep+"_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS spring_options (
	brand_key     TEXT NOT NULL,
	family_key    TEXT NOT NULL,
	name_key      TEXT NOT NULL,
	brand         TEXT NOT NULL,
	model_family  TEXT NOT NULL,
	name          TEXT NOT NULL,
	year          INTEGER NOT NULL DEFAULT 0,
	modifications TEXT NOT NULL,
	confidence    REAL NOT NULL,
	provenance    TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (brand_key, family_key, name_key)
);

CREATE TABLE IF NOT EXISTS resolved_products (
	id            TEXT PRIMARY KEY,
	base_key      TEXT NOT NULL,
	brand         TEXT NOT NULL,
	model_family  TEXT NOT NULL,
	year          INTEGER NOT NULL,
	status        TEXT NOT NULL,
	auto_accepted INTEGER NOT NULL DEFAULT 0,
	confidence    REAL NOT NULL,
	product       TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS audit_records (
	id          TEXT PRIMARY KEY,
	product_id  TEXT NOT NULL REFERENCES resolved_products(id),
	stage       INTEGER NOT NULL,
	name        TEXT NOT NULL,
	inputs      TEXT NOT NULL,
	outputs     TEXT NOT NULL,
	confidence  REAL NOT NULL,
	recorded_at DATETIME NOT NULL,
	UNIQUE (product_id, stage)
);

CREATE INDEX IF NOT EXISTS idx_resolved_products_status ON resolved_products(status);
CREATE INDEX IF NOT EXISTS idx_resolved_products_base_key ON resolved_products(base_key);
CREATE INDEX IF NOT EXISTS idx_audit_records_product_id ON audit_records(product_id);
`

// Migrate creates the tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LookupOption returns the stored option or nil.
func (s *SQLiteStore) LookupOption(ctx context.Context, scope model.Scope, name string) (*model.SpringOption, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT brand, model_family, name, year, modifications, confidence, provenance
		 FROM spring_options WHERE brand_key = ? AND family_key = ? AND name_key = ?`,
		model.KeyPart(scope.Brand), model.KeyPart(scope.ModelFamily), model.KeyPart(name),
	)
	opt, err := scanOption(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: lookup option %q", name)
	}
	return opt, nil
}

// UpsertOption inserts the option, or raises the stored confidence when the
// key already exists.
func (s *SQLiteStore) UpsertOption(ctx context.Context, opt model.SpringOption) error {
	r, err := toOptionRow(opt)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO spring_options
		 (brand_key, family_key, name_key, brand, model_family, name, year, modifications, confidence, provenance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (brand_key, family_key, name_key) DO UPDATE SET
		   confidence = max(spring_options.confidence, excluded.confidence),
		   updated_at = excluded.updated_at`,
		r.brandKey, r.familyKey, r.nameKey,
		opt.Scope.Brand, opt.Scope.ModelFamily, opt.Name, opt.Scope.Year,
		string(r.mods), model.Clamp(opt.Confidence), string(opt.Provenance), now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert option %q", opt.Name)
}

// ListOptions returns options ordered by key.
func (s *SQLiteStore) ListOptions(ctx context.Context, filter OptionFilter) ([]model.SpringOption, error) {
	query := `SELECT brand, model_family, name, year, modifications, confidence, provenance FROM spring_options`
	var (
		where []string
		args  []any
	)
	if filter.Brand != "" {
		where = append(where, "brand_key = ?")
		args = append(args, model.KeyPart(filter.Brand))
	}
	if filter.ModelFamily != "" {
		where = append(where, "family_key = ?")
		args = append(args, model.KeyPart(filter.ModelFamily))
	}
	if filter.Provenance != "" {
		where = append(where, "provenance = ?")
		args = append(args, filter.Provenance)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY brand_key, family_key, name_key"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list options")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SpringOption
	for rows.Next() {
		opt, err := scanOption(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan option")
		}
		out = append(out, *opt)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list options")
}

// SaveResolvedProduct inserts or replaces a product snapshot.
func (s *SQLiteStore) SaveResolvedProduct(ctx context.Context, p *model.ResolvedProduct) error {
	if p == nil || p.ID == "" {
		return eris.New("sqlite: product without id")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal product")
	}
	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO resolved_products
		 (id, base_key, brand, model_family, year, status, auto_accepted, confidence, product, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   status = excluded.status,
		   auto_accepted = excluded.auto_accepted,
		   confidence = excluded.confidence,
		   product = excluded.product,
		   updated_at = excluded.updated_at`,
		p.ID, p.BaseKey, p.BrandName, p.ModelFamily, p.Year,
		string(p.Status), p.AutoAccepted, p.Confidence, string(body), now, now,
	)
	return eris.Wrapf(err, "sqlite: save product %s", p.ID)
}

// SaveAuditRecords stores the trail of a product. Records already stored
// for the same stage are left untouched.
func (s *SQLiteStore) SaveAuditRecords(ctx context.Context, productID string, recs []model.AuditStageRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin audit tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO audit_records (id, product_id, stage, name, inputs, outputs, confidence, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (product_id, stage) DO NOTHING`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare audit insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range recs {
		in, err := marshalMap(r.Inputs)
		if err != nil {
			return err
		}
		out, err := marshalMap(r.Outputs)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, r.ID, productID, r.Stage, r.Name, string(in), string(out), r.Confidence, r.Timestamp.UTC()); err != nil {
			return eris.Wrapf(err, "sqlite: insert audit record %d for %s", r.Stage, productID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit audit tx")
}

// GetResolvedProduct loads a product snapshot.
func (s *SQLiteStore) GetResolvedProduct(ctx context.Context, id string) (*model.ResolvedProduct, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT product FROM resolved_products WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("sqlite: product not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get product %s", id)
	}
	var p model.ResolvedProduct
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal product")
	}
	return &p, nil
}

// CountAuditRecords returns the number of stored records for a product.
func (s *SQLiteStore) CountAuditRecords(ctx context.Context, productID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_records WHERE product_id = ?`, productID).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count audit records")
}
