package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-resolver/internal/db"
	"github.com/sells-group/catalog-resolver/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"lookup_option": `SELECT brand, model_family, name, year, modifications, confidence, provenance
		FROM spring_options WHERE brand_key = $1 AND family_key = $2 AND name_key = $3`,
	"upsert_option": `INSERT INTO spring_options
		(brand_key, family_key, name_key, brand, model_family, name, year, modifications, confidence, provenance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (brand_key, family_key, name_key) DO UPDATE SET
		  confidence = GREATEST(spring_options.confidence, EXCLUDED.confidence),
		  updated_at = EXCLUDED.updated_at`,
	"save_product": `INSERT INTO resolved_products
		(id, base_key, brand, model_family, year, status, auto_accepted, confidence, product, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (id) DO UPDATE SET
		  status = EXCLUDED.status,
		  auto_accepted = EXCLUDED.auto_accepted,
		  confidence = EXCLUDED.confidence,
		  product = EXCLUDED.product,
		  updated_at = EXCLUDED.updated_at`,
	"get_product":  `SELECT product FROM resolved_products WHERE id = $1`,
	"audit_stages": `SELECT stage FROM audit_records WHERE product_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: time.Now}, nil
}

// NewPostgresWithPool wraps an existing pool. Close is a no-op.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}, now: time.Now}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS spring_options (
	brand_key     TEXT NOT NULL,
	family_key    TEXT NOT NULL,
	name_key      TEXT NOT NULL,
	brand         TEXT NOT NULL,
	model_family  TEXT NOT NULL,
	name          TEXT NOT NULL,
	year          INTEGER NOT NULL DEFAULT 0,
	modifications JSONB NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	provenance    TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (brand_key, family_key, name_key)
);

CREATE TABLE IF NOT EXISTS resolved_products (
	id            TEXT PRIMARY KEY,
	base_key      TEXT NOT NULL,
	brand         TEXT NOT NULL,
	model_family  TEXT NOT NULL,
	year          INTEGER NOT NULL,
	status        TEXT NOT NULL,
	auto_accepted BOOLEAN NOT NULL DEFAULT false,
	confidence    DOUBLE PRECISION NOT NULL,
	product       JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_records (
	id          TEXT PRIMARY KEY,
	product_id  TEXT NOT NULL REFERENCES resolved_products(id),
	stage       INTEGER NOT NULL,
	name        TEXT NOT NULL,
	inputs      JSONB NOT NULL,
	outputs     JSONB NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL,
	UNIQUE (product_id, stage)
);

CREATE INDEX IF NOT EXISTS idx_resolved_products_status ON resolved_products(status);
CREATE INDEX IF NOT EXISTS idx_resolved_products_base_key ON resolved_products(base_key);
CREATE INDEX IF NOT EXISTS idx_audit_records_product_id ON audit_records(product_id);
`

// Migrate creates the tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// LookupOption returns the stored option or nil.
func (s *PostgresStore) LookupOption(ctx context.Context, scope model.Scope, name string) (*model.SpringOption, error) {
	row := s.pool.QueryRow(ctx, "lookup_option",
		model.KeyPart(scope.Brand), model.KeyPart(scope.ModelFamily), model.KeyPart(name))
	opt, err := scanOption(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: lookup option %q", name)
	}
	return opt, nil
}

// UpsertOption inserts the option, or raises the stored confidence when the
// key already exists.
func (s *PostgresStore) UpsertOption(ctx context.Context, opt model.SpringOption) error {
	r, err := toOptionRow(opt)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, "upsert_option",
		r.brandKey, r.familyKey, r.nameKey,
		opt.Scope.Brand, opt.Scope.ModelFamily, opt.Name, opt.Scope.Year,
		r.mods, model.Clamp(opt.Confidence), string(opt.Provenance), s.now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert option %q", opt.Name)
}

// ListOptions returns options ordered by key.
func (s *PostgresStore) ListOptions(ctx context.Context, filter OptionFilter) ([]model.SpringOption, error) {
	query := `SELECT brand, model_family, name, year, modifications, confidence, provenance FROM spring_options`
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, clause+" = $"+strconv.Itoa(len(args)))
	}
	if filter.Brand != "" {
		add("brand_key", model.KeyPart(filter.Brand))
	}
	if filter.ModelFamily != "" {
		add("family_key", model.KeyPart(filter.ModelFamily))
	}
	if filter.Provenance != "" {
		add("provenance", filter.Provenance)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY brand_key, family_key, name_key"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list options")
	}
	defer rows.Close()

	var out []model.SpringOption
	for rows.Next() {
		opt, err := scanOption(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan option")
		}
		out = append(out, *opt)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list options")
}

// SaveResolvedProduct inserts or replaces a product snapshot.
func (s *PostgresStore) SaveResolvedProduct(ctx context.Context, p *model.ResolvedProduct) error {
	if p == nil || p.ID == "" {
		return eris.New("postgres: product without id")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal product")
	}
	_, err = s.pool.Exec(ctx, "save_product",
		p.ID, p.BaseKey, p.BrandName, p.ModelFamily, p.Year,
		string(p.Status), p.AutoAccepted, p.Confidence, body, s.now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save product %s", p.ID)
}

// SaveAuditRecords bulk-loads the trail of a product with COPY. Stages that
// are already stored are skipped.
func (s *PostgresStore) SaveAuditRecords(ctx context.Context, productID string, recs []model.AuditStageRecord) error {
	if len(recs) == 0 {
		return nil
	}
	stored := make(map[int]bool)
	rows, err := s.pool.Query(ctx, "audit_stages", productID)
	if err != nil {
		return eris.Wrapf(err, "postgres: query audit stages for %s", productID)
	}
	for rows.Next() {
		var stage int
		if err := rows.Scan(&stage); err != nil {
			rows.Close()
			return eris.Wrap(err, "postgres: scan audit stage")
		}
		stored[stage] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "postgres: query audit stages")
	}

	var data [][]any
	for _, r := range recs {
		if stored[r.Stage] {
			continue
		}
		in, err := marshalMap(r.Inputs)
		if err != nil {
			return err
		}
		out, err := marshalMap(r.Outputs)
		if err != nil {
			return err
		}
		data = append(data, []any{r.ID, productID, r.Stage, r.Name, in, out, r.Confidence, r.Timestamp.UTC()})
	}
	_, err = db.CopyFrom(ctx, s.pool, "audit_records",
		[]string{"id", "product_id", "stage", "name", "inputs", "outputs", "confidence", "recorded_at"}, data)
	return eris.Wrapf(err, "postgres: save audit records for %s", productID)
}

// GetResolvedProduct loads a product snapshot.
func (s *PostgresStore) GetResolvedProduct(ctx context.Context, id string) (*model.ResolvedProduct, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, "get_product", id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: product not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get product %s", id)
	}
	var p model.ResolvedProduct
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal product")
	}
	return &p, nil
}
