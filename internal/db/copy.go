package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFrom bulk-inserts rows with the COPY protocol. table may be
// schema-qualified ("audit.records").
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := pool.CopyFrom(ctx, Identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}

// Identifier splits an optionally schema-qualified table name.
func Identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.SplitN(table, ".", 2))
}
