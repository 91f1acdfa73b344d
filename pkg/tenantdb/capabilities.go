package tenantdb

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
)

// Capabilities records which columns a tenant's issues table actually has.
// Older tenant schemas predate the issuer/verifier/deadline columns; the
// probe runs once per tenant, at first pool acquisition, and repositories
// pick their query variant from the cached result instead of retrying on
// undefined-column errors per call.
type Capabilities struct {
	columns map[string]struct{}
}

// Optional issue columns that may be absent in older tenant schemas.
const (
	ColumnIssuer   = "issuer"
	ColumnVerifier = "verifier"
	ColumnDeadline = "deadline"
)

func (c Capabilities) HasColumn(name string) bool {
	_, ok := c.columns[name]
	return ok
}

// HasExtendedIssueColumns reports whether all optional issue columns exist.
func (c Capabilities) HasExtendedIssueColumns() bool {
	return c.HasColumn(ColumnIssuer) && c.HasColumn(ColumnVerifier) && c.HasColumn(ColumnDeadline)
}

type columnQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func probeCapabilities(ctx context.Context, q columnQuerier) (Capabilities, error) {
	rows, err := q.Query(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = 'issues'
	`)
	if err != nil {
		return Capabilities{}, errors.Wrap(err, "failed to probe tenant schema")
	}
	defer rows.Close()

	columns := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return Capabilities{}, errors.Wrap(err, "failed to scan column name")
		}
		columns[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return Capabilities{}, errors.Wrap(err, "column probe iteration error")
	}
	return Capabilities{columns: columns}, nil
}

// CapabilitiesFromColumns builds a capability set directly, for tests.
func CapabilitiesFromColumns(names ...string) Capabilities {
	columns := make(map[string]struct{}, len(names))
	for _, name := range names {
		columns[name] = struct{}{}
	}
	return Capabilities{columns: columns}
}
