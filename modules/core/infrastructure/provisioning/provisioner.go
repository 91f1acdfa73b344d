package provisioning

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgDatabaseProvisioner creates tenant databases on the same cluster the
// control plane runs on. CREATE DATABASE runs outside any transaction by
// postgres rules, so this is deliberately not part of the control-plane
// atomic unit.
type PgDatabaseProvisioner struct {
	pool *pgxpool.Pool
}

func NewPgDatabaseProvisioner(pool *pgxpool.Pool) *PgDatabaseProvisioner {
	return &PgDatabaseProvisioner{pool: pool}
}

func (p *PgDatabaseProvisioner) CreateDatabase(ctx context.Context, dbName string) error {
	if _, err := p.pool.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{dbName}.Sanitize()); err != nil {
		return errors.Wrapf(err, "failed to create database %s", dbName)
	}
	return nil
}

// DropDatabase exists for operator cleanup of orphaned tenant databases.
func (p *PgDatabaseProvisioner) DropDatabase(ctx context.Context, dbName string) error {
	if _, err := p.pool.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{dbName}.Sanitize()); err != nil {
		return errors.Wrapf(err, "failed to drop database %s", dbName)
	}
	return nil
}
