package provisioning

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/go-faster/errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/complium/complium/migrations"
)

// GooseMigrator applies embedded goose migrations to a database reached by
// connection string. Safe to re-run; goose tracks applied versions.
type GooseMigrator struct {
	fsys fs.FS
	log  *logrus.Logger
}

func NewTenantMigrator(log *logrus.Logger) *GooseMigrator {
	return &GooseMigrator{fsys: migrations.Tenant(), log: log}
}

func NewControlPlaneMigrator(log *logrus.Logger) *GooseMigrator {
	return &GooseMigrator{fsys: migrations.ControlPlane(), log: log}
}

func (m *GooseMigrator) Migrate(ctx context.Context, connString string) error {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return errors.Wrap(err, "failed to open migration connection")
	}
	defer func() {
		if cErr := db.Close(); cErr != nil {
			m.log.WithError(cErr).Warn("failed to close migration connection")
		}
	}()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, m.fsys)
	if err != nil {
		return errors.Wrap(err, "failed to construct migration provider")
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to apply migrations")
	}
	for _, result := range results {
		m.log.WithField("migration", result.Source.Path).Debug("migration applied")
	}
	return nil
}
