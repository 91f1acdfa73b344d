package seed

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

// OnboardingSeeder writes the initial site/process rows a fresh tenant
// needs so the first login lands somewhere useful. Idempotent: skips
// tenants that already have a site.
type OnboardingSeeder struct {
	log *logrus.Logger
}

func NewOnboardingSeeder(log *logrus.Logger) *OnboardingSeeder {
	return &OnboardingSeeder{log: log}
}

func (s *OnboardingSeeder) Seed(ctx context.Context, orgID uuid.UUID, connString string) error {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return errors.Wrap(err, "failed to connect to tenant database")
	}
	defer func() {
		if cErr := conn.Close(ctx); cErr != nil {
			s.log.WithError(cErr).Warn("failed to close seeding connection")
		}
	}()

	var existing int
	if err := conn.QueryRow(ctx, `SELECT count(*) FROM sites`).Scan(&existing); err != nil {
		return errors.Wrap(err, "failed to inspect tenant sites")
	}
	if existing > 0 {
		s.log.WithField("org_id", orgID).Info("tenant already seeded")
		return nil
	}

	siteID := uuid.New()
	now := time.Now()
	if _, err := conn.Exec(ctx, `
		INSERT INTO sites (id, name, created_at) VALUES ($1, $2, $3)
	`, siteID.String(), "Headquarters", now); err != nil {
		return errors.Wrap(err, "failed to seed default site")
	}

	if _, err := conn.Exec(ctx, `
		INSERT INTO processes (id, site_id, name, created_at) VALUES ($1, $2, $3, $4)
	`, uuid.New().String(), siteID.String(), "General Compliance", now); err != nil {
		return errors.Wrap(err, "failed to seed default process")
	}

	s.log.WithField("org_id", orgID).Info("tenant seeded with default site and process")
	return nil
}
