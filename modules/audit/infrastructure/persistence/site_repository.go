package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/complium/complium/modules/audit/domain/entities/site"
	"github.com/complium/complium/modules/audit/infrastructure/persistence/models"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/serrors"
)

const siteFindQuery = `SELECT id, name, created_at FROM sites`

type SiteRepository struct{}

func NewSiteRepository() site.Repository {
	return &SiteRepository{}
}

func (r *SiteRepository) GetByID(ctx context.Context, id uuid.UUID) (*site.Site, error) {
	sites, err := r.querySites(ctx, siteFindQuery+" WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		return nil, serrors.NewNotFound("site", nil)
	}
	return sites[0], nil
}

func (r *SiteRepository) List(ctx context.Context) ([]*site.Site, error) {
	return r.querySites(ctx, siteFindQuery+" ORDER BY created_at")
}

func (r *SiteRepository) Create(ctx context.Context, s *site.Site) error {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(
		ctx,
		`INSERT INTO sites (id, name, created_at) VALUES ($1, $2, $3)`,
		s.ID().String(),
		s.Name(),
		s.CreatedAt(),
	)
	if err != nil {
		return serrors.MapPgError(err, "site")
	}
	return nil
}

func (r *SiteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `DELETE FROM sites WHERE id = $1`, id.String())
	if err != nil {
		return serrors.MapPgError(err, "site")
	}
	return nil
}

func (r *SiteRepository) querySites(ctx context.Context, query string, args ...any) ([]*site.Site, error) {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query sites")
	}
	defer rows.Close()

	var sites []*site.Site
	for rows.Next() {
		var s models.Site
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan site row")
		}
		domainSite, err := toDomainSite(&s)
		if err != nil {
			return nil, err
		}
		sites = append(sites, domainSite)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return sites, nil
}
