package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/complium/complium/modules/core/domain/access"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/serrors"
)

// AssignmentRepository reads and writes the site_users and process_users
// join tables of the tenant store. It backs scope authorization via
// access.AssignmentStore.
type AssignmentRepository struct{}

func NewAssignmentRepository() *AssignmentRepository {
	return &AssignmentRepository{}
}

var _ access.AssignmentStore = (*AssignmentRepository)(nil)

func (r *AssignmentRepository) HasSiteAssignment(ctx context.Context, actorID, siteID uuid.UUID) (bool, error) {
	return r.exists(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM site_users WHERE actor_id = $1 AND site_id = $2)`,
		actorID.String(),
		siteID.String(),
	)
}

func (r *AssignmentRepository) HasProcessAssignment(ctx context.Context, actorID, processID uuid.UUID) (bool, error) {
	return r.exists(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM process_users WHERE actor_id = $1 AND process_id = $2)`,
		actorID.String(),
		processID.String(),
	)
}

func (r *AssignmentRepository) AssignSite(ctx context.Context, actorID, siteID uuid.UUID) error {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(
		ctx,
		`INSERT INTO site_users (site_id, actor_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		siteID.String(),
		actorID.String(),
	)
	if err != nil {
		return serrors.MapPgError(err, "site assignment")
	}
	return nil
}

func (r *AssignmentRepository) UnassignSite(ctx context.Context, actorID, siteID uuid.UUID) error {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(
		ctx,
		`DELETE FROM site_users WHERE site_id = $1 AND actor_id = $2`,
		siteID.String(),
		actorID.String(),
	)
	return err
}

func (r *AssignmentRepository) AssignProcess(ctx context.Context, actorID, processID uuid.UUID) error {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(
		ctx,
		`INSERT INTO process_users (process_id, actor_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		processID.String(),
		actorID.String(),
	)
	if err != nil {
		return serrors.MapPgError(err, "process assignment")
	}
	return nil
}

func (r *AssignmentRepository) UnassignProcess(ctx context.Context, actorID, processID uuid.UUID) error {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(
		ctx,
		`DELETE FROM process_users WHERE process_id = $1 AND actor_id = $2`,
		processID.String(),
		actorID.String(),
	)
	return err
}

func (r *AssignmentRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return false, err
	}
	var found bool
	if err := conn.QueryRow(ctx, query, args...).Scan(&found); err != nil {
		return false, errors.Wrap(err, "failed to query assignment")
	}
	return found, nil
}
