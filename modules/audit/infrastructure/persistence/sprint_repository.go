package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/complium/complium/modules/audit/domain/entities/sprint"
	"github.com/complium/complium/modules/audit/infrastructure/persistence/models"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/serrors"
)

const sprintFindQuery = `SELECT id, process_id, name, starts_at, ends_at FROM sprints`

type SprintRepository struct{}

func NewSprintRepository() sprint.Repository {
	return &SprintRepository{}
}

func (r *SprintRepository) GetByID(ctx context.Context, id uuid.UUID) (*sprint.Sprint, error) {
	sprints, err := r.querySprints(ctx, sprintFindQuery+" WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(sprints) == 0 {
		return nil, serrors.NewNotFound("sprint", nil)
	}
	return sprints[0], nil
}

func (r *SprintRepository) ListByProcess(ctx context.Context, processID uuid.UUID) ([]*sprint.Sprint, error) {
	return r.querySprints(ctx, sprintFindQuery+" WHERE process_id = $1 ORDER BY starts_at NULLS LAST", processID.String())
}

func (r *SprintRepository) Create(ctx context.Context, s *sprint.Sprint) error {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(
		ctx,
		`INSERT INTO sprints (id, process_id, name, starts_at, ends_at) VALUES ($1, $2, $3, $4, $5)`,
		s.ID().String(),
		s.ProcessID().String(),
		s.Name(),
		timePointerToArg(s.StartsAt()),
		timePointerToArg(s.EndsAt()),
	)
	if err != nil {
		return serrors.MapPgError(err, "sprint")
	}
	return nil
}

func (r *SprintRepository) Delete(ctx context.Context, id uuid.UUID) error {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `DELETE FROM sprints WHERE id = $1`, id.String())
	if err != nil {
		return serrors.MapPgError(err, "sprint")
	}
	return nil
}

func (r *SprintRepository) querySprints(ctx context.Context, query string, args ...any) ([]*sprint.Sprint, error) {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query sprints")
	}
	defer rows.Close()

	var sprints []*sprint.Sprint
	for rows.Next() {
		var s models.Sprint
		if err := rows.Scan(&s.ID, &s.ProcessID, &s.Name, &s.StartsAt, &s.EndsAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan sprint row")
		}
		domainSprint, err := toDomainSprint(&s)
		if err != nil {
			return nil, err
		}
		sprints = append(sprints, domainSprint)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return sprints, nil
}
