package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/complium/complium/modules/audit/domain/entities/process"
	"github.com/complium/complium/modules/audit/infrastructure/persistence/models"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/serrors"
)

const processFindQuery = `SELECT id, site_id, name, created_at FROM processes`

type ProcessRepository struct{}

func NewProcessRepository() process.Repository {
	return &ProcessRepository{}
}

func (r *ProcessRepository) GetByID(ctx context.Context, id uuid.UUID) (*process.Process, error) {
	processes, err := r.queryProcesses(ctx, processFindQuery+" WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(processes) == 0 {
		return nil, serrors.NewNotFound("process", nil)
	}
	return processes[0], nil
}

func (r *ProcessRepository) ListBySite(ctx context.Context, siteID uuid.UUID) ([]*process.Process, error) {
	return r.queryProcesses(ctx, processFindQuery+" WHERE site_id = $1 ORDER BY created_at", siteID.String())
}

func (r *ProcessRepository) Create(ctx context.Context, p *process.Process) error {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(
		ctx,
		`INSERT INTO processes (id, site_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		p.ID().String(),
		p.SiteID().String(),
		p.Name(),
		p.CreatedAt(),
	)
	if err != nil {
		return serrors.MapPgError(err, "process")
	}
	return nil
}

func (r *ProcessRepository) Delete(ctx context.Context, id uuid.UUID) error {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, `DELETE FROM processes WHERE id = $1`, id.String())
	if err != nil {
		return serrors.MapPgError(err, "process")
	}
	return nil
}

func (r *ProcessRepository) queryProcesses(ctx context.Context, query string, args ...any) ([]*process.Process, error) {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query processes")
	}
	defer rows.Close()

	var processes []*process.Process
	for rows.Next() {
		var p models.Process
		if err := rows.Scan(&p.ID, &p.SiteID, &p.Name, &p.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan process row")
		}
		domainProcess, err := toDomainProcess(&p)
		if err != nil {
			return nil, err
		}
		processes = append(processes, domainProcess)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return processes, nil
}
