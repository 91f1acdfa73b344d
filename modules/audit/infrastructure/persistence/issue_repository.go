package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/complium/complium/modules/audit/domain/entities/issue"
	"github.com/complium/complium/modules/audit/infrastructure/persistence/models"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/serrors"
)

const (
	issueBaseColumns     = "id, process_id, title, description, status, sprint_id, position, assignee_id, tags, created_at, updated_at"
	issueExtendedColumns = issueBaseColumns + ", issuer, verifier, deadline"
)

// IssueRepository persists issues in the tenant store. Every query comes in
// two variants: older tenant schemas lack the issuer/verifier/deadline
// columns, and the connection's capability set decides which variant runs.
type IssueRepository struct{}

func NewIssueRepository() issue.Repository {
	return &IssueRepository{}
}

func (r *IssueRepository) GetByID(ctx context.Context, id uuid.UUID) (*issue.Issue, error) {
	issues, err := r.queryIssues(ctx, "WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(issues) == 0 {
		return nil, serrors.NewNotFound("issue", nil)
	}
	return issues[0], nil
}

func (r *IssueRepository) ListByProcess(ctx context.Context, processID uuid.UUID) ([]*issue.Issue, error) {
	return r.queryIssues(ctx, "WHERE process_id = $1 ORDER BY position, created_at", processID.String())
}

func (r *IssueRepository) ListBySprint(ctx context.Context, sprintID uuid.UUID) ([]*issue.Issue, error) {
	return r.queryIssues(ctx, "WHERE sprint_id = $1 ORDER BY position, created_at", sprintID.String())
}

func (r *IssueRepository) ListBacklog(ctx context.Context, processID uuid.UUID) ([]*issue.Issue, error) {
	return r.queryIssues(
		ctx,
		"WHERE process_id = $1 AND sprint_id IS NULL AND status = $2 ORDER BY position, created_at",
		processID.String(),
		string(issue.StatusToDo),
	)
}

func (r *IssueRepository) Create(ctx context.Context, i *issue.Issue) error {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return err
	}

	args := []any{
		i.ID.String(),
		i.ProcessID.String(),
		i.Title,
		i.Description,
		string(i.Status),
		uuidPointerToArg(i.SprintID),
		i.Position,
		uuidPointerToArg(i.AssigneeID),
		i.Tags,
		i.CreatedAt,
		i.UpdatedAt,
	}
	query := `
		INSERT INTO issues (` + issueBaseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if conn.Capabilities().HasExtendedIssueColumns() {
		query = `
			INSERT INTO issues (` + issueExtendedColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`
		args = append(args, uuidPointerToArg(i.Issuer), uuidPointerToArg(i.Verifier), timePointerToArg(i.Deadline))
	}

	if _, err := conn.Exec(ctx, query, args...); err != nil {
		return serrors.MapPgError(err, "issue")
	}
	return nil
}

func (r *IssueRepository) Update(ctx context.Context, i *issue.Issue) error {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return err
	}

	args := []any{
		i.ID.String(),
		i.Title,
		i.Description,
		string(i.Status),
		uuidPointerToArg(i.SprintID),
		i.Position,
		uuidPointerToArg(i.AssigneeID),
		i.Tags,
		i.UpdatedAt,
	}
	query := `
		UPDATE issues
		SET title = $2, description = $3, status = $4, sprint_id = $5,
		    position = $6, assignee_id = $7, tags = $8, updated_at = $9
		WHERE id = $1
	`
	if conn.Capabilities().HasExtendedIssueColumns() {
		query = `
			UPDATE issues
			SET title = $2, description = $3, status = $4, sprint_id = $5,
			    position = $6, assignee_id = $7, tags = $8, updated_at = $9,
			    issuer = $10, verifier = $11, deadline = $12
			WHERE id = $1
		`
		args = append(args, uuidPointerToArg(i.Issuer), uuidPointerToArg(i.Verifier), timePointerToArg(i.Deadline))
	}

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return serrors.MapPgError(err, "issue")
	}
	if tag.RowsAffected() == 0 {
		return serrors.NewNotFound("issue", nil)
	}
	return nil
}

func (r *IssueRepository) Delete(ctx context.Context, id uuid.UUID) error {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return err
	}
	tag, err := conn.Exec(ctx, `DELETE FROM issues WHERE id = $1`, id.String())
	if err != nil {
		return serrors.MapPgError(err, "issue")
	}
	if tag.RowsAffected() == 0 {
		return serrors.NewNotFound("issue", nil)
	}
	return nil
}

func (r *IssueRepository) ReleaseSprint(ctx context.Context, sprintID uuid.UUID) ([]uuid.UUID, error) {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, `
		UPDATE issues
		SET sprint_id = NULL, status = $2, updated_at = now()
		WHERE sprint_id = $1
		RETURNING id
	`, sprintID.String(), string(issue.StatusToDo))
	if err != nil {
		return nil, serrors.MapPgError(err, "issue")
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "failed to scan released issue id")
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.Wrap(err, "invalid released issue id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return ids, nil
}

func (r *IssueRepository) queryIssues(ctx context.Context, clause string, args ...any) ([]*issue.Issue, error) {
	conn, err := composables.UseTenantConn(ctx)
	if err != nil {
		return nil, err
	}

	extended := conn.Capabilities().HasExtendedIssueColumns()
	columns := issueBaseColumns
	if extended {
		columns = issueExtendedColumns
	}

	rows, err := conn.Query(ctx, "SELECT "+columns+" FROM issues "+clause, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query issues")
	}
	defer rows.Close()

	var issues []*issue.Issue
	for rows.Next() {
		var m models.Issue
		dest := []any{
			&m.ID, &m.ProcessID, &m.Title, &m.Description, &m.Status,
			&m.SprintID, &m.Position, &m.AssigneeID, &m.Tags,
			&m.CreatedAt, &m.UpdatedAt,
		}
		if extended {
			dest = append(dest, &m.Issuer, &m.Verifier, &m.Deadline)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, "failed to scan issue row")
		}
		domainIssue, err := toDomainIssue(&m)
		if err != nil {
			return nil, err
		}
		issues = append(issues, domainIssue)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return issues, nil
}
