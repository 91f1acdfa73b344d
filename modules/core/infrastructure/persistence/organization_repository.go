package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/complium/complium/modules/core/domain/entities/organization"
	"github.com/complium/complium/modules/core/infrastructure/persistence/models"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/serrors"
)

const organizationFindQuery = `SELECT id, name, owner_id, created_at, updated_at FROM organizations`

type OrganizationRepository struct{}

func NewOrganizationRepository() organization.Repository {
	return &OrganizationRepository{}
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*organization.Organization, error) {
	query := organizationFindQuery + " WHERE id = $1"
	orgs, err := r.queryOrganizations(ctx, query, id.String())
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return nil, serrors.NewNotFound("organization", nil)
	}
	return orgs[0], nil
}

func (r *OrganizationRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*organization.Organization, error) {
	query := organizationFindQuery + " WHERE owner_id = $1"
	orgs, err := r.queryOrganizations(ctx, query, ownerID.String())
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return nil, serrors.NewNotFound("organization", nil)
	}
	return orgs[0], nil
}

func (r *OrganizationRepository) Create(ctx context.Context, org *organization.Organization) (*organization.Organization, error) {
	query := `
		INSERT INTO organizations (id, name, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	var idStr string
	if err := tx.QueryRow(
		ctx,
		query,
		org.ID().String(),
		org.Name(),
		org.OwnerID().String(),
		org.CreatedAt(),
		org.UpdatedAt(),
	).Scan(&idStr); err != nil {
		return nil, serrors.MapPgError(err, "organization")
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *OrganizationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id.String())
	return err
}

func (r *OrganizationRepository) queryOrganizations(ctx context.Context, query string, args ...any) ([]*organization.Organization, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var orgs []*organization.Organization
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.OwnerID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan organization row")
		}
		org, err := toDomainOrganization(&o)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return orgs, nil
}
