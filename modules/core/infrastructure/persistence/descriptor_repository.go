package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/complium/complium/modules/core/domain/entities/descriptor"
	"github.com/complium/complium/modules/core/infrastructure/persistence/models"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/serrors"
)

type DescriptorRepository struct{}

func NewDescriptorRepository() descriptor.Repository {
	return &DescriptorRepository{}
}

func (r *DescriptorRepository) GetByOrgID(ctx context.Context, orgID uuid.UUID) (*descriptor.Descriptor, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	var d models.TenantDescriptor
	err = tx.QueryRow(ctx, `
		SELECT org_id, host, port, db_user, db_password, db_name, conn_string, created_at
		FROM tenant_descriptors
		WHERE org_id = $1
	`, orgID.String()).Scan(
		&d.OrgID,
		&d.Host,
		&d.Port,
		&d.DBUser,
		&d.DBPassword,
		&d.DBName,
		&d.ConnString,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, serrors.NewNotFound("tenant descriptor", err)
		}
		return nil, errors.Wrap(err, "failed to query tenant descriptor")
	}
	return toDomainDescriptor(&d)
}

func (r *DescriptorRepository) Create(ctx context.Context, d *descriptor.Descriptor) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO tenant_descriptors (org_id, host, port, db_user, db_password, db_name, conn_string, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		d.OrgID().String(),
		d.Host(),
		d.Port(),
		d.User(),
		d.Password(),
		d.DBName(),
		d.ConnString(),
		d.CreatedAt(),
	)
	if err != nil {
		return serrors.MapPgError(err, "tenant descriptor")
	}
	return nil
}
