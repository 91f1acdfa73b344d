package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/complium/complium/modules/core/domain/entities/membership"
	"github.com/complium/complium/modules/core/infrastructure/persistence/models"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/serrors"
)

const membershipFindQuery = `SELECT actor_id, org_id, role, tier, created_at FROM memberships`

type MembershipRepository struct{}

func NewMembershipRepository() membership.Repository {
	return &MembershipRepository{}
}

func (r *MembershipRepository) Get(ctx context.Context, actorID, orgID uuid.UUID) (*membership.Membership, error) {
	query := membershipFindQuery + " WHERE actor_id = $1 AND org_id = $2"
	memberships, err := r.queryMemberships(ctx, query, actorID.String(), orgID.String())
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, serrors.NewNotFound("membership", nil)
	}
	return memberships[0], nil
}

func (r *MembershipRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*membership.Membership, error) {
	query := membershipFindQuery + " WHERE org_id = $1 ORDER BY created_at"
	return r.queryMemberships(ctx, query, orgID.String())
}

func (r *MembershipRepository) Create(ctx context.Context, m *membership.Membership) error {
	query := `
		INSERT INTO memberships (actor_id, org_id, role, tier, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(
		ctx,
		query,
		m.ActorID().String(),
		m.OrgID().String(),
		m.Role(),
		string(m.Tier()),
		m.CreatedAt(),
	)
	if err != nil {
		return serrors.MapPgError(err, "membership")
	}
	return nil
}

func (r *MembershipRepository) Delete(ctx context.Context, actorID, orgID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM memberships WHERE actor_id = $1 AND org_id = $2`, actorID.String(), orgID.String())
	return err
}

func (r *MembershipRepository) queryMemberships(ctx context.Context, query string, args ...any) ([]*membership.Membership, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var memberships []*membership.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.ActorID, &m.OrgID, &m.Role, &m.Tier, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan membership row")
		}
		domain, err := toDomainMembership(&m)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, domain)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return memberships, nil
}
