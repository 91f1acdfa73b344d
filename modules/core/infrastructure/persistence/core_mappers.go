package persistence

import (
	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/complium/complium/modules/core/domain/access"
	"github.com/complium/complium/modules/core/domain/entities/authtoken"
	"github.com/complium/complium/modules/core/domain/entities/descriptor"
	"github.com/complium/complium/modules/core/domain/entities/membership"
	"github.com/complium/complium/modules/core/domain/entities/organization"
	"github.com/complium/complium/modules/core/infrastructure/persistence/models"
)

func toDomainOrganization(o *models.Organization) (*organization.Organization, error) {
	id, err := uuid.Parse(o.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid organization id")
	}
	ownerID, err := uuid.Parse(o.OwnerID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid organization owner id")
	}
	return organization.New(
		o.Name,
		ownerID,
		organization.WithID(id),
		organization.WithCreatedAt(o.CreatedAt),
		organization.WithUpdatedAt(o.UpdatedAt),
	), nil
}

func toDomainMembership(m *models.Membership) (*membership.Membership, error) {
	actorID, err := uuid.Parse(m.ActorID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid membership actor id")
	}
	orgID, err := uuid.Parse(m.OrgID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid membership org id")
	}

	opts := []membership.Option{membership.WithCreatedAt(m.CreatedAt)}
	if m.Tier.Valid && m.Tier.String != "" {
		opts = append(opts, membership.WithTier(access.LeadershipTier(m.Tier.String)))
	}
	return membership.New(actorID, orgID, m.Role, opts...), nil
}

func toDomainDescriptor(d *models.TenantDescriptor) (*descriptor.Descriptor, error) {
	orgID, err := uuid.Parse(d.OrgID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid descriptor org id")
	}
	return descriptor.New(
		orgID,
		d.Host,
		d.Port,
		d.DBUser,
		d.DBPassword,
		d.DBName,
		d.ConnString,
		descriptor.WithCreatedAt(d.CreatedAt),
	), nil
}

func toDomainToken(t *models.AccessToken) (*authtoken.Token, error) {
	actorID, err := uuid.Parse(t.ActorID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid token actor id")
	}
	var expiresAt = t.ExpiresAt.Time
	return authtoken.New(t.TokenHash, actorID, expiresAt), nil
}
