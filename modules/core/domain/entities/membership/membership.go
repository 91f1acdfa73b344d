package membership

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/complium/complium/modules/core/domain/access"
)

const RoleOwner = "owner"

// Membership links an actor to an organization with a role and a leadership
// tier. The organization's owner is always effectively top tier regardless
// of the stored value.
type Membership struct {
	actorID   uuid.UUID
	orgID     uuid.UUID
	role      string
	tier      access.LeadershipTier
	createdAt time.Time
}

type Option func(*Membership)

func WithTier(tier access.LeadershipTier) Option {
	return func(m *Membership) {
		m.tier = tier
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(m *Membership) {
		m.createdAt = createdAt
	}
}

func New(actorID, orgID uuid.UUID, role string, opts ...Option) *Membership {
	m := &Membership{
		actorID:   actorID,
		orgID:     orgID,
		role:      role,
		tier:      access.TierFromRole(role),
		createdAt: time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Membership) ActorID() uuid.UUID          { return m.actorID }
func (m *Membership) OrgID() uuid.UUID            { return m.orgID }
func (m *Membership) Role() string                { return m.role }
func (m *Membership) Tier() access.LeadershipTier { return m.tier }
func (m *Membership) CreatedAt() time.Time        { return m.createdAt }

// EffectiveTier resolves the tier the authorization rules should see. A
// membership missing a stored tier falls back to the legacy role mapping.
func (m *Membership) EffectiveTier(isOwner bool) access.LeadershipTier {
	if isOwner {
		return access.TierTop
	}
	if m.tier != access.TierUnknown {
		return m.tier
	}
	return access.TierFromRole(m.role)
}

type Repository interface {
	Get(ctx context.Context, actorID, orgID uuid.UUID) (*Membership, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*Membership, error)
	Create(ctx context.Context, m *Membership) error
	Delete(ctx context.Context, actorID, orgID uuid.UUID) error
}
