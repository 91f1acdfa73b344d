package organization

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Organization is a customer account on the control plane. Each organization
// owns exactly one isolated tenant database, and each actor may own at most
// one organization.
type Organization struct {
	id        uuid.UUID
	name      string
	ownerID   uuid.UUID
	createdAt time.Time
	updatedAt time.Time
}

type Option func(*Organization)

func WithID(id uuid.UUID) Option {
	return func(o *Organization) {
		o.id = id
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(o *Organization) {
		o.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(o *Organization) {
		o.updatedAt = updatedAt
	}
}

func New(name string, ownerID uuid.UUID, opts ...Option) *Organization {
	o := &Organization{
		id:        uuid.New(),
		name:      name,
		ownerID:   ownerID,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Organization) ID() uuid.UUID        { return o.id }
func (o *Organization) Name() string         { return o.name }
func (o *Organization) OwnerID() uuid.UUID   { return o.ownerID }
func (o *Organization) CreatedAt() time.Time { return o.createdAt }
func (o *Organization) UpdatedAt() time.Time { return o.updatedAt }

func (o *Organization) SetName(name string) {
	o.name = name
	o.updatedAt = time.Now()
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*Organization, error)
	Create(ctx context.Context, org *Organization) (*Organization, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type CreatedEvent struct {
	Org *Organization
}

func NewCreatedEvent(org *Organization) *CreatedEvent {
	return &CreatedEvent{Org: org}
}
