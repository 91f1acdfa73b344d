package process

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Process is an auditable activity under one site. Support-tier access is
// scoped by process assignments, and issues belong to processes.
type Process struct {
	id        uuid.UUID
	siteID    uuid.UUID
	name      string
	createdAt time.Time
}

type Option func(*Process)

func WithID(id uuid.UUID) Option {
	return func(p *Process) {
		p.id = id
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(p *Process) {
		p.createdAt = createdAt
	}
}

func New(siteID uuid.UUID, name string, opts ...Option) *Process {
	p := &Process{
		id:        uuid.New(),
		siteID:    siteID,
		name:      name,
		createdAt: time.Now(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Process) ID() uuid.UUID        { return p.id }
func (p *Process) SiteID() uuid.UUID    { return p.siteID }
func (p *Process) Name() string         { return p.name }
func (p *Process) CreatedAt() time.Time { return p.createdAt }

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Process, error)
	ListBySite(ctx context.Context, siteID uuid.UUID) ([]*Process, error)
	Create(ctx context.Context, p *Process) error
	Delete(ctx context.Context, id uuid.UUID) error
}
