package site

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Site is an organizational location inside one tenant. Operational-tier
// access is scoped by site assignments.
type Site struct {
	id        uuid.UUID
	name      string
	createdAt time.Time
}

type Option func(*Site)

func WithID(id uuid.UUID) Option {
	return func(s *Site) {
		s.id = id
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(s *Site) {
		s.createdAt = createdAt
	}
}

func New(name string, opts ...Option) *Site {
	s := &Site{
		id:        uuid.New(),
		name:      name,
		createdAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Site) ID() uuid.UUID        { return s.id }
func (s *Site) Name() string         { return s.name }
func (s *Site) CreatedAt() time.Time { return s.createdAt }

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Site, error)
	List(ctx context.Context) ([]*Site, error)
	Create(ctx context.Context, s *Site) error
	Delete(ctx context.Context, id uuid.UUID) error
}
