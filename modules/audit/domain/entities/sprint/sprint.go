package sprint

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sprint is a time-boxed batch of issues within one process.
type Sprint struct {
	id        uuid.UUID
	processID uuid.UUID
	name      string
	startsAt  *time.Time
	endsAt    *time.Time
}

type Option func(*Sprint)

func WithID(id uuid.UUID) Option {
	return func(s *Sprint) {
		s.id = id
	}
}

func WithWindow(startsAt, endsAt *time.Time) Option {
	return func(s *Sprint) {
		s.startsAt = startsAt
		s.endsAt = endsAt
	}
}

func New(processID uuid.UUID, name string, opts ...Option) *Sprint {
	s := &Sprint{
		id:        uuid.New(),
		processID: processID,
		name:      name,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sprint) ID() uuid.UUID        { return s.id }
func (s *Sprint) ProcessID() uuid.UUID { return s.processID }
func (s *Sprint) Name() string         { return s.name }
func (s *Sprint) StartsAt() *time.Time { return s.startsAt }
func (s *Sprint) EndsAt() *time.Time   { return s.endsAt }

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Sprint, error)
	ListByProcess(ctx context.Context, processID uuid.UUID) ([]*Sprint, error)
	Create(ctx context.Context, s *Sprint) error
	Delete(ctx context.Context, id uuid.UUID) error
}
