package issue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/complium/complium/pkg/serrors"
)

type Status string

const (
	StatusToDo       Status = "to-do"
	StatusInProgress Status = "in-progress"
	StatusInReview   Status = "in-review"
	StatusDone       Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusInReview, StatusDone:
		return true
	default:
		return false
	}
}

// Issue is a compliance finding tracked under one process. Issuer,
// Verifier and Deadline are review metadata that older tenant schemas
// lack; they decode as nil there.
type Issue struct {
	ID          uuid.UUID  `json:"id"`
	ProcessID   uuid.UUID  `json:"processId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	SprintID    *uuid.UUID `json:"sprintId"`
	Position    int        `json:"position"`
	AssigneeID  *uuid.UUID `json:"assigneeId,omitempty"`
	Tags        []string   `json:"tags"`
	Issuer      *uuid.UUID `json:"issuer,omitempty"`
	Verifier    *uuid.UUID `json:"verifier,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// InBacklog reports whether the issue sits in the backlog: to-do and not
// in any sprint. The two always move together.
func (i *Issue) InBacklog() bool {
	return i.Status == StatusToDo && i.SprintID == nil
}

// SprintChange distinguishes "set sprint to X", "clear sprint" (nil
// SprintID) and "leave the sprint alone" (nil SprintChange on the patch).
type SprintChange struct {
	SprintID *uuid.UUID
}

// Patch carries a partial update: nil fields keep their prior values.
type Patch struct {
	Title       *string
	Description *string
	Status      *Status
	Sprint      *SprintChange
	Position    *int
	AssigneeID  *uuid.UUID
	Tags        []string
	Issuer      *uuid.UUID
	Verifier    *uuid.UUID
	Deadline    *time.Time
}

// Apply mutates the issue with the patch, enforcing the sprint/status
// invariant: entering a sprint forces in-progress, leaving one forces
// to-do, and a sprint change in the same patch overrides any explicit
// status value.
func (i *Issue) Apply(p Patch, now time.Time) error {
	if p.Title != nil {
		if *p.Title == "" {
			return serrors.NewFieldRequired("title")
		}
		i.Title = *p.Title
	}
	if p.Description != nil {
		i.Description = *p.Description
	}
	if p.Position != nil {
		i.Position = *p.Position
	}
	if p.AssigneeID != nil {
		i.AssigneeID = p.AssigneeID
	}
	if p.Tags != nil {
		i.Tags = p.Tags
	}
	if p.Issuer != nil {
		i.Issuer = p.Issuer
	}
	if p.Verifier != nil {
		i.Verifier = p.Verifier
	}
	if p.Deadline != nil {
		i.Deadline = p.Deadline
	}

	switch {
	case p.Sprint != nil:
		i.SprintID = p.Sprint.SprintID
		if p.Sprint.SprintID != nil {
			i.Status = StatusInProgress
		} else {
			i.Status = StatusToDo
		}
	case p.Status != nil:
		if !p.Status.Valid() {
			return serrors.NewValidation(fmt.Sprintf("unknown status %q", *p.Status))
		}
		i.Status = *p.Status
	}

	i.UpdatedAt = now
	return nil
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Issue, error)
	ListByProcess(ctx context.Context, processID uuid.UUID) ([]*Issue, error)
	ListBySprint(ctx context.Context, sprintID uuid.UUID) ([]*Issue, error)
	ListBacklog(ctx context.Context, processID uuid.UUID) ([]*Issue, error)
	Create(ctx context.Context, i *Issue) error
	Update(ctx context.Context, i *Issue) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ReleaseSprint moves every issue on the sprint back to the backlog
	// and returns the ids of the issues it touched.
	ReleaseSprint(ctx context.Context, sprintID uuid.UUID) ([]uuid.UUID, error)
}

type UpdatedEvent struct {
	Before *Issue
	After  *Issue
}

type CreatedEvent struct {
	Issue *Issue
}

type DeletedEvent struct {
	Issue *Issue
}
