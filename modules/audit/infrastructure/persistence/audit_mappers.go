package persistence

import (
	"database/sql"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/complium/complium/modules/audit/domain/entities/issue"
	"github.com/complium/complium/modules/audit/domain/entities/process"
	"github.com/complium/complium/modules/audit/domain/entities/site"
	"github.com/complium/complium/modules/audit/domain/entities/sprint"
	"github.com/complium/complium/modules/audit/infrastructure/persistence/models"
)

func toDomainSite(s *models.Site) (*site.Site, error) {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid site id")
	}
	return site.New(s.Name, site.WithID(id), site.WithCreatedAt(s.CreatedAt)), nil
}

func toDomainProcess(p *models.Process) (*process.Process, error) {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid process id")
	}
	siteID, err := uuid.Parse(p.SiteID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid process site id")
	}
	return process.New(siteID, p.Name, process.WithID(id), process.WithCreatedAt(p.CreatedAt)), nil
}

func toDomainSprint(s *models.Sprint) (*sprint.Sprint, error) {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid sprint id")
	}
	processID, err := uuid.Parse(s.ProcessID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid sprint process id")
	}
	return sprint.New(
		processID,
		s.Name,
		sprint.WithID(id),
		sprint.WithWindow(nullTimeToPointer(s.StartsAt), nullTimeToPointer(s.EndsAt)),
	), nil
}

func toDomainIssue(i *models.Issue) (*issue.Issue, error) {
	id, err := uuid.Parse(i.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid issue id")
	}
	processID, err := uuid.Parse(i.ProcessID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid issue process id")
	}
	sprintID, err := nullStringToUUIDPointer(i.SprintID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid issue sprint id")
	}
	assigneeID, err := nullStringToUUIDPointer(i.AssigneeID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid issue assignee id")
	}
	issuer, err := nullStringToUUIDPointer(i.Issuer)
	if err != nil {
		return nil, errors.Wrap(err, "invalid issue issuer")
	}
	verifier, err := nullStringToUUIDPointer(i.Verifier)
	if err != nil {
		return nil, errors.Wrap(err, "invalid issue verifier")
	}

	tags := i.Tags
	if tags == nil {
		tags = []string{}
	}

	return &issue.Issue{
		ID:          id,
		ProcessID:   processID,
		Title:       i.Title,
		Description: i.Description,
		Status:      issue.Status(i.Status),
		SprintID:    sprintID,
		Position:    i.Position,
		AssigneeID:  assigneeID,
		Tags:        tags,
		Issuer:      issuer,
		Verifier:    verifier,
		Deadline:    nullTimeToPointer(i.Deadline),
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}, nil
}

func nullTimeToPointer(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	value := t.Time
	return &value
}

func nullStringToUUIDPointer(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func uuidPointerToArg(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func timePointerToArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
