package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/complium/complium/modules/audit/domain/entities/issue"
	"github.com/complium/complium/modules/audit/domain/entities/process"
	"github.com/complium/complium/modules/audit/domain/entities/sprint"
	"github.com/complium/complium/modules/core/domain/access"
	coreservices "github.com/complium/complium/modules/core/services"
	"github.com/complium/complium/pkg/cache"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/serrors"
	"github.com/complium/complium/pkg/tenantdb"
)

// SprintService manages sprints under processes.
type SprintService struct {
	registry  *tenantdb.PoolRegistry
	sprints   sprint.Repository
	processes process.Repository
	issues    issue.Repository
	access    *coreservices.AccessService
	cache     cache.Cache
}

func NewSprintService(
	registry *tenantdb.PoolRegistry,
	sprints sprint.Repository,
	processes process.Repository,
	issues issue.Repository,
	accessService *coreservices.AccessService,
	responseCache cache.Cache,
) *SprintService {
	return &SprintService{
		registry:  registry,
		sprints:   sprints,
		processes: processes,
		issues:    issues,
		access:    accessService,
		cache:     responseCache,
	}
}

func (s *SprintService) Create(ctx context.Context, processID uuid.UUID, name string, startsAt, endsAt *time.Time) (*sprint.Sprint, error) {
	rc, err := composables.UseRequestContext(ctx)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, serrors.NewFieldRequired("name")
	}
	if startsAt != nil && endsAt != nil && endsAt.Before(*startsAt) {
		return nil, serrors.NewValidation("sprint ends before it starts")
	}
	ctx, release, err := s.lease(ctx, rc.OrgID)
	if err != nil {
		return nil, err
	}
	defer release()

	scope, err := s.resolveScope(ctx, processID)
	if err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, rc, scope); err != nil {
		return nil, err
	}

	created := sprint.New(processID, name, sprint.WithWindow(startsAt, endsAt))
	if err := s.sprints.Create(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *SprintService) GetByID(ctx context.Context, id uuid.UUID) (*sprint.Sprint, error) {
	rc, err := composables.UseRequestContext(ctx)
	if err != nil {
		return nil, err
	}
	ctx, release, err := s.lease(ctx, rc.OrgID)
	if err != nil {
		return nil, err
	}
	defer release()

	spr, err := s.sprints.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	scope, err := s.resolveScope(ctx, spr.ProcessID())
	if err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, rc, scope); err != nil {
		return nil, err
	}
	return spr, nil
}

func (s *SprintService) ListByProcess(ctx context.Context, processID uuid.UUID) ([]*sprint.Sprint, error) {
	rc, err := composables.UseRequestContext(ctx)
	if err != nil {
		return nil, err
	}
	ctx, release, err := s.lease(ctx, rc.OrgID)
	if err != nil {
		return nil, err
	}
	defer release()

	scope, err := s.resolveScope(ctx, processID)
	if err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, rc, scope); err != nil {
		return nil, err
	}
	return s.sprints.ListByProcess(ctx, processID)
}

func (s *SprintService) Delete(ctx context.Context, id uuid.UUID) error {
	rc, err := composables.UseRequestContext(ctx)
	if err != nil {
		return err
	}
	ctx, release, err := s.lease(ctx, rc.OrgID)
	if err != nil {
		return err
	}
	defer release()

	spr, err := s.sprints.GetByID(ctx, id)
	if err != nil {
		return err
	}
	scope, err := s.resolveScope(ctx, spr.ProcessID())
	if err != nil {
		return err
	}
	if err := s.access.Authorize(ctx, rc, scope); err != nil {
		return err
	}

	// Issues still on the sprint drop back to the backlog before the sprint
	// row goes away, so sprint_id and status move together.
	released, err := s.issues.ReleaseSprint(ctx, id)
	if err != nil {
		return err
	}
	if err := s.sprints.Delete(ctx, id); err != nil {
		return err
	}

	for _, issueID := range released {
		s.cache.Delete(ctx, issueKey(rc.OrgID, issueID))
	}
	s.cache.ClearPattern(ctx, processIssuesPrefix(rc.OrgID, spr.ProcessID())+"*")
	s.cache.Delete(ctx, sprintIssuesKey(rc.OrgID, id))
	return nil
}

func (s *SprintService) resolveScope(ctx context.Context, processID uuid.UUID) (access.Scope, error) {
	proc, err := s.processes.GetByID(ctx, processID)
	if err != nil {
		return access.Scope{}, err
	}
	return access.ProcessScope(proc.SiteID(), processID), nil
}

func (s *SprintService) lease(ctx context.Context, orgID uuid.UUID) (context.Context, func(), error) {
	return leaseFn(ctx, s.registry, orgID)
}
