package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/complium/complium/modules/audit/domain/entities/issue"
	"github.com/complium/complium/modules/audit/domain/entities/process"
	"github.com/complium/complium/modules/audit/domain/entities/sprint"
	"github.com/complium/complium/modules/core/domain/access"
	coreservices "github.com/complium/complium/modules/core/services"
	"github.com/complium/complium/pkg/cache"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/eventbus"
	"github.com/complium/complium/pkg/serrors"
	"github.com/complium/complium/pkg/tenantdb"
)

func issueKey(orgID, issueID uuid.UUID) string {
	return fmt.Sprintf("org:%s:issues:%s", orgID, issueID)
}

func processIssuesKey(orgID, processID uuid.UUID, view string) string {
	return processIssuesPrefix(orgID, processID) + view
}

func processIssuesPrefix(orgID, processID uuid.UUID) string {
	return fmt.Sprintf("org:%s:processes:%s:issues:", orgID, processID)
}

func sprintIssuesKey(orgID, sprintID uuid.UUID) string {
	return fmt.Sprintf("org:%s:sprints:%s:issues", orgID, sprintID)
}

// cachedIssue carries the resolved parent site alongside the issue so a
// cache hit can be authorized without re-resolving the scope.
type cachedIssue struct {
	Issue  *issue.Issue `json:"issue"`
	SiteID uuid.UUID    `json:"siteId"`
}

// IssueCreateParams is the caller-supplied portion of a new issue. Status
// is derived from SprintID, never supplied.
type IssueCreateParams struct {
	ProcessID   uuid.UUID
	Title       string
	Description string
	SprintID    *uuid.UUID
	Position    int
	AssigneeID  *uuid.UUID
	Tags        []string
	Issuer      *uuid.UUID
	Verifier    *uuid.UUID
	Deadline    *time.Time
}

// IssueService runs the issue workflow against the caller's tenant store:
// lease a connection, resolve the process's parent site, authorize, execute,
// keep the response cache coherent.
type IssueService struct {
	registry  *tenantdb.PoolRegistry
	issues    issue.Repository
	processes process.Repository
	sprints   sprint.Repository
	access    *coreservices.AccessService
	cache     cache.Cache
	ttl       time.Duration
	publisher eventbus.EventBus
	now       func() time.Time
}

func NewIssueService(
	registry *tenantdb.PoolRegistry,
	issues issue.Repository,
	processes process.Repository,
	sprints sprint.Repository,
	accessService *coreservices.AccessService,
	responseCache cache.Cache,
	ttl time.Duration,
	publisher eventbus.EventBus,
) *IssueService {
	return &IssueService{
		registry:  registry,
		issues:    issues,
		processes: processes,
		sprints:   sprints,
		access:    accessService,
		cache:     responseCache,
		ttl:       ttl,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *IssueService) GetByID(ctx context.Context, id uuid.UUID) (*issue.Issue, error) {
	rc, err := composables.UseRequestContext(ctx)
	if err != nil {
		return nil, err
	}

	if data, ok := s.cache.Get(ctx, issueKey(rc.OrgID, id)); ok {
		var cached cachedIssue
		if err := json.Unmarshal(data, &cached); err == nil {
			// Top leadership spans every scope; a cache hit needs no
			// tenant connection at all.
			if rc.IsOwner || rc.Tier == access.TierTop {
				return cached.Issue, nil
			}
			ctx, release, err := s.lease(ctx, rc.OrgID)
			if err != nil {
				return nil, err
			}
			defer release()
			scope := access.ProcessScope(cached.SiteID, cached.Issue.ProcessID)
			if err := s.access.Authorize(ctx, rc, scope); err != nil {
				return nil, err
			}
			return cached.Issue, nil
		}
	}

	ctx, release, err := s.lease(ctx, rc.OrgID)
	if err != nil {
		return nil, err
	}
	defer release()

	iss, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	scope, err := s.resolveScope(ctx, iss.ProcessID)
	if err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, rc, scope); err != nil {
		return nil, err
	}
	s.cacheIssue(ctx, rc.OrgID, iss, *scope.SiteID)
	return iss, nil
}

func (s *IssueService) ListByProcess(ctx context.Context, processID uuid.UUID) ([]*issue.Issue, error) {
	return s.listProcessView(ctx, processID, "all", s.issues.ListByProcess)
}

// ListBacklog returns the process's to-do issues outside any sprint.
func (s *IssueService) ListBacklog(ctx context.Context, processID uuid.UUID) ([]*issue.Issue, error) {
	return s.listProcessView(ctx, processID, "backlog", s.issues.ListBacklog)
}

func (s *IssueService) ListBySprint(ctx context.Context, sprintID uuid.UUID) ([]*issue.Issue, error) {
	rc, err := composables.UseRequestContext(ctx)
	if err != nil {
		return nil, err
	}
	ctx, release, err := s.lease(ctx, rc.OrgID)
	if err != nil {
		return nil, err
	}
	defer release()

	spr, err := s.sprints.GetByID(ctx, sprintID)
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

	key := sprintIssuesKey(rc.OrgID, sprintID)
	if data, ok := s.cache.Get(ctx, key); ok {
		var issues []*issue.Issue
		if err := json.Unmarshal(data, &issues); err == nil {
			return issues, nil
		}
	}

	issues, err := s.issues.ListBySprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	s.cacheList(ctx, key, issues)
	return issues, nil
}

func (s *IssueService) Create(ctx context.Context, params IssueCreateParams) (*issue.Issue, error) {
	rc, err := composables.UseRequestContext(ctx)
	if err != nil {
		return nil, err
	}
	if params.Title == "" {
		return nil, serrors.NewFieldRequired("title")
	}

	ctx, release, err := s.lease(ctx, rc.OrgID)
	if err != nil {
		return nil, err
	}
	defer release()

	scope, err := s.resolveScope(ctx, params.ProcessID)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeIssueCreate(ctx, rc, scope); err != nil {
		return nil, err
	}

	status := issue.StatusToDo
	if params.SprintID != nil {
		if err := s.checkSprint(ctx, *params.SprintID, params.ProcessID); err != nil {
			return nil, err
		}
		status = issue.StatusInProgress
	}

	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}
	now := s.now()
	iss := &issue.Issue{
		ID:          uuid.New(),
		ProcessID:   params.ProcessID,
		Title:       params.Title,
		Description: params.Description,
		Status:      status,
		SprintID:    params.SprintID,
		Position:    params.Position,
		AssigneeID:  params.AssigneeID,
		Tags:        tags,
		Issuer:      params.Issuer,
		Verifier:    params.Verifier,
		Deadline:    params.Deadline,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.issues.Create(ctx, iss); err != nil {
		return nil, err
	}

	s.invalidate(ctx, rc.OrgID, iss)
	s.cacheIssue(ctx, rc.OrgID, iss, *scope.SiteID)
	s.publisher.Publish(issue.CreatedEvent{Issue: iss})
	return iss, nil
}

func (s *IssueService) Update(ctx context.Context, id uuid.UUID, patch issue.Patch) (*issue.Issue, error) {
	rc, err := composables.UseRequestContext(ctx)
	if err != nil {
		return nil, err
	}
	ctx, release, err := s.lease(ctx, rc.OrgID)
	if err != nil {
		return nil, err
	}
	defer release()

	iss, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	scope, err := s.resolveScope(ctx, iss.ProcessID)
	if err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, rc, scope); err != nil {
		return nil, err
	}

	if patch.Sprint != nil && patch.Sprint.SprintID != nil {
		if err := s.checkSprint(ctx, *patch.Sprint.SprintID, iss.ProcessID); err != nil {
			return nil, err
		}
	}

	before := *iss
	if err := iss.Apply(patch, s.now()); err != nil {
		return nil, err
	}
	if err := s.issues.Update(ctx, iss); err != nil {
		return nil, err
	}

	s.invalidate(ctx, rc.OrgID, &before)
	s.invalidate(ctx, rc.OrgID, iss)
	s.cacheIssue(ctx, rc.OrgID, iss, *scope.SiteID)
	s.publisher.Publish(issue.UpdatedEvent{Before: &before, After: iss})
	return iss, nil
}

func (s *IssueService) Delete(ctx context.Context, id uuid.UUID) error {
	rc, err := composables.UseRequestContext(ctx)
	if err != nil {
		return err
	}
	ctx, release, err := s.lease(ctx, rc.OrgID)
	if err != nil {
		return err
	}
	defer release()

	iss, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return err
	}
	scope, err := s.resolveScope(ctx, iss.ProcessID)
	if err != nil {
		return err
	}
	if err := s.access.Authorize(ctx, rc, scope); err != nil {
		return err
	}
	if err := s.issues.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, rc.OrgID, iss)
	s.publisher.Publish(issue.DeletedEvent{Issue: iss})
	return nil
}

func (s *IssueService) listProcessView(
	ctx context.Context,
	processID uuid.UUID,
	view string,
	list func(context.Context, uuid.UUID) ([]*issue.Issue, error),
) ([]*issue.Issue, error) {
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

	key := processIssuesKey(rc.OrgID, processID, view)
	if data, ok := s.cache.Get(ctx, key); ok {
		var issues []*issue.Issue
		if err := json.Unmarshal(data, &issues); err == nil {
			return issues, nil
		}
	}

	issues, err := list(ctx, processID)
	if err != nil {
		return nil, err
	}
	s.cacheList(ctx, key, issues)
	return issues, nil
}

func (s *IssueService) lease(ctx context.Context, orgID uuid.UUID) (context.Context, func(), error) {
	return leaseFn(ctx, s.registry, orgID)
}

func (s *IssueService) resolveScope(ctx context.Context, processID uuid.UUID) (access.Scope, error) {
	proc, err := s.processes.GetByID(ctx, processID)
	if err != nil {
		return access.Scope{}, err
	}
	return access.ProcessScope(proc.SiteID(), processID), nil
}

// checkSprint enforces that a sprint referenced by an issue belongs to the
// issue's own process.
func (s *IssueService) checkSprint(ctx context.Context, sprintID, processID uuid.UUID) error {
	spr, err := s.sprints.GetByID(ctx, sprintID)
	if err != nil {
		return err
	}
	if spr.ProcessID() != processID {
		return serrors.NewValidation("sprint belongs to a different process")
	}
	return nil
}

func (s *IssueService) cacheIssue(ctx context.Context, orgID uuid.UUID, iss *issue.Issue, siteID uuid.UUID) {
	raw, err := json.Marshal(cachedIssue{Issue: iss, SiteID: siteID})
	if err != nil {
		return
	}
	s.cache.Set(ctx, issueKey(orgID, iss.ID), raw, s.ttl)
}

func (s *IssueService) cacheList(ctx context.Context, key string, issues []*issue.Issue) {
	raw, err := json.Marshal(issues)
	if err != nil {
		return
	}
	s.cache.Set(ctx, key, raw, s.ttl)
}

func (s *IssueService) invalidate(ctx context.Context, orgID uuid.UUID, iss *issue.Issue) {
	s.cache.Delete(ctx, issueKey(orgID, iss.ID))
	s.cache.ClearPattern(ctx, processIssuesPrefix(orgID, iss.ProcessID)+"*")
	if iss.SprintID != nil {
		s.cache.Delete(ctx, sprintIssuesKey(orgID, *iss.SprintID))
	}
}
