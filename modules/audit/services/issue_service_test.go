package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/complium/complium/modules/audit/domain/entities/issue"
	"github.com/complium/complium/modules/audit/domain/entities/process"
	"github.com/complium/complium/modules/audit/domain/entities/site"
	"github.com/complium/complium/modules/audit/domain/entities/sprint"
	"github.com/complium/complium/modules/core/domain/access"
	coreservices "github.com/complium/complium/modules/core/services"
	"github.com/complium/complium/pkg/cache"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/eventbus"
	"github.com/complium/complium/pkg/serrors"
	"github.com/complium/complium/pkg/tenantdb"
)

type fakeIssueRepo struct {
	issues   map[uuid.UUID]*issue.Issue
	getCalls int
}

func newFakeIssueRepo() *fakeIssueRepo {
	return &fakeIssueRepo{issues: make(map[uuid.UUID]*issue.Issue)}
}

func (f *fakeIssueRepo) GetByID(_ context.Context, id uuid.UUID) (*issue.Issue, error) {
	f.getCalls++
	iss, ok := f.issues[id]
	if !ok {
		return nil, serrors.NewNotFound("issue", nil)
	}
	copied := *iss
	return &copied, nil
}

func (f *fakeIssueRepo) ListByProcess(_ context.Context, processID uuid.UUID) ([]*issue.Issue, error) {
	var out []*issue.Issue
	for _, iss := range f.issues {
		if iss.ProcessID == processID {
			copied := *iss
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeIssueRepo) ListBySprint(_ context.Context, sprintID uuid.UUID) ([]*issue.Issue, error) {
	var out []*issue.Issue
	for _, iss := range f.issues {
		if iss.SprintID != nil && *iss.SprintID == sprintID {
			copied := *iss
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeIssueRepo) ListBacklog(_ context.Context, processID uuid.UUID) ([]*issue.Issue, error) {
	var out []*issue.Issue
	for _, iss := range f.issues {
		if iss.ProcessID == processID && iss.InBacklog() {
			copied := *iss
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeIssueRepo) Create(_ context.Context, iss *issue.Issue) error {
	copied := *iss
	f.issues[iss.ID] = &copied
	return nil
}

func (f *fakeIssueRepo) Update(_ context.Context, iss *issue.Issue) error {
	if _, ok := f.issues[iss.ID]; !ok {
		return serrors.NewNotFound("issue", nil)
	}
	copied := *iss
	f.issues[iss.ID] = &copied
	return nil
}

func (f *fakeIssueRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.issues[id]; !ok {
		return serrors.NewNotFound("issue", nil)
	}
	delete(f.issues, id)
	return nil
}

func (f *fakeIssueRepo) ReleaseSprint(_ context.Context, sprintID uuid.UUID) ([]uuid.UUID, error) {
	var released []uuid.UUID
	for _, iss := range f.issues {
		if iss.SprintID != nil && *iss.SprintID == sprintID {
			iss.SprintID = nil
			iss.Status = issue.StatusToDo
			released = append(released, iss.ID)
		}
	}
	return released, nil
}

type fakeProcessRepo struct {
	processes map[uuid.UUID]*process.Process
}

func (f *fakeProcessRepo) GetByID(_ context.Context, id uuid.UUID) (*process.Process, error) {
	p, ok := f.processes[id]
	if !ok {
		return nil, serrors.NewNotFound("process", nil)
	}
	return p, nil
}

func (f *fakeProcessRepo) ListBySite(_ context.Context, siteID uuid.UUID) ([]*process.Process, error) {
	var out []*process.Process
	for _, p := range f.processes {
		if p.SiteID() == siteID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProcessRepo) Create(_ context.Context, p *process.Process) error {
	f.processes[p.ID()] = p
	return nil
}

func (f *fakeProcessRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.processes, id)
	return nil
}

type fakeSprintRepo struct {
	sprints map[uuid.UUID]*sprint.Sprint
}

func (f *fakeSprintRepo) GetByID(_ context.Context, id uuid.UUID) (*sprint.Sprint, error) {
	s, ok := f.sprints[id]
	if !ok {
		return nil, serrors.NewNotFound("sprint", nil)
	}
	return s, nil
}

func (f *fakeSprintRepo) ListByProcess(_ context.Context, processID uuid.UUID) ([]*sprint.Sprint, error) {
	var out []*sprint.Sprint
	for _, s := range f.sprints {
		if s.ProcessID() == processID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSprintRepo) Create(_ context.Context, s *sprint.Sprint) error {
	f.sprints[s.ID()] = s
	return nil
}

func (f *fakeSprintRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.sprints, id)
	return nil
}

type fakeAssignments struct {
	sites     map[uuid.UUID]uuid.UUID
	processes map[uuid.UUID]uuid.UUID
}

func (f *fakeAssignments) HasSiteAssignment(_ context.Context, actorID, siteID uuid.UUID) (bool, error) {
	return f.sites[actorID] == siteID, nil
}

func (f *fakeAssignments) HasProcessAssignment(_ context.Context, actorID, processID uuid.UUID) (bool, error) {
	return f.processes[actorID] == processID, nil
}

type issueFixture struct {
	svc         *IssueService
	issues      *fakeIssueRepo
	processes   *fakeProcessRepo
	sprints     *fakeSprintRepo
	assignments *fakeAssignments
	cache       cache.Cache
	publisher   eventbus.EventBus

	orgID     uuid.UUID
	siteID    uuid.UUID
	processID uuid.UUID
}

func newIssueFixture(t *testing.T) *issueFixture {
	t.Helper()

	// Repositories are faked, so no real tenant connection is needed.
	prev := leaseFn
	leaseFn = func(ctx context.Context, _ *tenantdb.PoolRegistry, _ uuid.UUID) (context.Context, func(), error) {
		return ctx, func() {}, nil
	}
	t.Cleanup(func() { leaseFn = prev })

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	parentSite := site.New("Headquarters")
	proc := process.New(parentSite.ID(), "General Compliance")

	f := &issueFixture{
		issues:      newFakeIssueRepo(),
		processes:   &fakeProcessRepo{processes: map[uuid.UUID]*process.Process{proc.ID(): proc}},
		sprints:     &fakeSprintRepo{sprints: make(map[uuid.UUID]*sprint.Sprint)},
		assignments: &fakeAssignments{sites: make(map[uuid.UUID]uuid.UUID), processes: make(map[uuid.UUID]uuid.UUID)},
		cache:       cache.NewMemoryCache(),
		publisher:   eventbus.NewEventPublisher(logger),
		orgID:       uuid.New(),
		siteID:      parentSite.ID(),
		processID:   proc.ID(),
	}
	f.svc = NewIssueService(
		nil, f.issues, f.processes, f.sprints,
		coreservices.NewAccessService(f.assignments),
		f.cache, time.Minute, f.publisher,
	)
	return f
}

func (f *issueFixture) ctxFor(rc *access.RequestContext) context.Context {
	return composables.WithRequestContext(context.Background(), rc)
}

func (f *issueFixture) topCtx() context.Context {
	return f.ctxFor(&access.RequestContext{ActorID: uuid.New(), OrgID: f.orgID, Tier: access.TierTop})
}

func (f *issueFixture) operationalCtx(siteID uuid.UUID) context.Context {
	actorID := uuid.New()
	f.assignments.sites[actorID] = siteID
	return f.ctxFor(&access.RequestContext{ActorID: actorID, OrgID: f.orgID, Tier: access.TierOperational})
}

func (f *issueFixture) supportCtx(processID uuid.UUID) context.Context {
	actorID := uuid.New()
	f.assignments.processes[actorID] = processID
	return f.ctxFor(&access.RequestContext{ActorID: actorID, OrgID: f.orgID, Tier: access.TierSupport})
}

func (f *issueFixture) addSprint(t *testing.T, processID uuid.UUID) *sprint.Sprint {
	t.Helper()
	s := sprint.New(processID, "Q3 fieldwork")
	require.NoError(t, f.sprints.Create(context.Background(), s))
	return s
}

func TestIssueCreate_DefaultsToBacklog(t *testing.T) {
	f := newIssueFixture(t)

	var published *issue.CreatedEvent
	f.publisher.Subscribe(func(e issue.CreatedEvent) { published = &e })

	created, err := f.svc.Create(f.topCtx(), IssueCreateParams{
		ProcessID: f.processID,
		Title:     "missing evidence for control 12",
	})
	require.NoError(t, err)
	require.Equal(t, issue.StatusToDo, created.Status)
	require.Nil(t, created.SprintID)
	require.True(t, created.InBacklog())
	require.NotNil(t, published)
	require.Equal(t, created.ID, published.Issue.ID)
}

func TestIssueCreate_WithSprintStartsInProgress(t *testing.T) {
	f := newIssueFixture(t)
	spr := f.addSprint(t, f.processID)
	sprintID := spr.ID()

	created, err := f.svc.Create(f.topCtx(), IssueCreateParams{
		ProcessID: f.processID,
		Title:     "late remediation",
		SprintID:  &sprintID,
	})
	require.NoError(t, err)
	require.Equal(t, issue.StatusInProgress, created.Status)
	require.Equal(t, &sprintID, created.SprintID)
}

func TestIssueCreate_EmptyTitleRejected(t *testing.T) {
	f := newIssueFixture(t)
	_, err := f.svc.Create(f.topCtx(), IssueCreateParams{ProcessID: f.processID})
	require.True(t, serrors.HasCode(err, serrors.CodeValidation))
}

func TestIssueCreate_UnknownProcessRejected(t *testing.T) {
	f := newIssueFixture(t)
	_, err := f.svc.Create(f.topCtx(), IssueCreateParams{ProcessID: uuid.New(), Title: "x"})
	require.True(t, serrors.HasCode(err, serrors.CodeNotFound))
}

func TestIssueCreate_SupportDenied(t *testing.T) {
	f := newIssueFixture(t)

	_, err := f.svc.Create(f.supportCtx(f.processID), IssueCreateParams{
		ProcessID: f.processID,
		Title:     "support cannot file this",
	})
	require.True(t, serrors.HasCode(err, serrors.CodeAuthorization))
	require.Equal(t, coreservices.ReasonSupportCreate, err.Error())
}

func TestIssueCreate_SprintFromOtherProcessRejected(t *testing.T) {
	f := newIssueFixture(t)
	otherProcess := process.New(f.siteID, "Vendor Review")
	require.NoError(t, f.processes.Create(context.Background(), otherProcess))
	foreign := f.addSprint(t, otherProcess.ID())
	foreignID := foreign.ID()

	_, err := f.svc.Create(f.topCtx(), IssueCreateParams{
		ProcessID: f.processID,
		Title:     "cross-process sprint",
		SprintID:  &foreignID,
	})
	require.True(t, serrors.HasCode(err, serrors.CodeValidation))
}

func TestIssueGetByID_SecondReadServedFromCache(t *testing.T) {
	f := newIssueFixture(t)
	created, err := f.svc.Create(f.topCtx(), IssueCreateParams{ProcessID: f.processID, Title: "cached"})
	require.NoError(t, err)

	f.issues.getCalls = 0
	got, err := f.svc.GetByID(f.topCtx(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, 0, f.issues.getCalls)
}

func TestIssueGetByID_OperationalScopeEnforced(t *testing.T) {
	f := newIssueFixture(t)
	created, err := f.svc.Create(f.topCtx(), IssueCreateParams{ProcessID: f.processID, Title: "scoped"})
	require.NoError(t, err)

	// Assigned to the issue's parent site: allowed.
	_, err = f.svc.GetByID(f.operationalCtx(f.siteID), created.ID)
	require.NoError(t, err)

	// Assigned elsewhere: denied, even when served from cache.
	_, err = f.svc.GetByID(f.operationalCtx(uuid.New()), created.ID)
	require.True(t, serrors.HasCode(err, serrors.CodeAuthorization))
	require.Equal(t, coreservices.ReasonNotAssignedSite, err.Error())
}

func TestIssueUpdate_SprintAssignmentForcesStatus(t *testing.T) {
	f := newIssueFixture(t)
	created, err := f.svc.Create(f.topCtx(), IssueCreateParams{ProcessID: f.processID, Title: "workflow"})
	require.NoError(t, err)
	spr := f.addSprint(t, f.processID)
	sprintID := spr.ID()

	var published *issue.UpdatedEvent
	f.publisher.Subscribe(func(e issue.UpdatedEvent) { published = &e })

	done := issue.StatusDone
	updated, err := f.svc.Update(f.topCtx(), created.ID, issue.Patch{
		Status: &done,
		Sprint: &issue.SprintChange{SprintID: &sprintID},
	})
	require.NoError(t, err)
	require.Equal(t, issue.StatusInProgress, updated.Status)

	require.NotNil(t, published)
	require.Equal(t, issue.StatusToDo, published.Before.Status)
	require.Equal(t, issue.StatusInProgress, published.After.Status)

	// Removing it from the sprint moves it back to the backlog.
	updated, err = f.svc.Update(f.topCtx(), created.ID, issue.Patch{Sprint: &issue.SprintChange{}})
	require.NoError(t, err)
	require.True(t, updated.InBacklog())
}

func TestIssueUpdate_RefreshesCache(t *testing.T) {
	f := newIssueFixture(t)
	created, err := f.svc.Create(f.topCtx(), IssueCreateParams{ProcessID: f.processID, Title: "before"})
	require.NoError(t, err)

	title := "after"
	_, err = f.svc.Update(f.topCtx(), created.ID, issue.Patch{Title: &title})
	require.NoError(t, err)

	f.issues.getCalls = 0
	got, err := f.svc.GetByID(f.topCtx(), created.ID)
	require.NoError(t, err)
	require.Equal(t, "after", got.Title)
	require.Equal(t, 0, f.issues.getCalls)
}

func TestIssueUpdate_SprintFromOtherProcessRejected(t *testing.T) {
	f := newIssueFixture(t)
	created, err := f.svc.Create(f.topCtx(), IssueCreateParams{ProcessID: f.processID, Title: "x"})
	require.NoError(t, err)
	otherProcess := process.New(f.siteID, "Vendor Review")
	require.NoError(t, f.processes.Create(context.Background(), otherProcess))
	foreign := f.addSprint(t, otherProcess.ID())
	foreignID := foreign.ID()

	_, err = f.svc.Update(f.topCtx(), created.ID, issue.Patch{
		Sprint: &issue.SprintChange{SprintID: &foreignID},
	})
	require.True(t, serrors.HasCode(err, serrors.CodeValidation))
}

func TestIssueDelete_RemovesAndInvalidates(t *testing.T) {
	f := newIssueFixture(t)
	created, err := f.svc.Create(f.topCtx(), IssueCreateParams{ProcessID: f.processID, Title: "doomed"})
	require.NoError(t, err)

	var published *issue.DeletedEvent
	f.publisher.Subscribe(func(e issue.DeletedEvent) { published = &e })

	require.NoError(t, f.svc.Delete(f.topCtx(), created.ID))
	require.NotNil(t, published)

	_, err = f.svc.GetByID(f.topCtx(), created.ID)
	require.True(t, serrors.HasCode(err, serrors.CodeNotFound))
}

func TestIssueListByProcess_CacheInvalidatedByWrites(t *testing.T) {
	f := newIssueFixture(t)
	_, err := f.svc.Create(f.topCtx(), IssueCreateParams{ProcessID: f.processID, Title: "first"})
	require.NoError(t, err)

	listed, err := f.svc.ListByProcess(f.topCtx(), f.processID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = f.svc.Create(f.topCtx(), IssueCreateParams{ProcessID: f.processID, Title: "second"})
	require.NoError(t, err)

	listed, err = f.svc.ListByProcess(f.topCtx(), f.processID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
}

func TestIssueListBacklog_OnlyBacklogIssues(t *testing.T) {
	f := newIssueFixture(t)
	spr := f.addSprint(t, f.processID)
	sprintID := spr.ID()

	_, err := f.svc.Create(f.topCtx(), IssueCreateParams{ProcessID: f.processID, Title: "in backlog"})
	require.NoError(t, err)
	_, err = f.svc.Create(f.topCtx(), IssueCreateParams{ProcessID: f.processID, Title: "sprinted", SprintID: &sprintID})
	require.NoError(t, err)

	backlog, err := f.svc.ListBacklog(f.topCtx(), f.processID)
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	require.Equal(t, "in backlog", backlog[0].Title)
}

func TestIssueListBySprint(t *testing.T) {
	f := newIssueFixture(t)
	spr := f.addSprint(t, f.processID)
	sprintID := spr.ID()

	_, err := f.svc.Create(f.topCtx(), IssueCreateParams{ProcessID: f.processID, Title: "sprinted", SprintID: &sprintID})
	require.NoError(t, err)

	listed, err := f.svc.ListBySprint(f.topCtx(), sprintID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	// Support staff assigned to the sprint's process may read it.
	listed, err = f.svc.ListBySprint(f.supportCtx(f.processID), sprintID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	// Support staff assigned to another process may not.
	_, err = f.svc.ListBySprint(f.supportCtx(uuid.New()), sprintID)
	require.True(t, serrors.HasCode(err, serrors.CodeAuthorization))
}
