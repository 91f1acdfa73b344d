package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/complium/complium/modules/audit/domain/entities/issue"
	"github.com/complium/complium/modules/audit/domain/entities/process"
	"github.com/complium/complium/modules/audit/domain/entities/site"
	"github.com/complium/complium/modules/audit/domain/entities/sprint"
	"github.com/complium/complium/modules/core/domain/access"
	coreservices "github.com/complium/complium/modules/core/services"
	"github.com/complium/complium/pkg/cache"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/serrors"
	"github.com/complium/complium/pkg/tenantdb"
)

type fakeSiteRepo struct {
	sites map[uuid.UUID]*site.Site
}

func (f *fakeSiteRepo) GetByID(_ context.Context, id uuid.UUID) (*site.Site, error) {
	s, ok := f.sites[id]
	if !ok {
		return nil, serrors.NewNotFound("site", nil)
	}
	return s, nil
}

func (f *fakeSiteRepo) List(_ context.Context) ([]*site.Site, error) {
	out := make([]*site.Site, 0, len(f.sites))
	for _, s := range f.sites {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSiteRepo) Create(_ context.Context, s *site.Site) error {
	f.sites[s.ID()] = s
	return nil
}

func (f *fakeSiteRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.sites, id)
	return nil
}

type structureFixture struct {
	sites       *SiteService
	processes   *ProcessService
	sprints     *SprintService
	siteRepo    *fakeSiteRepo
	processRepo *fakeProcessRepo
	sprintRepo  *fakeSprintRepo
	issueRepo   *fakeIssueRepo
	assignments *fakeAssignments
	cache       cache.Cache
	orgID       uuid.UUID
}

func newStructureFixture(t *testing.T) *structureFixture {
	t.Helper()

	prev := leaseFn
	leaseFn = func(ctx context.Context, _ *tenantdb.PoolRegistry, _ uuid.UUID) (context.Context, func(), error) {
		return ctx, func() {}, nil
	}
	t.Cleanup(func() { leaseFn = prev })

	f := &structureFixture{
		siteRepo:    &fakeSiteRepo{sites: make(map[uuid.UUID]*site.Site)},
		processRepo: &fakeProcessRepo{processes: make(map[uuid.UUID]*process.Process)},
		sprintRepo:  &fakeSprintRepo{sprints: make(map[uuid.UUID]*sprint.Sprint)},
		issueRepo:   newFakeIssueRepo(),
		assignments: &fakeAssignments{sites: make(map[uuid.UUID]uuid.UUID), processes: make(map[uuid.UUID]uuid.UUID)},
		cache:       cache.NewMemoryCache(),
		orgID:       uuid.New(),
	}
	accessService := coreservices.NewAccessService(f.assignments)
	f.sites = NewSiteService(nil, f.siteRepo, accessService)
	f.processes = NewProcessService(nil, f.processRepo, f.siteRepo, accessService)
	f.sprints = NewSprintService(nil, f.sprintRepo, f.processRepo, f.issueRepo, accessService, f.cache)
	return f
}

func (f *structureFixture) topCtx() context.Context {
	return composables.WithRequestContext(context.Background(),
		&access.RequestContext{ActorID: uuid.New(), OrgID: f.orgID, Tier: access.TierTop})
}

func (f *structureFixture) operationalCtx(siteID uuid.UUID) context.Context {
	actorID := uuid.New()
	f.assignments.sites[actorID] = siteID
	return composables.WithRequestContext(context.Background(),
		&access.RequestContext{ActorID: actorID, OrgID: f.orgID, Tier: access.TierOperational})
}

func TestSiteCreate_TopOnly(t *testing.T) {
	f := newStructureFixture(t)

	created, err := f.sites.Create(f.topCtx(), "Warehouse West")
	require.NoError(t, err)
	require.Equal(t, "Warehouse West", created.Name())

	// Operational staff act within a site; creating one is organization
	// scoped and denied.
	_, err = f.sites.Create(f.operationalCtx(created.ID()), "Rogue Site")
	require.True(t, serrors.HasCode(err, serrors.CodeAuthorization))

	_, err = f.sites.Create(f.topCtx(), "")
	require.True(t, serrors.HasCode(err, serrors.CodeValidation))
}

func TestSiteGetByID_SiteScoped(t *testing.T) {
	f := newStructureFixture(t)
	created, err := f.sites.Create(f.topCtx(), "Warehouse West")
	require.NoError(t, err)

	got, err := f.sites.GetByID(f.operationalCtx(created.ID()), created.ID())
	require.NoError(t, err)
	require.Equal(t, created.ID(), got.ID())

	_, err = f.sites.GetByID(f.operationalCtx(uuid.New()), created.ID())
	require.True(t, serrors.HasCode(err, serrors.CodeAuthorization))
}

func TestProcessCreate_RequiresSiteAuthority(t *testing.T) {
	f := newStructureFixture(t)
	parent, err := f.sites.Create(f.topCtx(), "Warehouse West")
	require.NoError(t, err)

	created, err := f.processes.Create(f.operationalCtx(parent.ID()), parent.ID(), "Cold Chain Audit")
	require.NoError(t, err)
	require.Equal(t, parent.ID(), created.SiteID())

	_, err = f.processes.Create(f.operationalCtx(uuid.New()), parent.ID(), "Denied Process")
	require.True(t, serrors.HasCode(err, serrors.CodeAuthorization))

	_, err = f.processes.Create(f.topCtx(), uuid.New(), "Orphan Process")
	require.True(t, serrors.HasCode(err, serrors.CodeNotFound))
}

func TestProcessListBySite(t *testing.T) {
	f := newStructureFixture(t)
	parent, err := f.sites.Create(f.topCtx(), "Warehouse West")
	require.NoError(t, err)
	_, err = f.processes.Create(f.topCtx(), parent.ID(), "Cold Chain Audit")
	require.NoError(t, err)
	_, err = f.processes.Create(f.topCtx(), parent.ID(), "Fire Safety")
	require.NoError(t, err)

	listed, err := f.processes.ListBySite(f.operationalCtx(parent.ID()), parent.ID())
	require.NoError(t, err)
	require.Len(t, listed, 2)
}

func TestSprintCreate_Validation(t *testing.T) {
	f := newStructureFixture(t)
	parent, err := f.sites.Create(f.topCtx(), "Warehouse West")
	require.NoError(t, err)
	proc, err := f.processes.Create(f.topCtx(), parent.ID(), "Cold Chain Audit")
	require.NoError(t, err)

	starts := time.Now()
	ends := starts.Add(14 * 24 * time.Hour)
	created, err := f.sprints.Create(f.topCtx(), proc.ID(), "Sprint 1", &starts, &ends)
	require.NoError(t, err)
	require.Equal(t, proc.ID(), created.ProcessID())

	_, err = f.sprints.Create(f.topCtx(), proc.ID(), "", nil, nil)
	require.True(t, serrors.HasCode(err, serrors.CodeValidation))

	backwards := starts.Add(-time.Hour)
	_, err = f.sprints.Create(f.topCtx(), proc.ID(), "Backwards", &starts, &backwards)
	require.True(t, serrors.HasCode(err, serrors.CodeValidation))
}

func TestSprintDelete_ReleasesIssuesToBacklog(t *testing.T) {
	f := newStructureFixture(t)
	parent, err := f.sites.Create(f.topCtx(), "Warehouse West")
	require.NoError(t, err)
	proc, err := f.processes.Create(f.topCtx(), parent.ID(), "Cold Chain Audit")
	require.NoError(t, err)
	spr, err := f.sprints.Create(f.topCtx(), proc.ID(), "Sprint 1", nil, nil)
	require.NoError(t, err)

	sprintID := spr.ID()
	iss := &issue.Issue{
		ID:        uuid.New(),
		ProcessID: proc.ID(),
		Title:     "Unlabeled pallets",
		Status:    issue.StatusInProgress,
		SprintID:  &sprintID,
		Tags:      []string{},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	ctx := context.Background()
	require.NoError(t, f.issueRepo.Create(ctx, iss))

	f.cache.Set(ctx, issueKey(f.orgID, iss.ID), []byte("stale"), time.Minute)
	f.cache.Set(ctx, processIssuesKey(f.orgID, proc.ID(), "backlog"), []byte("stale"), time.Minute)
	f.cache.Set(ctx, sprintIssuesKey(f.orgID, sprintID), []byte("stale"), time.Minute)

	require.NoError(t, f.sprints.Delete(f.topCtx(), sprintID))

	_, err = f.sprintRepo.GetByID(ctx, sprintID)
	require.True(t, serrors.HasCode(err, serrors.CodeNotFound))

	// The issue survives the sprint but drops back to the backlog, so the
	// sprint/status pairing holds and backlog listings pick it up again.
	got, err := f.issueRepo.GetByID(ctx, iss.ID)
	require.NoError(t, err)
	require.True(t, got.InBacklog())
	backlog, err := f.issueRepo.ListBacklog(ctx, proc.ID())
	require.NoError(t, err)
	require.Len(t, backlog, 1)

	// Stale entries for the issue, the process views and the sprint view
	// are all gone.
	_, ok := f.cache.Get(ctx, issueKey(f.orgID, iss.ID))
	require.False(t, ok)
	_, ok = f.cache.Get(ctx, processIssuesKey(f.orgID, proc.ID(), "backlog"))
	require.False(t, ok)
	_, ok = f.cache.Get(ctx, sprintIssuesKey(f.orgID, sprintID))
	require.False(t, ok)
}

func TestSprintListByProcess_ProcessScoped(t *testing.T) {
	f := newStructureFixture(t)
	parent, err := f.sites.Create(f.topCtx(), "Warehouse West")
	require.NoError(t, err)
	proc, err := f.processes.Create(f.topCtx(), parent.ID(), "Cold Chain Audit")
	require.NoError(t, err)
	_, err = f.sprints.Create(f.topCtx(), proc.ID(), "Sprint 1", nil, nil)
	require.NoError(t, err)

	listed, err := f.sprints.ListByProcess(f.operationalCtx(parent.ID()), proc.ID())
	require.NoError(t, err)
	require.Len(t, listed, 1)
}
