package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/complium/complium/modules/core/domain/access"
	"github.com/complium/complium/modules/core/domain/entities/authtoken"
	"github.com/complium/complium/modules/core/domain/entities/membership"
	"github.com/complium/complium/modules/core/domain/entities/organization"
	"github.com/complium/complium/pkg/cache"
	"github.com/complium/complium/pkg/serrors"
)

type fakeTokenRepo struct {
	tokens map[string]*authtoken.Token
	calls  int
}

func (f *fakeTokenRepo) GetByDigest(_ context.Context, digest string) (*authtoken.Token, error) {
	f.calls++
	token, ok := f.tokens[digest]
	if !ok {
		return nil, serrors.NewNotFound("token", nil)
	}
	return token, nil
}

func (f *fakeTokenRepo) Create(_ context.Context, t *authtoken.Token) error {
	f.tokens[t.Digest()] = t
	return nil
}

func (f *fakeTokenRepo) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeMembershipRepo struct {
	memberships map[uuid.UUID]*membership.Membership
	calls       int
}

func (f *fakeMembershipRepo) Get(_ context.Context, actorID, _ uuid.UUID) (*membership.Membership, error) {
	f.calls++
	m, ok := f.memberships[actorID]
	if !ok {
		return nil, serrors.NewNotFound("membership", nil)
	}
	return m, nil
}

func (f *fakeMembershipRepo) ListByOrg(_ context.Context, _ uuid.UUID) ([]*membership.Membership, error) {
	return nil, nil
}

func (f *fakeMembershipRepo) Create(_ context.Context, m *membership.Membership) error {
	f.memberships[m.ActorID()] = m
	return nil
}

func (f *fakeMembershipRepo) Delete(_ context.Context, actorID, _ uuid.UUID) error {
	delete(f.memberships, actorID)
	return nil
}

type fakeOrgRepo struct {
	orgs  map[uuid.UUID]*organization.Organization
	byOwn map[uuid.UUID]*organization.Organization
	calls int
}

func newFakeOrgRepo() *fakeOrgRepo {
	return &fakeOrgRepo{
		orgs:  make(map[uuid.UUID]*organization.Organization),
		byOwn: make(map[uuid.UUID]*organization.Organization),
	}
}

func (f *fakeOrgRepo) GetByID(_ context.Context, id uuid.UUID) (*organization.Organization, error) {
	f.calls++
	org, ok := f.orgs[id]
	if !ok {
		return nil, serrors.NewNotFound("organization", nil)
	}
	return org, nil
}

func (f *fakeOrgRepo) GetByOwner(_ context.Context, ownerID uuid.UUID) (*organization.Organization, error) {
	org, ok := f.byOwn[ownerID]
	if !ok {
		return nil, serrors.NewNotFound("organization", nil)
	}
	return org, nil
}

func (f *fakeOrgRepo) Create(_ context.Context, org *organization.Organization) (*organization.Organization, error) {
	f.orgs[org.ID()] = org
	f.byOwn[org.OwnerID()] = org
	return org, nil
}

func (f *fakeOrgRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.orgs, id)
	return nil
}

type authFixture struct {
	svc         *AuthService
	tokens      *fakeTokenRepo
	memberships *fakeMembershipRepo
	orgs        *fakeOrgRepo
	org         *organization.Organization
	ownerID     uuid.UUID
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	ownerID := uuid.New()
	org := organization.New("Acme Compliance", ownerID)

	orgs := newFakeOrgRepo()
	_, err := orgs.Create(context.Background(), org)
	require.NoError(t, err)

	tokens := &fakeTokenRepo{tokens: make(map[string]*authtoken.Token)}
	memberships := &fakeMembershipRepo{memberships: make(map[uuid.UUID]*membership.Membership)}
	svc := NewAuthService(tokens, memberships, orgs, cache.NewMemoryCache(), time.Minute)

	return &authFixture{
		svc:         svc,
		tokens:      tokens,
		memberships: memberships,
		orgs:        orgs,
		org:         org,
		ownerID:     ownerID,
	}
}

func (f *authFixture) issueToken(t *testing.T, actorID uuid.UUID, raw string, expiresAt time.Time) {
	t.Helper()
	err := f.tokens.Create(context.Background(), authtoken.New(authtoken.Digest(raw), actorID, expiresAt))
	require.NoError(t, err)
}

func TestResolve_EmptyTokenRejected(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)
	_, err := f.svc.Resolve(context.Background(), "", f.org.ID())
	require.True(t, serrors.HasCode(err, serrors.CodeAuthentication))
}

func TestResolve_MissingOrgRejected(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)
	_, err := f.svc.Resolve(context.Background(), "some-token", uuid.Nil)
	require.True(t, serrors.HasCode(err, serrors.CodeValidation))
}

func TestResolve_UnknownTokenRejected(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)
	_, err := f.svc.Resolve(context.Background(), "never-issued", f.org.ID())
	require.True(t, serrors.HasCode(err, serrors.CodeAuthentication))
}

func TestResolve_ExpiredTokenRejected(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)
	f.issueToken(t, f.ownerID, "stale", time.Now().Add(-time.Hour))

	_, err := f.svc.Resolve(context.Background(), "stale", f.org.ID())
	require.True(t, serrors.HasCode(err, serrors.CodeAuthentication))
}

func TestResolve_OwnerWithoutMembershipGetsTopTier(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)
	f.issueToken(t, f.ownerID, "owner-token", time.Now().Add(time.Hour))

	rc, err := f.svc.Resolve(context.Background(), "owner-token", f.org.ID())
	require.NoError(t, err)
	require.Equal(t, f.ownerID, rc.ActorID)
	require.Equal(t, f.org.ID(), rc.OrgID)
	require.True(t, rc.IsOwner)
	require.Equal(t, access.TierTop, rc.Tier)
}

func TestResolve_MemberUsesStoredTier(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)
	actorID := uuid.New()
	f.issueToken(t, actorID, "member-token", time.Now().Add(time.Hour))
	err := f.memberships.Create(context.Background(),
		membership.New(actorID, f.org.ID(), "manager"))
	require.NoError(t, err)

	rc, err := f.svc.Resolve(context.Background(), "member-token", f.org.ID())
	require.NoError(t, err)
	require.False(t, rc.IsOwner)
	require.Equal(t, access.TierOperational, rc.Tier)
}

func TestResolve_LegacyRoleMapsToTier(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)
	actorID := uuid.New()
	f.issueToken(t, actorID, "legacy-token", time.Now().Add(time.Hour))
	err := f.memberships.Create(context.Background(),
		membership.New(actorID, f.org.ID(), "staff", membership.WithTier(access.TierUnknown)))
	require.NoError(t, err)

	rc, err := f.svc.Resolve(context.Background(), "legacy-token", f.org.ID())
	require.NoError(t, err)
	require.Equal(t, access.TierSupport, rc.Tier)
}

func TestResolve_NonMemberResolvesWithUnknownTier(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)
	actorID := uuid.New()
	f.issueToken(t, actorID, "stranger-token", time.Now().Add(time.Hour))

	// Resolution succeeds; denial happens later at the authorization step.
	rc, err := f.svc.Resolve(context.Background(), "stranger-token", f.org.ID())
	require.NoError(t, err)
	require.Equal(t, access.TierUnknown, rc.Tier)
	require.False(t, rc.IsOwner)
}

func TestResolve_SecondCallServedFromCache(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)
	f.issueToken(t, f.ownerID, "owner-token", time.Now().Add(time.Hour))

	_, err := f.svc.Resolve(context.Background(), "owner-token", f.org.ID())
	require.NoError(t, err)
	tokenCalls := f.tokens.calls
	orgCalls := f.orgs.calls

	rc, err := f.svc.Resolve(context.Background(), "owner-token", f.org.ID())
	require.NoError(t, err)
	require.Equal(t, access.TierTop, rc.Tier)
	require.Equal(t, tokenCalls, f.tokens.calls)
	require.Equal(t, orgCalls, f.orgs.calls)
}

func TestInvalidateContext_ForcesReload(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)
	actorID := uuid.New()
	f.issueToken(t, actorID, "member-token", time.Now().Add(time.Hour))
	err := f.memberships.Create(context.Background(),
		membership.New(actorID, f.org.ID(), "staff"))
	require.NoError(t, err)

	rc, err := f.svc.Resolve(context.Background(), "member-token", f.org.ID())
	require.NoError(t, err)
	require.Equal(t, access.TierSupport, rc.Tier)

	// Promote the actor, drop the cached context, resolve again.
	err = f.memberships.Create(context.Background(),
		membership.New(actorID, f.org.ID(), "manager"))
	require.NoError(t, err)
	f.svc.InvalidateContext(context.Background(), f.org.ID(), actorID)

	rc, err = f.svc.Resolve(context.Background(), "member-token", f.org.ID())
	require.NoError(t, err)
	require.Equal(t, access.TierOperational, rc.Tier)
}

func TestAuthenticate_TokenOnly(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)
	actorID := uuid.New()
	f.issueToken(t, actorID, "raw-token", time.Now().Add(time.Hour))

	got, err := f.svc.Authenticate(context.Background(), "raw-token")
	require.NoError(t, err)
	require.Equal(t, actorID, got)

	_, err = f.svc.Authenticate(context.Background(), "")
	require.True(t, serrors.HasCode(err, serrors.CodeAuthentication))
}
