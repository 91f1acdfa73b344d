package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/complium/complium/modules/core/domain/access"
	"github.com/complium/complium/modules/core/domain/entities/authtoken"
	"github.com/complium/complium/modules/core/domain/entities/membership"
	"github.com/complium/complium/modules/core/domain/entities/organization"
	"github.com/complium/complium/pkg/cache"
	"github.com/complium/complium/pkg/serrors"
)

// AuthService resolves a caller's token and organization membership into a
// RequestContext. The result is cached briefly so the several checks one
// logical operation performs (existence, authorization, write) share a
// single round of lookups.
type AuthService struct {
	tokens      authtoken.Repository
	memberships membership.Repository
	orgs        organization.Repository
	cache       cache.Cache
	ttl         time.Duration
	now         func() time.Time
}

func NewAuthService(
	tokens authtoken.Repository,
	memberships membership.Repository,
	orgs organization.Repository,
	c cache.Cache,
	ttl time.Duration,
) *AuthService {
	return &AuthService{
		tokens:      tokens,
		memberships: memberships,
		orgs:        orgs,
		cache:       c,
		ttl:         ttl,
		now:         time.Now,
	}
}

func requestContextKey(orgID, actorID uuid.UUID) string {
	return fmt.Sprintf("org:%s:rc:%s", orgID, actorID)
}

func tokenKey(digest string) string {
	return "tok:" + digest
}

// Resolve validates the token, loads the caller's membership for the
// organization and produces the request context authorization runs on.
func (s *AuthService) Resolve(ctx context.Context, rawToken string, orgID uuid.UUID) (*access.RequestContext, error) {
	if rawToken == "" {
		return nil, serrors.NewAuthentication(nil)
	}
	if orgID == uuid.Nil {
		return nil, serrors.NewFieldRequired("orgId")
	}

	actorID, err := s.resolveActor(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	key := requestContextKey(orgID, actorID)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var rc access.RequestContext
		if err := json.Unmarshal(raw, &rc); err == nil {
			return &rc, nil
		}
	}

	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	isOwner := org.OwnerID() == actorID

	tier := access.TierUnknown
	member, err := s.memberships.Get(ctx, actorID, orgID)
	switch {
	case err == nil:
		tier = member.EffectiveTier(isOwner)
	case serrors.HasCode(err, serrors.CodeNotFound):
		// No membership row. Owners still resolve to top tier; anyone
		// else falls through with an unknown tier and is denied at the
		// authorization step, not here.
		if isOwner {
			tier = access.TierTop
		}
	default:
		return nil, err
	}

	rc := &access.RequestContext{
		ActorID: actorID,
		OrgID:   orgID,
		Tier:    tier,
		IsOwner: isOwner,
	}
	if raw, err := json.Marshal(rc); err == nil {
		s.cache.Set(ctx, key, raw, s.ttl)
	}
	return rc, nil
}

// Authenticate validates the token alone, for operations that precede any
// organization membership (e.g. provisioning a new organization).
func (s *AuthService) Authenticate(ctx context.Context, rawToken string) (uuid.UUID, error) {
	if rawToken == "" {
		return uuid.Nil, serrors.NewAuthentication(nil)
	}
	return s.resolveActor(ctx, rawToken)
}

func (s *AuthService) resolveActor(ctx context.Context, rawToken string) (uuid.UUID, error) {
	digest := authtoken.Digest(rawToken)

	if raw, ok := s.cache.Get(ctx, tokenKey(digest)); ok {
		if actorID, err := uuid.ParseBytes(raw); err == nil {
			return actorID, nil
		}
	}

	token, err := s.tokens.GetByDigest(ctx, digest)
	if err != nil {
		if serrors.HasCode(err, serrors.CodeNotFound) {
			return uuid.Nil, serrors.NewAuthentication(err)
		}
		return uuid.Nil, err
	}
	if token.Expired(s.now()) {
		return uuid.Nil, serrors.NewAuthentication(nil)
	}

	s.cache.Set(ctx, tokenKey(digest), []byte(token.ActorID().String()), s.ttl)
	return token.ActorID(), nil
}

// InvalidateContext drops the cached request context after a membership
// change so tier updates take effect without waiting out the TTL.
func (s *AuthService) InvalidateContext(ctx context.Context, orgID, actorID uuid.UUID) {
	s.cache.Delete(ctx, requestContextKey(orgID, actorID))
}
