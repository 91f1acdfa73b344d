package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/complium/complium/modules/audit/domain/entities/site"
	"github.com/complium/complium/modules/core/domain/access"
	coreservices "github.com/complium/complium/modules/core/services"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/serrors"
	"github.com/complium/complium/pkg/tenantdb"
)

// SiteService manages the tenant's sites. Creating or listing sites is an
// organization-wide act, so it authorizes against the empty scope and only
// top leadership passes.
type SiteService struct {
	registry *tenantdb.PoolRegistry
	sites    site.Repository
	access   *coreservices.AccessService
}

func NewSiteService(
	registry *tenantdb.PoolRegistry,
	sites site.Repository,
	accessService *coreservices.AccessService,
) *SiteService {
	return &SiteService{
		registry: registry,
		sites:    sites,
		access:   accessService,
	}
}

func (s *SiteService) Create(ctx context.Context, name string) (*site.Site, error) {
	rc, err := composables.UseRequestContext(ctx)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, serrors.NewFieldRequired("name")
	}
	ctx, release, err := s.lease(ctx, rc.OrgID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.access.Authorize(ctx, rc, access.Scope{}); err != nil {
		return nil, err
	}

	created := site.New(name)
	if err := s.sites.Create(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *SiteService) GetByID(ctx context.Context, id uuid.UUID) (*site.Site, error) {
	rc, err := composables.UseRequestContext(ctx)
	if err != nil {
		return nil, err
	}
	ctx, release, err := s.lease(ctx, rc.OrgID)
	if err != nil {
		return nil, err
	}
	defer release()

	found, err := s.sites.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, rc, access.SiteScope(id)); err != nil {
		return nil, err
	}
	return found, nil
}

func (s *SiteService) List(ctx context.Context) ([]*site.Site, error) {
	rc, err := composables.UseRequestContext(ctx)
	if err != nil {
		return nil, err
	}
	ctx, release, err := s.lease(ctx, rc.OrgID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.access.Authorize(ctx, rc, access.Scope{}); err != nil {
		return nil, err
	}
	return s.sites.List(ctx)
}

func (s *SiteService) Delete(ctx context.Context, id uuid.UUID) error {
	rc, err := composables.UseRequestContext(ctx)
	if err != nil {
		return err
	}
	ctx, release, err := s.lease(ctx, rc.OrgID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.access.Authorize(ctx, rc, access.Scope{}); err != nil {
		return err
	}
	return s.sites.Delete(ctx, id)
}

func (s *SiteService) lease(ctx context.Context, orgID uuid.UUID) (context.Context, func(), error) {
	return leaseFn(ctx, s.registry, orgID)
}
