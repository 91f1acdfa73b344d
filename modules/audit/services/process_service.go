package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/complium/complium/modules/audit/domain/entities/process"
	"github.com/complium/complium/modules/audit/domain/entities/site"
	"github.com/complium/complium/modules/core/domain/access"
	coreservices "github.com/complium/complium/modules/core/services"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/serrors"
	"github.com/complium/complium/pkg/tenantdb"
)

// ProcessService manages processes under sites. Process creation and
// listing are site-scoped: top leadership or operational staff assigned to
// the parent site.
type ProcessService struct {
	registry  *tenantdb.PoolRegistry
	processes process.Repository
	sites     site.Repository
	access    *coreservices.AccessService
}

func NewProcessService(
	registry *tenantdb.PoolRegistry,
	processes process.Repository,
	sites site.Repository,
	accessService *coreservices.AccessService,
) *ProcessService {
	return &ProcessService{
		registry:  registry,
		processes: processes,
		sites:     sites,
		access:    accessService,
	}
}

func (s *ProcessService) Create(ctx context.Context, siteID uuid.UUID, name string) (*process.Process, error) {
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

	if _, err := s.sites.GetByID(ctx, siteID); err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, rc, access.SiteScope(siteID)); err != nil {
		return nil, err
	}

	created := process.New(siteID, name)
	if err := s.processes.Create(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *ProcessService) GetByID(ctx context.Context, id uuid.UUID) (*process.Process, error) {
	rc, err := composables.UseRequestContext(ctx)
	if err != nil {
		return nil, err
	}
	ctx, release, err := s.lease(ctx, rc.OrgID)
	if err != nil {
		return nil, err
	}
	defer release()

	proc, err := s.processes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, rc, access.ProcessScope(proc.SiteID(), id)); err != nil {
		return nil, err
	}
	return proc, nil
}

func (s *ProcessService) ListBySite(ctx context.Context, siteID uuid.UUID) ([]*process.Process, error) {
	rc, err := composables.UseRequestContext(ctx)
	if err != nil {
		return nil, err
	}
	ctx, release, err := s.lease(ctx, rc.OrgID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.access.Authorize(ctx, rc, access.SiteScope(siteID)); err != nil {
		return nil, err
	}
	return s.processes.ListBySite(ctx, siteID)
}

func (s *ProcessService) Delete(ctx context.Context, id uuid.UUID) error {
	rc, err := composables.UseRequestContext(ctx)
	if err != nil {
		return err
	}
	ctx, release, err := s.lease(ctx, rc.OrgID)
	if err != nil {
		return err
	}
	defer release()

	proc, err := s.processes.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.access.Authorize(ctx, rc, access.SiteScope(proc.SiteID())); err != nil {
		return err
	}
	return s.processes.Delete(ctx, id)
}

func (s *ProcessService) lease(ctx context.Context, orgID uuid.UUID) (context.Context, func(), error) {
	return leaseFn(ctx, s.registry, orgID)
}
