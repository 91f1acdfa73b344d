package services

import (
	"context"

	"github.com/complium/complium/modules/core/domain/access"
	"github.com/complium/complium/pkg/serrors"
)

// Denial reasons surfaced to callers.
const (
	ReasonNotAssignedSite    = "not assigned to this site"
	ReasonNotAssignedProcess = "not assigned to this process"
	ReasonForbidden          = "forbidden"
	ReasonSupportCreate      = "support staff cannot create issues"
)

// AccessService decides whether a resolved caller may act on a
// site/process-scoped resource. It is a pure decision function over the
// request context and an already-resolved scope; only assignment lookups
// touch the tenant store.
type AccessService struct {
	assignments access.AssignmentStore
}

func NewAccessService(assignments access.AssignmentStore) *AccessService {
	return &AccessService{assignments: assignments}
}

// Authorize evaluates the tier rules in order: owners and top leadership
// span everything; operational tier needs a site assignment; support tier
// needs a process assignment; anything else is denied.
func (s *AccessService) Authorize(ctx context.Context, rc *access.RequestContext, scope access.Scope) error {
	if rc == nil {
		return serrors.NewAuthorization(ReasonForbidden)
	}
	if rc.IsOwner || rc.Tier == access.TierTop {
		return nil
	}

	switch rc.Tier {
	case access.TierOperational:
		if scope.SiteID == nil {
			return serrors.NewAuthorization(ReasonNotAssignedSite)
		}
		assigned, err := s.assignments.HasSiteAssignment(ctx, rc.ActorID, *scope.SiteID)
		if err != nil {
			return err
		}
		if !assigned {
			return serrors.NewAuthorization(ReasonNotAssignedSite)
		}
		return nil
	case access.TierSupport:
		if scope.ProcessID == nil {
			return serrors.NewAuthorization(ReasonNotAssignedProcess)
		}
		assigned, err := s.assignments.HasProcessAssignment(ctx, rc.ActorID, *scope.ProcessID)
		if err != nil {
			return err
		}
		if !assigned {
			return serrors.NewAuthorization(ReasonNotAssignedProcess)
		}
		return nil
	default:
		return serrors.NewAuthorization(ReasonForbidden)
	}
}

// AuthorizeIssueCreate gates issue creation. Support-tier actors may never
// create issues regardless of their process assignments; this capability
// check runs before scope authorization.
func (s *AccessService) AuthorizeIssueCreate(ctx context.Context, rc *access.RequestContext, scope access.Scope) error {
	if rc == nil {
		return serrors.NewAuthorization(ReasonForbidden)
	}
	if !rc.IsOwner && rc.Tier == access.TierSupport {
		return serrors.NewAuthorization(ReasonSupportCreate)
	}
	return s.Authorize(ctx, rc, scope)
}
