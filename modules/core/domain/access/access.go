package access

import (
	"context"

	"github.com/google/uuid"
)

// LeadershipTier is the organization-level authorization classification of
// an actor. Top spans every site and process, operational is scoped by site
// assignments, support by process assignments.
type LeadershipTier string

const (
	TierTop         LeadershipTier = "top"
	TierOperational LeadershipTier = "operational"
	TierSupport     LeadershipTier = "support"
	TierUnknown     LeadershipTier = ""
)

// TierFromRole maps legacy role strings onto tiers for memberships created
// before tiers were stored. Compatibility rule only; scope authorization
// still applies afterwards.
func TierFromRole(role string) LeadershipTier {
	switch role {
	case "owner", "admin":
		return TierTop
	case "manager":
		return TierOperational
	case "member", "staff":
		return TierSupport
	default:
		return TierUnknown
	}
}

// RequestContext is the resolved identity of a caller within one
// organization. Cached briefly so the several checks of a single logical
// operation share one membership lookup.
type RequestContext struct {
	ActorID uuid.UUID      `json:"actorId"`
	OrgID   uuid.UUID      `json:"orgId"`
	Tier    LeadershipTier `json:"tier"`
	IsOwner bool           `json:"isOwner"`
}

// Scope is the site/process pair a resource belongs to. Resolving it (e.g.
// a process's parent site) is the caller's job; authorization is a pure
// decision over an already-resolved scope.
type Scope struct {
	SiteID    *uuid.UUID
	ProcessID *uuid.UUID
}

func SiteScope(siteID uuid.UUID) Scope {
	return Scope{SiteID: &siteID}
}

func ProcessScope(siteID, processID uuid.UUID) Scope {
	return Scope{SiteID: &siteID, ProcessID: &processID}
}

// AssignmentStore looks up site/process assignments in the tenant store.
type AssignmentStore interface {
	HasSiteAssignment(ctx context.Context, actorID, siteID uuid.UUID) (bool, error)
	HasProcessAssignment(ctx context.Context, actorID, processID uuid.UUID) (bool, error)
}
