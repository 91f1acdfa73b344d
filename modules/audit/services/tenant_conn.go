package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/tenantdb"
)

// leaseFn is swapped out in tests.
var leaseFn = leaseConn

// leaseConn acquires a tenant connection and threads it through the context
// for the repositories. The returned release must run on every exit path.
func leaseConn(ctx context.Context, registry *tenantdb.PoolRegistry, orgID uuid.UUID) (context.Context, func(), error) {
	conn, err := registry.Acquire(ctx, orgID)
	if err != nil {
		return ctx, nil, err
	}
	return composables.WithTenantConn(ctx, conn), conn.Release, nil
}
