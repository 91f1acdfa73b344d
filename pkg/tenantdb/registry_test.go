package tenantdb

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/complium/complium/pkg/serrors"
)

type staticSource struct {
	connString string
}

func (s *staticSource) ConnString(context.Context, uuid.UUID) (string, error) {
	return s.connString, nil
}

func stubProbe(t *testing.T, columns ...string) {
	t.Helper()
	prev := probeFn
	probeFn = func(context.Context, columnQuerier) (Capabilities, error) {
		return CapabilitiesFromColumns(columns...), nil
	}
	t.Cleanup(func() { probeFn = prev })
}

func TestPoolRegistry_AcquireBlocksAtCapacity(t *testing.T) {
	// Capacity-one semaphore standing in for an exhausted pool: a lease is
	// a token, and a waiter parks until a token comes back or its context
	// deadline fires.
	sem := make(chan struct{}, 1)
	sem <- struct{}{}
	prev := acquireFn
	acquireFn = func(ctx context.Context, _ *pgxpool.Pool) (*pgxpool.Conn, error) {
		select {
		case <-sem:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	t.Cleanup(func() { acquireFn = prev })
	stubProbe(t, ColumnIssuer, ColumnVerifier, ColumnDeadline)

	timeout := 50 * time.Millisecond
	registry := NewPoolRegistry(&staticSource{connString: "host=localhost port=5432 user=postgres dbname=tenant_test"}, Options{
		MaxConns:       1,
		AcquireTimeout: timeout,
	})
	t.Cleanup(registry.Close)

	orgID := uuid.New()
	leased, err := registry.Acquire(context.Background(), orgID)
	require.NoError(t, err)
	require.True(t, leased.Capabilities().HasExtendedIssueColumns())

	// With the pool at capacity the next acquisition waits out the full
	// timeout and surfaces POOL_TIMEOUT rather than failing up front.
	start := time.Now()
	_, err = registry.Acquire(context.Background(), orgID)
	require.True(t, serrors.HasCode(err, serrors.CodePoolTimeout))
	require.GreaterOrEqual(t, time.Since(start), timeout)

	// A release while a waiter is parked unblocks it before the deadline.
	go func() {
		time.Sleep(10 * time.Millisecond)
		sem <- struct{}{}
	}()
	leased, err = registry.Acquire(context.Background(), orgID)
	require.NoError(t, err)
	require.True(t, leased.Capabilities().HasExtendedIssueColumns())
}

func TestTenantPool_FailedProbeRetriedOnNextAcquire(t *testing.T) {
	calls := 0
	prev := probeFn
	probeFn = func(context.Context, columnQuerier) (Capabilities, error) {
		calls++
		if calls == 1 {
			return Capabilities{}, errors.New("canceled mid-query")
		}
		return CapabilitiesFromColumns(ColumnIssuer, ColumnVerifier, ColumnDeadline), nil
	}
	t.Cleanup(func() { probeFn = prev })

	tp := &tenantPool{}

	// A transient failure on the first acquisition must not stick to the
	// pool; the next acquisition gets a fresh attempt.
	_, err := tp.capabilities(context.Background(), nil)
	require.Error(t, err)

	caps, err := tp.capabilities(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, caps.HasExtendedIssueColumns())

	// Success is latched, so later acquisitions skip the query entirely.
	caps, err = tp.capabilities(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, caps.HasExtendedIssueColumns())
	require.Equal(t, 2, calls)
}
