package tenantdb

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/complium/complium/pkg/metrics"
	"github.com/complium/complium/pkg/serrors"
)

// DescriptorSource resolves a tenant's connection string from the
// control-plane store. Implementations are expected to cache.
type DescriptorSource interface {
	ConnString(ctx context.Context, orgID uuid.UUID) (string, error)
}

type Options struct {
	MaxConns       int32
	AcquireTimeout time.Duration
	Logger         *logrus.Logger
}

// Conn is a leased tenant connection. Callers must Release it on every exit
// path, success or failure.
type Conn struct {
	conn *pgxpool.Conn
	caps Capabilities
}

func (c *Conn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.conn.Query(ctx, sql, args...)
}

func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.conn.QueryRow(ctx, sql, args...)
}

func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.conn.Exec(ctx, sql, args...)
}

func (c *Conn) Capabilities() Capabilities { return c.caps }

func (c *Conn) Release() { c.conn.Release() }

// acquireFn and probeFn are swapped out in tests.
var (
	acquireFn = func(ctx context.Context, pool *pgxpool.Pool) (*pgxpool.Conn, error) {
		return pool.Acquire(ctx)
	}
	probeFn = probeCapabilities
)

type tenantPool struct {
	pool *pgxpool.Pool

	mu     sync.Mutex
	probed bool
	caps   Capabilities
}

// capabilities returns the cached capability set, probing on first use. Only
// a successful probe is latched; a failure (including a canceled caller
// context) is retried on the next acquisition instead of poisoning the pool.
func (tp *tenantPool) capabilities(ctx context.Context, q columnQuerier) (Capabilities, error) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if tp.probed {
		return tp.caps, nil
	}
	caps, err := probeFn(ctx, q)
	if err != nil {
		return Capabilities{}, err
	}
	tp.caps = caps
	tp.probed = true
	return caps, nil
}

// PoolRegistry hands out bounded per-tenant connection pools, constructed
// lazily on first acquisition. It is an explicit service object: built once
// at process start and passed into services, never an ambient singleton.
type PoolRegistry struct {
	mu    sync.RWMutex
	pools map[uuid.UUID]*tenantPool

	source DescriptorSource
	opts   Options
}

func NewPoolRegistry(source DescriptorSource, opts Options) *PoolRegistry {
	return &PoolRegistry{
		pools:  make(map[uuid.UUID]*tenantPool),
		source: source,
		opts:   opts,
	}
}

// Acquire leases a connection from the organization's pool, blocking up to
// the configured timeout when the pool is at capacity.
func (r *PoolRegistry) Acquire(ctx context.Context, orgID uuid.UUID) (*Conn, error) {
	tp, err := r.tenantPool(ctx, orgID)
	if err != nil {
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, r.opts.AcquireTimeout)
	defer cancel()

	conn, err := acquireFn(acquireCtx, tp.pool)
	if err != nil {
		if acquireCtx.Err() != nil {
			metrics.TenantPoolTimeouts.Inc()
			return nil, serrors.NewPoolTimeout(err)
		}
		return nil, errors.Wrap(err, "failed to acquire tenant connection")
	}
	metrics.TenantPoolAcquires.Inc()

	caps, err := tp.capabilities(ctx, conn)
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &Conn{conn: conn, caps: caps}, nil
}

func (r *PoolRegistry) tenantPool(ctx context.Context, orgID uuid.UUID) (*tenantPool, error) {
	r.mu.RLock()
	tp, ok := r.pools[orgID]
	r.mu.RUnlock()
	if ok {
		return tp, nil
	}

	connString, err := r.source.ConnString(ctx, orgID)
	if err != nil {
		return nil, err
	}

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "invalid tenant connection string")
	}
	config.MaxConns = r.opts.MaxConns

	r.mu.Lock()
	defer r.mu.Unlock()
	if tp, ok := r.pools[orgID]; ok {
		return tp, nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to construct tenant pool")
	}
	tp = &tenantPool{pool: pool}
	r.pools[orgID] = tp
	if r.opts.Logger != nil {
		r.opts.Logger.WithField("org_id", orgID).Debug("tenant pool created")
	}
	return tp, nil
}

// Evict drops a tenant's pool, closing its connections. Used when a tenant
// is deprovisioned mid-process.
func (r *PoolRegistry) Evict(orgID uuid.UUID) {
	r.mu.Lock()
	tp, ok := r.pools[orgID]
	if ok {
		delete(r.pools, orgID)
	}
	r.mu.Unlock()
	if ok {
		tp.pool.Close()
	}
}

// Close tears down every tenant pool. Only called at process shutdown.
func (r *PoolRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for orgID, tp := range r.pools {
		tp.pool.Close()
		delete(r.pools, orgID)
	}
}
