package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TenantPoolAcquires = promauto.NewCounter(prometheus.CounterOpts{
		Name: "complium_tenant_pool_acquires_total",
		Help: "Tenant connections successfully leased from per-tenant pools.",
	})
	TenantPoolTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "complium_tenant_pool_timeouts_total",
		Help: "Tenant connection acquisitions that timed out under pool exhaustion.",
	})
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complium_cache_hits_total",
		Help: "Response cache hits by backend.",
	}, []string{"backend"})
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complium_cache_misses_total",
		Help: "Response cache misses by backend.",
	}, []string{"backend"})
)
