package constants

type ContextKey string

const (
	PoolKey           ContextKey = "pool"
	TxKey             ContextKey = "tx"
	TenantConnKey     ContextKey = "tenant_conn"
	TenantIDKey       ContextKey = "tenant_id"
	LoggerKey         ContextKey = "logger"
	RequestContextKey ContextKey = "request_context"
)
