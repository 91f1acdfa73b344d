package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	coreservices "github.com/complium/complium/modules/core/services"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/httpapi"
	"github.com/complium/complium/pkg/serrors"
)

// OrgIDHeader names the organization a request acts within.
const OrgIDHeader = "X-Organization-Id"

// WithPool threads the control-plane pool through request contexts so
// control-plane repositories can run without explicit wiring per handler.
func WithPool(pool *pgxpool.Pool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(composables.WithPool(r.Context(), pool)))
		})
	}
}

// LogRequests attaches a request-scoped logger and records each request
// once served.
func LogRequests(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"request_id": uuid.NewString(),
			})
			next.ServeHTTP(w, r.WithContext(composables.WithLogger(r.Context(), entry)))
			entry.WithField("duration", time.Since(start)).Info("request completed")
		})
	}
}

// Authenticate resolves the bearer token and organization header into a
// request context. Requests without both are rejected before any handler
// runs.
func Authenticate(auth *coreservices.AuthService) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				_ = httpapi.WriteServiceError(w, serrors.NewAuthentication(nil))
				return
			}
			orgID, err := uuid.Parse(r.Header.Get(OrgIDHeader))
			if err != nil {
				_ = httpapi.WriteServiceError(w, serrors.NewFieldRequired(OrgIDHeader))
				return
			}

			rc, err := auth.Resolve(r.Context(), token, orgID)
			if err != nil {
				_ = httpapi.WriteServiceError(w, err)
				return
			}

			ctx := composables.WithRequestContext(r.Context(), rc)
			ctx = composables.WithTenantID(ctx, orgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the raw token from the Authorization header, or ""
// when absent.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
