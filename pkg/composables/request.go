package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/complium/complium/modules/core/domain/access"
	"github.com/complium/complium/pkg/constants"
	"github.com/complium/complium/pkg/tenantdb"
)

var (
	ErrNoTenantID       = errors.New("no tenant id found in context")
	ErrNoTenantConn     = errors.New("no tenant connection found in context")
	ErrNoRequestContext = errors.New("no request context found in context")
)

func WithTenantID(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.TenantIDKey, orgID)
}

func UseTenantID(ctx context.Context) (uuid.UUID, error) {
	orgID, ok := ctx.Value(constants.TenantIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrNoTenantID
	}
	return orgID, nil
}

// WithTenantConn stores a leased tenant connection. The acquirer keeps
// ownership: whoever called Acquire must also Release.
func WithTenantConn(ctx context.Context, conn *tenantdb.Conn) context.Context {
	return context.WithValue(ctx, constants.TenantConnKey, conn)
}

func UseTenantConn(ctx context.Context) (*tenantdb.Conn, error) {
	conn, ok := ctx.Value(constants.TenantConnKey).(*tenantdb.Conn)
	if !ok {
		return nil, ErrNoTenantConn
	}
	return conn, nil
}

func WithRequestContext(ctx context.Context, rc *access.RequestContext) context.Context {
	return context.WithValue(ctx, constants.RequestContextKey, rc)
}

func UseRequestContext(ctx context.Context) (*access.RequestContext, error) {
	rc, ok := ctx.Value(constants.RequestContextKey).(*access.RequestContext)
	if !ok {
		return nil, ErrNoRequestContext
	}
	return rc, nil
}

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the request-scoped logger, falling back to a standard
// logger so library code never has to nil-check.
func UseLogger(ctx context.Context) *logrus.Entry {
	logger, ok := ctx.Value(constants.LoggerKey).(*logrus.Entry)
	if !ok {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return logger
}
