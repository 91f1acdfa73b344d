package serrors

import (
	"errors"
	"fmt"
	"net/http"
)

// BaseError is the coded error carried across service boundaries. Status is
// the HTTP status the presentation layer should map it to.
type BaseError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *BaseError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *BaseError) Unwrap() error { return e.Cause }

func NewError(status int, code, message string, cause error) *BaseError {
	return &BaseError{Status: status, Code: code, Message: message, Cause: cause}
}

// HasCode reports whether err carries the given service error code.
func HasCode(err error, code string) bool {
	var serr *BaseError
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code == code
}

const (
	CodeAuthentication = "AUTH_INVALID_TOKEN"
	CodeAuthorization  = "AUTHZ_DENIED"
	CodeNotFound       = "NOT_FOUND"
	CodeValidation     = "VALIDATION"
	CodeConflict       = "ORG_EXISTS"
	CodeProvisioning   = "PROVISIONING_FAILED"
	CodeMigration      = "MIGRATION_FAILED"
	CodeSeed           = "SEED_FAILED"
	CodeSchemaMismatch = "SCHEMA_MISMATCH"
	CodePoolTimeout    = "POOL_TIMEOUT"
)

func NewAuthentication(cause error) *BaseError {
	return NewError(http.StatusUnauthorized, CodeAuthentication, "invalid or expired credentials", cause)
}

// NewAuthorization carries the human-readable denial reason, e.g.
// "not assigned to this site".
func NewAuthorization(reason string) *BaseError {
	return NewError(http.StatusForbidden, CodeAuthorization, reason, nil)
}

func NewNotFound(what string, cause error) *BaseError {
	return NewError(http.StatusNotFound, CodeNotFound, what+" not found", cause)
}

func NewFieldRequired(field string) *BaseError {
	return NewError(http.StatusBadRequest, CodeValidation, fmt.Sprintf("field %q is required", field), nil)
}

func NewValidation(message string) *BaseError {
	return NewError(http.StatusBadRequest, CodeValidation, message, nil)
}

func NewConflict(message string, cause error) *BaseError {
	return NewError(http.StatusConflict, CodeConflict, message, cause)
}

func NewProvisioning(message string, cause error) *BaseError {
	return NewError(http.StatusInternalServerError, CodeProvisioning, message, cause)
}

func NewMigration(cause error) *BaseError {
	return NewError(http.StatusInternalServerError, CodeMigration, "tenant schema migration failed", cause)
}

func NewSeed(cause error) *BaseError {
	return NewError(http.StatusInternalServerError, CodeSeed, "tenant seeding failed", cause)
}

// NewSchemaMismatch marks a legacy tenant schema lacking an optional column.
// It is handled inside the persistence layer and never reaches callers.
func NewSchemaMismatch(column string, cause error) *BaseError {
	return NewError(http.StatusInternalServerError, CodeSchemaMismatch, fmt.Sprintf("tenant schema is missing column %q", column), cause)
}

func NewPoolTimeout(cause error) *BaseError {
	return NewError(http.StatusGatewayTimeout, CodePoolTimeout, "tenant connection pool exhausted", cause)
}
