package serrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapPgError translates low-level postgres errors into coded service errors.
// Errors that match no rule are returned unchanged so callers can wrap them
// with operation context.
func MapPgError(err error, entity string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound(entity, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		if pgErr.ConstraintName == "organizations_owner_id_key" {
			return NewConflict("actor already owns an organization", err)
		}
		return NewError(http.StatusConflict, CodeConflict, "unique constraint violated", err)
	case "23503": // foreign_key_violation
		return NewValidation(fmt.Sprintf("referenced %s does not exist", entity))
	case "42703": // undefined_column
		return NewSchemaMismatch(undefinedColumn(pgErr.Message), err)
	default:
		return err
	}
}

func undefinedColumn(message string) string {
	// postgres phrases these as: column "deadline" does not exist
	start := strings.Index(message, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(message[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return message[start+1 : start+1+end]
}
