package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/complium/complium/pkg/serrors"
)

// ErrorEnvelope standardizes JSON error responses for API namespaces.
type ErrorEnvelope struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

// WriteServiceError maps a coded service error onto the wire; anything else
// becomes an opaque 500.
func WriteServiceError(w http.ResponseWriter, err error) error {
	var serr *serrors.BaseError
	if errors.As(err, &serr) {
		return WriteJSON(w, serr.Status, &ErrorEnvelope{Code: serr.Code, Message: serr.Message})
	}
	return WriteJSON(w, http.StatusInternalServerError, &ErrorEnvelope{
		Code:    "INTERNAL",
		Message: "internal server error",
	})
}
