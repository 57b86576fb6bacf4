package utils

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"storefront/models"
)

func RespondWithError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, map[string]string{"error": msg})
}

// Sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode response", slog.Any("err", err))
	}
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidQuantity), errors.Is(err, models.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrOutOfStock):
		return http.StatusConflict
	case errors.Is(err, models.ErrProductUnavailable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithDomainError writes err with its mapped status. Internal errors are logged and
// replaced by a generic message.
func RespondWithDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("err", err))
		RespondWithError(w, code, "internal error")
		return
	}
	RespondWithError(w, code, publicMessage(err))
}

// publicMessage hides wrapped detail such as order ids for the access errors, so a denied
// lookup reads exactly like a missing one.
func publicMessage(err error) string {
	for _, s := range []error{models.ErrUnauthenticated, models.ErrForbidden, models.ErrNotFound} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}
