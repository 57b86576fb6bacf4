package utils

import (
	"net/http"

	"storefront/globals"
	"storefront/models"
)

// GetCallerFromRequest returns the caller stored by the authentication middleware.
// Anonymous requests yield the zero Caller.
func GetCallerFromRequest(r *http.Request) models.Caller {
	c, _ := r.Context().Value(globals.CallerKey).(models.Caller)
	return c
}

func GetUserIDFromRequest(r *http.Request) string {
	return GetCallerFromRequest(r).UserID
}
