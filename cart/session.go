package cart

import (
	"context"
	"net/http"
	"time"

	"storefront/globals"
	"storefront/utils"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

const (
	SessionCookie = "cart_session"
	SessionHeader = "X-Cart-Session"
)

// Session attaches a browsing-session id to the request, minting one on first use. The id
// is echoed back as a cookie and a header so API clients without cookies can carry it too.
func Session(maxAge time.Duration, secure bool) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			id := sessionFromRequest(r)
			if id == "" {
				id = utils.GetUUID()
			}

			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(maxAge.Seconds()),
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
			w.Header().Set(SessionHeader, id)

			ctx := context.WithValue(r.Context(), globals.SessionKey, id)
			next(w, r.WithContext(ctx), ps)
		}
	}
}

// sessionFromRequest accepts only well-formed UUIDs so clients cannot pick arbitrary keys.
func sessionFromRequest(r *http.Request) string {
	candidate := r.Header.Get(SessionHeader)
	if candidate == "" {
		if c, err := r.Cookie(SessionCookie); err == nil {
			candidate = c.Value
		}
	}
	if _, err := uuid.Parse(candidate); err != nil {
		return ""
	}
	return candidate
}

// SessionFromContext returns the id stored by Session.
func SessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(globals.SessionKey).(string)
	return id
}
