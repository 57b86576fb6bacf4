package middleware

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"storefront/globals"
	"storefront/metrics"
	"storefront/models"
	"storefront/utils"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// CallerResolver turns a credential into a caller.
type CallerResolver interface {
	ResolveCaller(credential string) (models.Caller, error)
}

type Middleware func(httprouter.Handle) httprouter.Handle

// Chain composes mws so that the first one listed runs first.
func Chain(mws ...Middleware) Middleware {
	return func(h httprouter.Handle) httprouter.Handle {
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}

// Authenticate rejects requests without a valid bearer token and stores the caller in the
// request context. Browsers cannot set headers on websocket upgrades, so a "token" query
// parameter is accepted there.
func Authenticate(resolver CallerResolver) Middleware {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			credential := r.Header.Get("Authorization")
			if credential == "" && websocket.IsWebSocketUpgrade(r) {
				credential = r.URL.Query().Get("token")
			}

			caller, err := resolver.ResolveCaller(credential)
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, models.ErrUnauthenticated.Error())
				return
			}

			ctx := context.WithValue(r.Context(), globals.CallerKey, caller)
			next(w, r.WithContext(ctx), ps)
		}
	}
}

// OptionalAuth stores the caller when a valid token is present and proceeds regardless.
func OptionalAuth(resolver CallerResolver) Middleware {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			if credential := r.Header.Get("Authorization"); credential != "" {
				if caller, err := resolver.ResolveCaller(credential); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), globals.CallerKey, caller))
				}
			}
			next(w, r, ps)
		}
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !utils.GetCallerFromRequest(r).IsAdmin() {
			utils.RespondWithError(w, http.StatusForbidden, models.ErrForbidden.Error())
			return
		}
		next(w, r, ps)
	}
}

// Instrument records request count and latency under name.
func Instrument(m *metrics.ServerMetrics, name string) Middleware {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			start := time.Now()
			rec := NewStatusRecorder(w)
			next(rec, r, ps)
			m.Requests.WithLabelValues(name, strconv.Itoa(rec.Status())).Inc()
			m.LatencyMS.WithLabelValues(name).Observe(float64(time.Since(start).Milliseconds()))
		}
	}
}

// SecurityHeaders sets the response headers every reply carries.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := NewStatusRecorder(w)
			next.ServeHTTP(rec, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.Status(),
				"remote", r.RemoteAddr,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// StatusRecorder remembers the status code written through it. It keeps Hijack working so
// websocket upgrades pass through.
type StatusRecorder struct {
	http.ResponseWriter
	status int
}

func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (s *StatusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *StatusRecorder) Status() int { return s.status }

func (s *StatusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *StatusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
