package http

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/metrics"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/service"
	"github.com/aussiebroadwan/zerohunger/pkg/httpx"
	"github.com/aussiebroadwan/zerohunger/pkg/slogx"
)

// SessionCookie holds the signed session token.
const SessionCookie = "zh_session"

type (
	sessionCtxKey struct{}
	userCtxKey    struct{}
)

func sessionFromContext(ctx context.Context) (domain.Session, bool) {
	s, ok := ctx.Value(sessionCtxKey{}).(domain.Session)
	return s, ok
}

// userFromContext returns the user admitted by requireRole.
func userFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(domain.User)
	return u, ok
}

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// requireSession resolves the session cookie into a stored session in any
// state. Requests without one get 401.
func (r *Router) requireSession() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			sess, err := r.AuthService.Resolve(ctx, sessionToken(req))
			if err != nil {
				writeServiceError(w, req, err)
				return
			}

			ctx = context.WithValue(ctx, sessionCtxKey{}, sess)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

// requireRole admits verified sessions whose user holds role. It must run
// after requireSession.
func (r *Router) requireRole(role domain.Role) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			sess, ok := sessionFromContext(ctx)
			if !ok {
				writeServiceError(w, req, service.ErrNotAuthenticated)
				return
			}

			user, err := r.AuthService.Authorize(ctx, sess, role)
			if err != nil {
				if errors.Is(err, service.ErrWrongRole) {
					slogx.FromContext(ctx).Warn("role check failed",
						"user_id", user.ID, "role", user.Role, "required", role)
				}
				writeServiceError(w, req, err)
				return
			}

			ctx = context.WithValue(ctx, userCtxKey{}, user)
			ctx = httpx.WithUserID(ctx, user.ID)
			ctx = slogx.WithUser(ctx, user.ID, user.Role.String())
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

// instrument records request durations by matched route pattern. It has to
// wrap the mux directly because the mux sets Pattern on the request it is
// handed.
func instrument() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPDuration.
				WithLabelValues(route, strconv.Itoa(sw.status)).
				Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("http: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
