package handler

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/observability"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/session"
	"github.com/boddenberg/lifecover-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionMiddleware attaches the caller's session, if any, to the request
// context. Missing, tampered and expired cookies leave the request anonymous.
// When the session cannot be loaded at all the request continues anonymously,
// marked unavailable, so public routes keep working.
func SessionMiddleware(sessions *service.SessionHolder, cookies *session.Cookies, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := cookies.Read(r)
			if err != nil || !sessions.Ready() {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := sessions.Current(r.Context(), id)
			if err != nil {
				var unauth *domain.ErrUnauthorized
				if errors.As(err, &unauth) {
					logger.Debug("session: dropping stale cookie", zap.String("path", r.URL.Path))
					cookies.Clear(w)
					next.ServeHTTP(w, r)
					return
				}
				logger.Warn("session: unavailable, serving anonymously",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				next.ServeHTTP(w, r.WithContext(service.WithSessionUnavailable(r.Context())))
				return
			}

			next.ServeHTTP(w, r.WithContext(service.WithSession(r.Context(), sess)))
		})
	}
}

// signInLocation is where the SPA renders its sign-in view.
func signInLocation(from string) string {
	return "/login?from=" + url.QueryEscape(from)
}

// RouteGuard lets the request through only when the guard allows it. With
// no permitted roles any signed-in caller is allowed.
func RouteGuard(guard *service.Guard, logger *zap.Logger, permitted ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, _ := service.SessionFrom(r.Context())
			decision, res := guard.Evaluate(r.Context(), sess, permitted, r.URL.RequestURI())

			switch decision.Outcome {
			case domain.OutcomeLoading:
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
			case domain.OutcomeRedirectSignIn:
				if wantsHTML(r) {
					http.Redirect(w, r, signInLocation(decision.From), http.StatusFound)
					return
				}
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error":  "sign in required",
					"signIn": signInLocation(decision.From),
				})
			case domain.OutcomeDenied:
				logger.Warn("guard: role not permitted",
					zap.String("path", r.URL.Path),
					zap.String("role", res.Role.String()),
					zap.Bool("fallback", res.Fallback),
				)
				writeError(w, http.StatusForbidden, "forbidden")
			default:
				next.ServeHTTP(w, r.WithContext(service.WithRole(r.Context(), res)))
			}
		})
	}
}

// durationMiddleware records handler latency keyed by the matched route
// pattern, so /v1/policies/{id} is one series rather than one per id.
func durationMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = "unmatched"
			}
			metrics.RecordRequestDuration(r.Method+" "+pattern, time.Since(start))
		})
	}
}
