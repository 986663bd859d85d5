package handler

import (
	"net/http"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/session"
	"github.com/boddenberg/lifecover-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Session: sign-in, sign-up, sign-out, Google
// ============================================================

// startSession issues the cookie for sess and answers with its description.
func startSession(w http.ResponseWriter, r *http.Request, sessions *service.SessionHolder, cookies *session.Cookies, sess *domain.Session, status int, logger *zap.Logger) {
	if err := cookies.Set(w, sess.ID, sess.ExpiresAt); err != nil {
		handleServiceError(w, err, logger)
		return
	}
	writeJSON(w, status, sessions.Describe(r.Context(), sess))
}

func loginHandler(sessions *service.SessionHolder, cookies *session.Cookies, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()

		var req domain.SignInRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		sess, err := sessions.SignIn(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		startSession(w, r.WithContext(ctx), sessions, cookies, sess, http.StatusOK, logger)
	}
}

func registerHandler(sessions *service.SessionHolder, cookies *session.Cookies, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/register")
		defer span.End()

		var req domain.SignUpRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		sess, err := sessions.SignUp(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		startSession(w, r.WithContext(ctx), sessions, cookies, sess, http.StatusCreated, logger)
	}
}

// logoutHandler always clears the cookie, even when the stored session is
// already gone.
func logoutHandler(sessions *service.SessionHolder, cookies *session.Cookies, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/logout")
		defer span.End()

		if id, err := cookies.Read(r); err == nil {
			if err := sessions.SignOut(ctx, id); err != nil {
				logger.Warn("sign-out: session not removed", zap.Error(err))
			}
		}
		cookies.Clear(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

func googleStartHandler(sessions *service.SessionHolder, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authURL, err := sessions.BeginGoogle(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

func googleCallbackHandler(sessions *service.SessionHolder, cookies *session.Cookies, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/auth/google/callback")
		defer span.End()

		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			logger.Info("google sign-in cancelled", zap.String("reason", e))
			http.Redirect(w, r, "/login?error=google", http.StatusFound)
			return
		}

		sess, err := sessions.CompleteGoogle(ctx, q.Get("state"), q.Get("code"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := cookies.Set(w, sess.ID, sess.ExpiresAt); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	}
}

// sessionHandler describes the caller's session; loading while the holder
// initializes.
func sessionHandler(sessions *service.SessionHolder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := service.SessionFrom(r.Context())
		resp := sessions.Describe(r.Context(), sess)
		if resp.Loading {
			w.Header().Set("Retry-After", "1")
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
