package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Access, dashboard shell and quotes
// ============================================================

// accessHandler answers whether the SPA may render a view:
// GET /v1/access?view=/dashboard/manage-users
func accessHandler(guard *service.Guard, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/access")
		defer span.End()

		view := strings.TrimSpace(r.URL.Query().Get("view"))
		if view == "" {
			writeError(w, http.StatusBadRequest, "view is required")
			return
		}
		span.SetAttributes(attribute.String("view", view))

		sess, _ := service.SessionFrom(ctx)
		decision, res := guard.EvaluateView(ctx, sess, view)

		resp := domain.AccessResponse{View: view, Outcome: string(decision.Outcome)}
		switch decision.Outcome {
		case domain.OutcomeRedirectSignIn:
			resp.SignIn = signInLocation(decision.From)
		case domain.OutcomeLoading:
			w.Header().Set("Retry-After", "1")
		}
		if res.Resolved() {
			resp.Role = res.Role.String()
			resp.Fallback = res.Fallback
		}
		logger.Debug("access decided",
			zap.String("view", view),
			zap.String("outcome", resp.Outcome),
			zap.String("role", resp.Role),
		)
		writeJSON(w, http.StatusOK, resp)
	}
}

func dashboardShellHandler(dash *service.DashboardService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/shell")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		path := r.URL.Query().Get("path")
		if path == "" {
			path = "/dashboard"
		}
		res, _ := service.RoleFrom(ctx)
		writeJSON(w, http.StatusOK, dash.Shell(ctx, &sess.Identity, res, path, r.UserAgent()))
	}
}

func dashboardOverviewHandler(dash *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/overview")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		res, _ := service.RoleFrom(ctx)
		overview, err := dash.Overview(ctx, &sess.Identity, res)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, overview)
	}
}

func quoteHandler(quotes *service.QuoteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/quotes")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		var in domain.QuoteInput
		if !decodeJSON(w, r, &in) {
			return
		}
		q, err := quotes.Issue(ctx, sess.Identity.Email, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}
