package handler

import (
	"net/http"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Agent dashboard
// ============================================================

func assignedCustomersHandler(agents *service.AgentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/agent/customers")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		apps, err := agents.AssignedCustomers(ctx, sess.Identity.Email)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
	}
}

func decideApplicationHandler(agents *service.AgentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/agent/applications/{id}/status")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		var upd domain.StatusUpdate
		if !decodeJSON(w, r, &upd) {
			return
		}
		id := chi.URLParam(r, "id")
		if err := agents.DecideApplication(ctx, sess.Identity.Email, id, &upd); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "application " + upd.Status, ID: id})
	}
}

func agentClaimsHandler(agents *service.AgentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/agent/claims")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		claims, err := agents.Claims(ctx, sess.Identity.Email)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"claims": claims})
	}
}

func decideClaimHandler(agents *service.AgentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/agent/claims/{id}")
		defer span.End()

		var upd domain.StatusUpdate
		if !decodeJSON(w, r, &upd) {
			return
		}
		id := chi.URLParam(r, "id")
		if err := agents.DecideClaim(ctx, id, &upd); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "claim " + upd.Status, ID: id})
	}
}

func myBlogsHandler(agents *service.AgentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/agent/blogs")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		blogs, err := agents.MyBlogs(ctx, sess.Identity.Email)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"blogs": blogs})
	}
}

func publishBlogHandler(agents *service.AgentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/agent/blogs")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		var b domain.Blog
		if !decodeJSON(w, r, &b) {
			return
		}
		blog, err := agents.PublishBlog(ctx, &sess.Identity, &b)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, blog)
	}
}

func editBlogHandler(agents *service.AgentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/agent/blogs/{id}")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		var b domain.Blog
		if !decodeJSON(w, r, &b) {
			return
		}
		blog, err := agents.EditBlog(ctx, &sess.Identity, chi.URLParam(r, "id"), &b)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, blog)
	}
}

func deleteBlogHandler(agents *service.AgentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/agent/blogs/{id}")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		if err := agents.DeleteBlog(ctx, &sess.Identity, chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
