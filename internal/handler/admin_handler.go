package handler

import (
	"net/http"
	"net/url"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Admin dashboard
// ============================================================

func listUsersHandler(admin *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/users")
		defer span.End()

		users, err := admin.Users(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	}
}

func changeRoleHandler(admin *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/admin/users/{email}/role")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		email, err := url.PathUnescape(chi.URLParam(r, "email"))
		if err != nil || email == "" {
			writeError(w, http.StatusBadRequest, "invalid email")
			return
		}
		var body domain.RoleChange
		if !decodeJSON(w, r, &body) {
			return
		}
		span.SetAttributes(attribute.String("user.email", email))

		if err := admin.ChangeRole(ctx, sess.Identity.Email, email, body.Role); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "role updated", ID: email})
	}
}

func createPolicyHandler(admin *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/policies")
		defer span.End()

		var p domain.Policy
		if !decodeJSON(w, r, &p) {
			return
		}
		created, err := admin.CreatePolicy(ctx, &p)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func updatePolicyHandler(admin *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/admin/policies/{id}")
		defer span.End()

		var p domain.Policy
		if !decodeJSON(w, r, &p) {
			return
		}
		updated, err := admin.UpdatePolicy(ctx, chi.URLParam(r, "id"), &p)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func deletePolicyHandler(admin *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/admin/policies/{id}")
		defer span.End()

		if err := admin.DeletePolicy(ctx, chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listApplicationsHandler(admin *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/applications")
		defer span.End()

		apps, err := admin.Applications(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
	}
}

func assignAgentHandler(admin *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/admin/applications/{id}/assign")
		defer span.End()

		var body domain.AgentAssignment
		if !decodeJSON(w, r, &body) {
			return
		}
		id := chi.URLParam(r, "id")
		if err := admin.AssignAgent(ctx, id, body.AgentEmail); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "agent assigned", ID: id})
	}
}

func rejectApplicationHandler(admin *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/admin/applications/{id}/reject")
		defer span.End()

		var body domain.StatusUpdate
		if !decodeJSON(w, r, &body) {
			return
		}
		id := chi.URLParam(r, "id")
		if err := admin.RejectApplication(ctx, id, body.Feedback); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "application rejected", ID: id})
	}
}

func listTransactionsHandler(admin *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/transactions")
		defer span.End()

		txs, err := admin.Transactions(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
	}
}

func listAgentRequestsHandler(admin *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/agent-requests")
		defer span.End()

		reqs, err := admin.AgentRequests(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"requests": reqs})
	}
}

// decideAgentRequestHandler takes {"status": "Approved"|"Rejected"}.
func decideAgentRequestHandler(admin *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/admin/agent-requests/{id}")
		defer span.End()

		var body domain.StatusUpdate
		if !decodeJSON(w, r, &body) {
			return
		}
		var approve bool
		switch body.Status {
		case domain.ApplicationApproved:
			approve = true
		case domain.ApplicationRejected:
		default:
			writeError(w, http.StatusBadRequest, "status must be Approved or Rejected")
			return
		}
		id := chi.URLParam(r, "id")
		if err := admin.DecideAgentRequest(ctx, id, approve); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "request " + body.Status, ID: id})
	}
}

func accessMetricsHandler(admin *service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, admin.AccessMetrics())
	}
}
