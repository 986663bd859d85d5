package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/observability"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/session"
	"github.com/boddenberg/lifecover-bfa-go/internal/port"
	"github.com/boddenberg/lifecover-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger is a dependency probed by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the router exposes.
type Deps struct {
	Sessions  *service.SessionHolder
	Cookies   *session.Cookies
	Guard     *service.Guard
	Quotes    *service.QuoteService
	Catalog   *service.CatalogService
	Customers *service.CustomerService
	Agents    *service.AgentService
	Admin     *service.AdminService
	Dashboard *service.DashboardService
	Images    port.ImageUploader

	// Checks are probed by /healthz, keyed by dependency name.
	Checks map[string]Pinger

	// MaxUploadBytes caps POST /v1/uploads/image. Zero means 5 MiB.
	MaxUploadBytes int64

	// PaymentPublicKey is the processor's publishable key handed to the
	// checkout form.
	PaymentPublicKey string

	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	logger := d.Logger

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(durationMiddleware(d.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Checks, logger))
	r.Get("/readyz", readyzHandler(d.Sessions))
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(SessionMiddleware(d.Sessions, d.Cookies, logger))

		signedIn := RouteGuard(d.Guard, logger)
		customers := RouteGuard(d.Guard, logger, domain.RoleCustomer)
		agents := RouteGuard(d.Guard, logger, domain.RoleAgent)
		admins := RouteGuard(d.Guard, logger, domain.RoleAdmin)

		// =============================================
		// Session
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", loginHandler(d.Sessions, d.Cookies, logger))
			r.Post("/register", registerHandler(d.Sessions, d.Cookies, logger))
			r.Post("/logout", logoutHandler(d.Sessions, d.Cookies, logger))
			r.Get("/google", googleStartHandler(d.Sessions, logger))
			r.Get("/google/callback", googleCallbackHandler(d.Sessions, d.Cookies, logger))
		})
		r.Get("/session", sessionHandler(d.Sessions))
		r.Get("/access", accessHandler(d.Guard, logger))

		// =============================================
		// Public site
		// =============================================
		r.Get("/policies", listPoliciesHandler(d.Catalog, logger))
		r.Get("/policies/popular", popularPoliciesHandler(d.Catalog, logger))
		r.Get("/policies/{id}", getPolicyHandler(d.Catalog, logger))
		r.Get("/blogs", listBlogsHandler(d.Catalog, logger))
		r.Get("/blogs/{id}", readBlogHandler(d.Catalog, logger))
		r.Get("/reviews", listReviewsHandler(d.Catalog, logger))
		r.Post("/newsletter", subscribeHandler(d.Catalog, logger))

		// =============================================
		// Any signed-in user
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(signedIn)
			r.Get("/dashboard/shell", dashboardShellHandler(d.Dashboard))
			r.Get("/dashboard/overview", dashboardOverviewHandler(d.Dashboard, logger))
			r.Post("/quotes", quoteHandler(d.Quotes, logger))
			r.Post("/applications", applyHandler(d.Customers, logger))
			r.Get("/me/profile", getProfileHandler(d.Customers, logger))
			r.Patch("/me/profile", updateProfileHandler(d.Customers, d.Sessions, logger))
			r.Post("/uploads/image", uploadImageHandler(d.Images, d.MaxUploadBytes, logger))
		})

		// =============================================
		// Customer
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(customers)
			r.Get("/me/policies", myPoliciesHandler(d.Customers, logger))
			r.Get("/me/payments", myPaymentsHandler(d.Customers, logger))
			r.Get("/payments/config", paymentConfigHandler(d.PaymentPublicKey))
			r.Post("/payments/intent", paymentIntentHandler(d.Customers, logger))
			r.Post("/payments", recordPaymentHandler(d.Customers, logger))
			r.Post("/claims", fileClaimHandler(d.Customers, logger))
			r.Post("/reviews", submitReviewHandler(d.Customers, logger))
			r.Post("/agent-requests", applyAsAgentHandler(d.Customers, logger))
		})

		// =============================================
		// Agent
		// =============================================
		r.Route("/agent", func(r chi.Router) {
			r.Use(agents)
			r.Get("/customers", assignedCustomersHandler(d.Agents, logger))
			r.Patch("/applications/{id}/status", decideApplicationHandler(d.Agents, logger))
			r.Get("/claims", agentClaimsHandler(d.Agents, logger))
			r.Patch("/claims/{id}", decideClaimHandler(d.Agents, logger))
			r.Get("/blogs", myBlogsHandler(d.Agents, logger))
			r.Post("/blogs", publishBlogHandler(d.Agents, logger))
			r.Put("/blogs/{id}", editBlogHandler(d.Agents, logger))
			r.Delete("/blogs/{id}", deleteBlogHandler(d.Agents, logger))
		})

		// =============================================
		// Admin
		// =============================================
		r.Route("/admin", func(r chi.Router) {
			r.Use(admins)
			r.Get("/users", listUsersHandler(d.Admin, logger))
			r.Patch("/users/{email}/role", changeRoleHandler(d.Admin, logger))
			r.Post("/policies", createPolicyHandler(d.Admin, logger))
			r.Put("/policies/{id}", updatePolicyHandler(d.Admin, logger))
			r.Delete("/policies/{id}", deletePolicyHandler(d.Admin, logger))
			r.Get("/applications", listApplicationsHandler(d.Admin, logger))
			r.Patch("/applications/{id}/assign", assignAgentHandler(d.Admin, logger))
			r.Patch("/applications/{id}/reject", rejectApplicationHandler(d.Admin, logger))
			r.Get("/transactions", listTransactionsHandler(d.Admin, logger))
			r.Get("/agent-requests", listAgentRequestsHandler(d.Admin, logger))
			r.Patch("/agent-requests/{id}", decideAgentRequestHandler(d.Admin, logger))
			r.Get("/metrics/access", accessMetricsHandler(d.Admin))
		})
	})

	return r
}

// ============================================================
// Probes
// ============================================================

func healthzHandler(checks map[string]Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)
		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LastChecked: now},
		}

		overall := "healthy"
		for name, c := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			start := time.Now()
			err := c.Ping(ctx)
			cancel()

			status := "healthy"
			if err != nil {
				status = "degraded"
				overall = "degraded"
				logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name:        name,
				Status:      status,
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			})
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

// readyzHandler reports ready once identity tokens can be verified.
func readyzHandler(sessions *service.SessionHolder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !sessions.Ready() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "initializing"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
