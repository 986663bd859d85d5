package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/observability"
	"github.com/boddenberg/lifecover-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var dashboardTracer = otel.Tracer("service/dashboard")

// DashboardStores groups the backend ports the overview counters read.
type DashboardStores struct {
	Users         port.UserStore
	Applications  port.ApplicationStore
	Payments      port.PaymentStore
	Claims        port.ClaimStore
	Blogs         port.BlogStore
	AgentRequests port.AgentRequestStore
}

// DashboardService builds the dashboard shell and overview for the caller.
type DashboardService struct {
	stores  DashboardStores
	roles   *RoleResolver
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewDashboardService(stores DashboardStores, roles *RoleResolver, metrics *observability.Metrics, logger *zap.Logger) *DashboardService {
	return &DashboardService{stores: stores, roles: roles, metrics: metrics, logger: logger}
}

// Shell returns navigation, title and breadcrumbs for path. res is the role
// resolution already made for this request, if any.
func (s *DashboardService) Shell(ctx context.Context, ident *domain.Identity, res RoleResolution, path, userAgent string) *domain.DashboardShell {
	_, span := dashboardTracer.Start(ctx, "DashboardService.Shell")
	defer span.End()

	if !res.Resolved() {
		res = s.roles.Resolve(ctx, ident.Email)
	}
	span.SetAttributes(attribute.String("role", res.Role.String()), attribute.String("path", path))
	return BuildShell(res, path, IsNarrowViewport(userAgent))
}

// Overview fetches the role's counters concurrently. Any failed fetch fails
// the whole overview.
func (s *DashboardService) Overview(ctx context.Context, ident *domain.Identity, res RoleResolution) (*domain.DashboardOverview, error) {
	ctx, span := dashboardTracer.Start(ctx, "DashboardService.Overview")
	defer span.End()

	if !res.Resolved() {
		res = s.roles.Resolve(ctx, ident.Email)
	}

	type counter struct {
		name  string
		fetch func(context.Context) (int, error)
	}
	var counters []counter

	switch res.Role {
	case domain.RoleAdmin:
		counters = []counter{
			{"users", func(ctx context.Context) (int, error) {
				v, err := s.stores.Users.ListUsers(ctx)
				return len(v), err
			}},
			{"applications", func(ctx context.Context) (int, error) {
				v, err := s.stores.Applications.ListApplications(ctx)
				return countApps(v, ""), err
			}},
			{"pendingApplications", func(ctx context.Context) (int, error) {
				v, err := s.stores.Applications.ListApplications(ctx)
				return countApps(v, domain.ApplicationPending), err
			}},
			{"transactions", func(ctx context.Context) (int, error) {
				v, err := s.stores.Payments.ListTransactions(ctx)
				return len(v), err
			}},
			{"agentRequests", func(ctx context.Context) (int, error) {
				v, err := s.stores.AgentRequests.ListAgentRequests(ctx)
				return len(v), err
			}},
		}
	case domain.RoleAgent:
		counters = []counter{
			{"assignedCustomers", func(ctx context.Context) (int, error) {
				v, err := s.stores.Applications.ApplicationsByAgent(ctx, ident.Email)
				return len(v), err
			}},
			{"claims", func(ctx context.Context) (int, error) {
				v, err := s.stores.Claims.ClaimsByAgent(ctx, ident.Email)
				return len(v), err
			}},
			{"blogs", func(ctx context.Context) (int, error) {
				v, err := s.stores.Blogs.ListBlogs(ctx, ident.Email)
				return len(v), err
			}},
		}
	case domain.RoleCustomer:
		counters = []counter{
			{"applications", func(ctx context.Context) (int, error) {
				v, err := s.stores.Applications.ApplicationsByApplicant(ctx, ident.Email)
				return countApps(v, ""), err
			}},
			{"activePolicies", func(ctx context.Context) (int, error) {
				v, err := s.stores.Applications.ApplicationsByApplicant(ctx, ident.Email)
				return countApps(v, domain.ApplicationApproved), err
			}},
			{"payments", func(ctx context.Context) (int, error) {
				v, err := s.stores.Payments.PaymentsByEmail(ctx, ident.Email)
				return len(v), err
			}},
		}
	}

	values := make([]int, len(counters))
	g, gCtx := errgroup.WithContext(ctx)
	for i, c := range counters {
		g.Go(func() error {
			n, err := c.fetch(gCtx)
			if err != nil {
				s.metrics.IncrExternalError("backend")
				s.logger.Error("overview counter failed", zap.String("counter", c.name), zap.Error(err))
				return fmt.Errorf("%s: %w", c.name, err)
			}
			values[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &domain.DashboardOverview{Role: res.Role, Counters: make(map[string]int, len(counters))}
	for i, c := range counters {
		out.Counters[c.name] = values[i]
	}
	return out, nil
}

// countApps counts applications with status, or all when status is empty.
func countApps(apps []domain.Application, status string) int {
	if status == "" {
		return len(apps)
	}
	n := 0
	for _, a := range apps {
		if a.Status == status {
			n++
		}
	}
	return n
}
