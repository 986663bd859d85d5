package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/observability"
	"github.com/boddenberg/lifecover-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var adminTracer = otel.Tracer("service/admin")

// AdminStores groups the backend ports the admin dashboard touches.
type AdminStores struct {
	Users         port.UserStore
	Catalog       port.CatalogStore
	Applications  port.ApplicationStore
	Payments      port.PaymentStore
	AgentRequests port.AgentRequestStore
}

// AdminService runs the admin dashboard.
type AdminService struct {
	stores  AdminStores
	roles   *RoleResolver
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewAdminService(stores AdminStores, roles *RoleResolver, metrics *observability.Metrics, logger *zap.Logger) *AdminService {
	return &AdminService{stores: stores, roles: roles, metrics: metrics, logger: logger}
}

func (s *AdminService) Users(ctx context.Context) ([]domain.User, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.Users")
	defer span.End()

	users, err := s.stores.Users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ChangeRole assigns role to email. Admins cannot change their own role.
func (s *AdminService) ChangeRole(ctx context.Context, actorEmail, email string, role domain.Role) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.ChangeRole")
	defer span.End()
	span.SetAttributes(attribute.String("user.email", email), attribute.String("role", role.String()))

	if !role.Valid() {
		return &domain.ErrValidation{Field: "role", Message: "role must be admin, agent or customer"}
	}
	if strings.EqualFold(actorEmail, email) {
		return &domain.ErrValidation{Field: "email", Message: "you cannot change your own role"}
	}
	if err := s.stores.Users.SetUserRole(ctx, email, role); err != nil {
		return err
	}
	s.roles.Invalidate(email)

	s.logger.Info("role changed",
		zap.String("actor", actorEmail),
		zap.String("email", email),
		zap.String("role", role.String()),
	)
	return nil
}

func validPolicy(p *domain.Policy) error {
	if strings.TrimSpace(p.Title) == "" {
		return &domain.ErrValidation{Field: "title", Message: "title is required"}
	}
	if strings.TrimSpace(p.Category) == "" {
		return &domain.ErrValidation{Field: "category", Message: "category is required"}
	}
	if p.MinAge < domain.MinQuoteAge || p.MaxAge > domain.MaxQuoteAge || p.MinAge > p.MaxAge {
		return &domain.ErrValidation{Field: "age", Message: "age range must lie within 18-99"}
	}
	if p.BasePremiumRate < 0 {
		return &domain.ErrValidation{Field: "basePremiumRate", Message: "must not be negative"}
	}
	return nil
}

func (s *AdminService) CreatePolicy(ctx context.Context, p *domain.Policy) (*domain.Policy, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.CreatePolicy")
	defer span.End()

	if err := validPolicy(p); err != nil {
		return nil, err
	}
	p.ID = ""
	return s.stores.Catalog.CreatePolicy(ctx, p)
}

func (s *AdminService) UpdatePolicy(ctx context.Context, id string, p *domain.Policy) (*domain.Policy, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.UpdatePolicy")
	defer span.End()

	if err := validPolicy(p); err != nil {
		return nil, err
	}
	return s.stores.Catalog.UpdatePolicy(ctx, id, p)
}

func (s *AdminService) DeletePolicy(ctx context.Context, id string) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.DeletePolicy")
	defer span.End()

	return s.stores.Catalog.DeletePolicy(ctx, id)
}

func (s *AdminService) Applications(ctx context.Context) ([]domain.Application, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.Applications")
	defer span.End()

	apps, err := s.stores.Applications.ListApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// AssignAgent hands an application to agentEmail, who must hold the agent role.
func (s *AdminService) AssignAgent(ctx context.Context, id, agentEmail string) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.AssignAgent")
	defer span.End()

	if strings.TrimSpace(agentEmail) == "" {
		return &domain.ErrValidation{Field: "agentEmail", Message: "agent is required"}
	}
	res := s.roles.Resolve(ctx, agentEmail)
	if res.Fallback || res.Role != domain.RoleAgent {
		return &domain.ErrValidation{Field: "agentEmail", Message: "user is not an agent"}
	}
	return s.stores.Applications.AssignAgent(ctx, id, agentEmail)
}

// RejectApplication rejects an application with feedback for the applicant.
func (s *AdminService) RejectApplication(ctx context.Context, id, feedback string) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.RejectApplication")
	defer span.End()

	if strings.TrimSpace(feedback) == "" {
		return &domain.ErrValidation{Field: "feedback", Message: "rejection feedback is required"}
	}
	return s.stores.Applications.UpdateApplicationStatus(ctx, id, &domain.StatusUpdate{
		Status:   domain.ApplicationRejected,
		Feedback: feedback,
	})
}

func (s *AdminService) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.Transactions")
	defer span.End()

	txs, err := s.stores.Payments.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *AdminService) AgentRequests(ctx context.Context) ([]domain.AgentRequest, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.AgentRequests")
	defer span.End()

	reqs, err := s.stores.AgentRequests.ListAgentRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agent requests: %w", err)
	}
	return reqs, nil
}

// DecideAgentRequest approves or rejects a request. Approval promotes the
// requester to the agent role.
func (s *AdminService) DecideAgentRequest(ctx context.Context, id string, approve bool) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.DecideAgentRequest")
	defer span.End()

	reqs, err := s.stores.AgentRequests.ListAgentRequests(ctx)
	if err != nil {
		return fmt.Errorf("list agent requests: %w", err)
	}
	var req *domain.AgentRequest
	for i := range reqs {
		if reqs[i].ID == id {
			req = &reqs[i]
			break
		}
	}
	if req == nil {
		return &domain.ErrNotFound{Resource: "agent request", ID: id}
	}

	status := domain.ApplicationRejected
	if approve {
		status = domain.ApplicationApproved
	}
	if err := s.stores.AgentRequests.UpdateAgentRequest(ctx, id, &domain.StatusUpdate{Status: status}); err != nil {
		return err
	}
	if !approve {
		return nil
	}

	if err := s.stores.Users.SetUserRole(ctx, req.Email, domain.RoleAgent); err != nil {
		return fmt.Errorf("promote %s: %w", req.Email, err)
	}
	s.roles.Invalidate(req.Email)
	s.logger.Info("agent request approved", zap.String("email", req.Email))
	return nil
}

// AccessMetrics returns route guard and role resolution counters.
func (s *AdminService) AccessMetrics() *domain.AccessMetrics {
	return s.metrics.GetAccessSnapshot()
}
