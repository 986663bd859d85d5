package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var agentTracer = otel.Tracer("service/agent")

// AgentService runs the agent dashboard: assigned applications, claims and
// the agent's own blogs.
type AgentService struct {
	apps   port.ApplicationStore
	claims port.ClaimStore
	blogs  port.BlogStore
	logger *zap.Logger
	now    func() time.Time
}

func NewAgentService(apps port.ApplicationStore, claims port.ClaimStore, blogs port.BlogStore, logger *zap.Logger) *AgentService {
	return &AgentService{apps: apps, claims: claims, blogs: blogs, logger: logger, now: time.Now}
}

func validDecision(upd *domain.StatusUpdate) error {
	switch upd.Status {
	case domain.ApplicationApproved, domain.ApplicationRejected:
		return nil
	}
	return &domain.ErrValidation{Field: "status", Message: "status must be Approved or Rejected"}
}

// AssignedCustomers lists the applications assigned to agentEmail.
func (s *AgentService) AssignedCustomers(ctx context.Context, agentEmail string) ([]domain.Application, error) {
	ctx, span := agentTracer.Start(ctx, "AgentService.AssignedCustomers")
	defer span.End()

	apps, err := s.apps.ApplicationsByAgent(ctx, agentEmail)
	if err != nil {
		return nil, fmt.Errorf("list assigned applications: %w", err)
	}
	return apps, nil
}

// DecideApplication approves or rejects an application assigned to agentEmail.
func (s *AgentService) DecideApplication(ctx context.Context, agentEmail, id string, upd *domain.StatusUpdate) error {
	ctx, span := agentTracer.Start(ctx, "AgentService.DecideApplication")
	defer span.End()

	if err := validDecision(upd); err != nil {
		return err
	}
	apps, err := s.apps.ApplicationsByAgent(ctx, agentEmail)
	if err != nil {
		return fmt.Errorf("list assigned applications: %w", err)
	}
	assigned := false
	for _, a := range apps {
		if a.ID == id {
			assigned = true
			break
		}
	}
	if !assigned {
		return &domain.ErrForbidden{Action: "decide an application not assigned to you"}
	}

	if err := s.apps.UpdateApplicationStatus(ctx, id, upd); err != nil {
		return err
	}
	s.logger.Info("application decided",
		zap.String("application_id", id),
		zap.String("status", upd.Status),
		zap.String("agent", agentEmail),
	)
	return nil
}

func (s *AgentService) Claims(ctx context.Context, agentEmail string) ([]domain.Claim, error) {
	ctx, span := agentTracer.Start(ctx, "AgentService.Claims")
	defer span.End()

	claims, err := s.claims.ClaimsByAgent(ctx, agentEmail)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return claims, nil
}

func (s *AgentService) DecideClaim(ctx context.Context, id string, upd *domain.StatusUpdate) error {
	ctx, span := agentTracer.Start(ctx, "AgentService.DecideClaim")
	defer span.End()

	if err := validDecision(upd); err != nil {
		return err
	}
	return s.claims.UpdateClaimStatus(ctx, id, upd)
}

func (s *AgentService) MyBlogs(ctx context.Context, email string) ([]domain.Blog, error) {
	ctx, span := agentTracer.Start(ctx, "AgentService.MyBlogs")
	defer span.End()

	return s.blogs.ListBlogs(ctx, email)
}

func validBlog(b *domain.Blog) error {
	if strings.TrimSpace(b.Title) == "" || strings.TrimSpace(b.Content) == "" {
		return &domain.ErrValidation{Field: "blog", Message: "title and content are required"}
	}
	return nil
}

// PublishBlog publishes b under the caller's name.
func (s *AgentService) PublishBlog(ctx context.Context, ident *domain.Identity, b *domain.Blog) (*domain.Blog, error) {
	ctx, span := agentTracer.Start(ctx, "AgentService.PublishBlog")
	defer span.End()

	if err := validBlog(b); err != nil {
		return nil, err
	}
	b.ID = ""
	b.AuthorEmail = ident.Email
	b.AuthorName = ident.DisplayName
	b.AuthorPhoto = ident.PhotoURL
	b.Visits = 0
	b.PublishedAt = s.now().UTC()
	return s.blogs.CreateBlog(ctx, b)
}

// ownBlog fails unless blog id was written by email.
func (s *AgentService) ownBlog(ctx context.Context, email, id string) (*domain.Blog, error) {
	blog, err := s.blogs.GetBlog(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(blog.AuthorEmail, email) {
		return nil, &domain.ErrForbidden{Action: "edit another author's blog"}
	}
	return blog, nil
}

func (s *AgentService) EditBlog(ctx context.Context, ident *domain.Identity, id string, b *domain.Blog) (*domain.Blog, error) {
	ctx, span := agentTracer.Start(ctx, "AgentService.EditBlog")
	defer span.End()

	if err := validBlog(b); err != nil {
		return nil, err
	}
	existing, err := s.ownBlog(ctx, ident.Email, id)
	if err != nil {
		return nil, err
	}
	existing.Title = b.Title
	existing.Content = b.Content
	if b.ImageURL != "" {
		existing.ImageURL = b.ImageURL
	}
	return s.blogs.UpdateBlog(ctx, id, existing)
}

func (s *AgentService) DeleteBlog(ctx context.Context, ident *domain.Identity, id string) error {
	ctx, span := agentTracer.Start(ctx, "AgentService.DeleteBlog")
	defer span.End()

	if _, err := s.ownBlog(ctx, ident.Email, id); err != nil {
		return err
	}
	return s.blogs.DeleteBlog(ctx, id)
}
