package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var catalogTracer = otel.Tracer("service/catalog")

const (
	defaultPageSize = 9
	maxPageSize     = 50
)

// CatalogService serves the public site: policies, blogs, reviews and the
// newsletter.
type CatalogService struct {
	catalog port.CatalogStore
	blogs   port.BlogStore
	logger  *zap.Logger
}

func NewCatalogService(catalog port.CatalogStore, blogs port.BlogStore, logger *zap.Logger) *CatalogService {
	return &CatalogService{catalog: catalog, blogs: blogs, logger: logger}
}

// ListPolicies returns one page of policies matching q.
func (s *CatalogService) ListPolicies(ctx context.Context, q domain.PolicyQuery) (*domain.PolicyPage, error) {
	ctx, span := catalogTracer.Start(ctx, "CatalogService.ListPolicies")
	defer span.End()

	q.Search = strings.TrimSpace(q.Search)
	q.Category = strings.TrimSpace(q.Category)
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.PageSize <= 0:
		q.PageSize = defaultPageSize
	case q.PageSize > maxPageSize:
		q.PageSize = maxPageSize
	}
	span.SetAttributes(
		attribute.String("policy.search", q.Search),
		attribute.Int("policy.page", q.Page),
	)

	page, err := s.catalog.ListPolicies(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	if page.Policies == nil {
		page.Policies = []domain.Policy{}
	}
	return page, nil
}

func (s *CatalogService) PopularPolicies(ctx context.Context) ([]domain.Policy, error) {
	ctx, span := catalogTracer.Start(ctx, "CatalogService.PopularPolicies")
	defer span.End()

	policies, err := s.catalog.PopularPolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("popular policies: %w", err)
	}
	return policies, nil
}

func (s *CatalogService) GetPolicy(ctx context.Context, id string) (*domain.Policy, error) {
	ctx, span := catalogTracer.Start(ctx, "CatalogService.GetPolicy")
	defer span.End()

	if strings.TrimSpace(id) == "" {
		return nil, &domain.ErrValidation{Field: "id", Message: "policy id is required"}
	}
	return s.catalog.GetPolicy(ctx, id)
}

func (s *CatalogService) ListBlogs(ctx context.Context) ([]domain.Blog, error) {
	ctx, span := catalogTracer.Start(ctx, "CatalogService.ListBlogs")
	defer span.End()

	blogs, err := s.blogs.ListBlogs(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	return blogs, nil
}

// ReadBlog returns a blog and counts the visit. A failed count is logged only.
func (s *CatalogService) ReadBlog(ctx context.Context, id string) (*domain.Blog, error) {
	ctx, span := catalogTracer.Start(ctx, "CatalogService.ReadBlog")
	defer span.End()

	blog, err := s.blogs.GetBlog(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.blogs.RecordBlogVisit(ctx, id); err != nil {
		s.logger.Warn("blog visit not recorded", zap.String("blog_id", id), zap.Error(err))
	} else {
		blog.Visits++
	}
	return blog, nil
}

func (s *CatalogService) ListReviews(ctx context.Context) ([]domain.Review, error) {
	ctx, span := catalogTracer.Start(ctx, "CatalogService.ListReviews")
	defer span.End()

	reviews, err := s.catalog.ListReviews(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// Subscribe adds sub to the newsletter.
func (s *CatalogService) Subscribe(ctx context.Context, sub *domain.NewsletterSubscription) error {
	ctx, span := catalogTracer.Start(ctx, "CatalogService.Subscribe")
	defer span.End()

	sub.Name = strings.TrimSpace(sub.Name)
	sub.Email = strings.TrimSpace(sub.Email)
	if sub.Name == "" {
		return &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	if _, err := mail.ParseAddress(sub.Email); err != nil {
		return &domain.ErrValidation{Field: "email", Message: "invalid email"}
	}
	return s.catalog.Subscribe(ctx, sub)
}
