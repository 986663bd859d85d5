package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
)

// ListPolicies returns one page of the catalog.
func (b *Backend) ListPolicies(ctx context.Context, q domain.PolicyQuery) (*domain.PolicyPage, error) {
	params := url.Values{}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("limit", strconv.Itoa(q.PageSize))
	}

	var page domain.PolicyPage
	err := b.do(ctx, call{
		method:   http.MethodGet,
		path:     "/policies",
		query:    params,
		out:      &page,
		resource: "policies",
	})
	if err != nil {
		return nil, err
	}
	if page.Page == 0 {
		page.Page = max(q.Page, 1)
	}
	if page.PageSize == 0 {
		page.PageSize = q.PageSize
	}
	if page.TotalPages == 0 && page.PageSize > 0 {
		page.TotalPages = (page.Total + page.PageSize - 1) / page.PageSize
	}
	return &page, nil
}

// PopularPolicies returns the most purchased policies.
func (b *Backend) PopularPolicies(ctx context.Context) ([]domain.Policy, error) {
	var policies []domain.Policy
	err := b.do(ctx, call{
		method:   http.MethodGet,
		path:     "/policies/popular",
		out:      &policies,
		resource: "policies",
	})
	return policies, err
}

// GetPolicy fetches one policy.
func (b *Backend) GetPolicy(ctx context.Context, id string) (*domain.Policy, error) {
	var p domain.Policy
	err := b.do(ctx, call{
		method:   http.MethodGet,
		path:     "/policies/" + url.PathEscape(id),
		out:      &p,
		resource: "policy",
		id:       id,
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (b *Backend) CreatePolicy(ctx context.Context, p *domain.Policy) (*domain.Policy, error) {
	var created domain.Policy
	err := b.do(ctx, call{
		method:   http.MethodPost,
		path:     "/admin/policies",
		body:     p,
		out:      &created,
		resource: "policy",
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (b *Backend) UpdatePolicy(ctx context.Context, id string, p *domain.Policy) (*domain.Policy, error) {
	var updated domain.Policy
	err := b.do(ctx, call{
		method:   http.MethodPatch,
		path:     "/admin/policies/" + url.PathEscape(id),
		body:     p,
		out:      &updated,
		resource: "policy",
		id:       id,
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (b *Backend) DeletePolicy(ctx context.Context, id string) error {
	return b.do(ctx, call{
		method:   http.MethodDelete,
		path:     "/admin/policies/" + url.PathEscape(id),
		resource: "policy",
		id:       id,
	})
}

func (b *Backend) ListReviews(ctx context.Context) ([]domain.Review, error) {
	var reviews []domain.Review
	err := b.do(ctx, call{
		method:   http.MethodGet,
		path:     "/reviews",
		out:      &reviews,
		resource: "reviews",
	})
	return reviews, err
}

func (b *Backend) CreateReview(ctx context.Context, r *domain.Review) error {
	return b.do(ctx, call{
		method:   http.MethodPost,
		path:     "/reviews",
		body:     r,
		resource: "review",
	})
}

// Subscribe adds an address to the newsletter. Duplicates surface as ErrConflict.
func (b *Backend) Subscribe(ctx context.Context, s *domain.NewsletterSubscription) error {
	return b.do(ctx, call{
		method:   http.MethodPost,
		path:     "/newsletter",
		body:     s,
		resource: "subscription",
		id:       s.Email,
	})
}

// ListBlogs returns all blogs, or only those by authorEmail when set.
func (b *Backend) ListBlogs(ctx context.Context, authorEmail string) ([]domain.Blog, error) {
	params := url.Values{}
	if authorEmail != "" {
		params.Set("email", authorEmail)
	}
	var blogs []domain.Blog
	err := b.do(ctx, call{
		method:   http.MethodGet,
		path:     "/blogs",
		query:    params,
		out:      &blogs,
		resource: "blogs",
	})
	return blogs, err
}

func (b *Backend) GetBlog(ctx context.Context, id string) (*domain.Blog, error) {
	var blog domain.Blog
	err := b.do(ctx, call{
		method:   http.MethodGet,
		path:     "/blogs/" + url.PathEscape(id),
		out:      &blog,
		resource: "blog",
		id:       id,
	})
	if err != nil {
		return nil, err
	}
	return &blog, nil
}

// RecordBlogVisit bumps the visit counter of a blog.
func (b *Backend) RecordBlogVisit(ctx context.Context, id string) error {
	return b.do(ctx, call{
		method:   http.MethodPatch,
		path:     "/blogs/" + url.PathEscape(id) + "/visit",
		resource: "blog",
		id:       id,
	})
}

func (b *Backend) CreateBlog(ctx context.Context, blog *domain.Blog) (*domain.Blog, error) {
	var created domain.Blog
	err := b.do(ctx, call{
		method:   http.MethodPost,
		path:     "/agent/blogs",
		body:     blog,
		out:      &created,
		resource: "blog",
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (b *Backend) UpdateBlog(ctx context.Context, id string, blog *domain.Blog) (*domain.Blog, error) {
	var updated domain.Blog
	err := b.do(ctx, call{
		method:   http.MethodPatch,
		path:     "/agent/blogs/" + url.PathEscape(id),
		body:     blog,
		out:      &updated,
		resource: "blog",
		id:       id,
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (b *Backend) DeleteBlog(ctx context.Context, id string) error {
	return b.do(ctx, call{
		method:   http.MethodDelete,
		path:     "/agent/blogs/" + url.PathEscape(id),
		resource: "blog",
		id:       id,
	})
}
