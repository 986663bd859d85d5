package service_test

import (
	"context"
	"testing"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestListPolicies_NormalisesPaging(t *testing.T) {
	backend := newMockBackend()
	svc := service.NewCatalogService(backend, backend, zap.NewNop())

	page, err := svc.ListPolicies(context.Background(), domain.PolicyQuery{Page: -1, PageSize: 500})
	require.NoError(t, err)

	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.PageSize)
	assert.NotNil(t, page.Policies)
}

func TestReadBlog_CountsVisit(t *testing.T) {
	backend := newMockBackend()
	backend.blogs["b1"] = domain.Blog{ID: "b1", Title: "t", Visits: 3}
	svc := service.NewCatalogService(backend, backend, zap.NewNop())

	b, err := svc.ReadBlog(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 4, b.Visits)
	assert.Equal(t, 4, backend.blogs["b1"].Visits)

	_, err = svc.ReadBlog(context.Background(), "missing")
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestSubscribe_Validation(t *testing.T) {
	backend := newMockBackend()
	svc := service.NewCatalogService(backend, backend, zap.NewNop())
	var ve *domain.ErrValidation

	assert.ErrorAs(t, svc.Subscribe(context.Background(), &domain.NewsletterSubscription{Name: "", Email: "a@example.com"}), &ve)
	assert.ErrorAs(t, svc.Subscribe(context.Background(), &domain.NewsletterSubscription{Name: "Ana", Email: "nope"}), &ve)

	require.NoError(t, svc.Subscribe(context.Background(), &domain.NewsletterSubscription{Name: "Ana", Email: " a@example.com "}))
	var ce *domain.ErrConflict
	assert.ErrorAs(t, svc.Subscribe(context.Background(), &domain.NewsletterSubscription{Name: "Ana", Email: "a@example.com"}), &ce)
}
