package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCustomerService(t *testing.T) (*service.CustomerService, *service.QuoteService, *mockBackend) {
	t.Helper()
	backend := newMockBackend()
	quotes, _ := newQuoteService(time.Minute)
	svc := service.NewCustomerService(service.CustomerStores{
		Applications:  backend,
		Payments:      backend,
		Claims:        backend,
		AgentRequests: backend,
		Users:         backend,
		Catalog:       backend,
	}, quotes, zap.NewNop())
	return svc, quotes, backend
}

var customer = &domain.Identity{Email: "ana@example.com", DisplayName: "Ana", PhotoURL: "https://pic/ana"}

func applicationRequest(quoteID string) *domain.ApplicationRequest {
	return &domain.ApplicationRequest{
		QuoteID:   quoteID,
		PolicyID:  "p1",
		Applicant: domain.Applicant{Name: "Ana", Email: "spoofed@example.com", Address: "1 Main St", NID: "123"},
		Nominee:   domain.Nominee{Name: "Rui", Relationship: "spouse"},
	}
}

func TestApply_RequiresLiveQuote(t *testing.T) {
	svc, _, backend := newCustomerService(t)

	_, err := svc.Apply(context.Background(), customer, applicationRequest("unknown"))

	var ve *domain.ErrValidation
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "quoteId", ve.Field)
	assert.Empty(t, backend.apps)
}

func TestApply_ConsumesQuote(t *testing.T) {
	svc, quotes, _ := newCustomerService(t)
	ctx := context.Background()

	q, err := quotes.Issue(ctx, customer.Email, domain.QuoteInput{Age: 30, Gender: domain.GenderMale, CoverageAmount: 500000, Duration: 20, Smoker: "no", PolicyID: "p1"})
	require.NoError(t, err)

	app, err := svc.Apply(ctx, customer, applicationRequest(q.QuoteID))
	require.NoError(t, err)

	assert.Equal(t, domain.ApplicationPending, app.Status)
	assert.Equal(t, 580.0, app.EstimatedPremium)
	assert.Equal(t, "ana@example.com", app.Applicant.Email)

	_, err = svc.Apply(ctx, customer, applicationRequest(q.QuoteID))
	assert.Error(t, err)
}

func TestApply_QuoteForAnotherPolicy(t *testing.T) {
	svc, quotes, _ := newCustomerService(t)
	ctx := context.Background()

	q, err := quotes.Issue(ctx, customer.Email, domain.QuoteInput{Age: 30, Gender: domain.GenderMale, CoverageAmount: 500000, Duration: 20, Smoker: "no", PolicyID: "p2"})
	require.NoError(t, err)

	_, err = svc.Apply(ctx, customer, applicationRequest(q.QuoteID))
	var ve *domain.ErrValidation
	assert.ErrorAs(t, err, &ve)

	// the quote survives a rejected application
	_, ok := quotes.Lookup(q.QuoteID, customer.Email)
	assert.True(t, ok)
}

func TestApply_QuoteOfAnotherUser(t *testing.T) {
	svc, quotes, backend := newCustomerService(t)
	ctx := context.Background()

	q, err := quotes.Issue(ctx, "eve@example.com", domain.QuoteInput{Age: 30, Gender: domain.GenderMale, CoverageAmount: 500000, Duration: 20, Smoker: "no", PolicyID: "p1"})
	require.NoError(t, err)

	_, err = svc.Apply(ctx, customer, applicationRequest(q.QuoteID))
	var ve *domain.ErrValidation
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "quoteId", ve.Field)
	assert.Empty(t, backend.apps)

	_, ok := quotes.Lookup(q.QuoteID, "eve@example.com")
	assert.True(t, ok)
}

func TestApply_ConcurrentApplicationsShareNoQuote(t *testing.T) {
	svc, quotes, backend := newCustomerService(t)
	ctx := context.Background()

	q, err := quotes.Issue(ctx, customer.Email, domain.QuoteInput{Age: 30, Gender: domain.GenderMale, CoverageAmount: 500000, Duration: 20, Smoker: "no", PolicyID: "p1"})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Apply(ctx, customer, applicationRequest(q.QuoteID)); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Len(t, backend.apps, 1)
}

func TestApply_FailedWriteRestoresQuote(t *testing.T) {
	svc, quotes, backend := newCustomerService(t)
	ctx := context.Background()

	q, err := quotes.Issue(ctx, customer.Email, domain.QuoteInput{Age: 30, Gender: domain.GenderMale, CoverageAmount: 500000, Duration: 20, Smoker: "no", PolicyID: "p1"})
	require.NoError(t, err)

	backend.failWith = errors.New("backend down")
	_, err = svc.Apply(ctx, customer, applicationRequest(q.QuoteID))
	require.Error(t, err)

	backend.failWith = nil
	_, err = svc.Apply(ctx, customer, applicationRequest(q.QuoteID))
	assert.NoError(t, err)
}

func TestCreatePaymentIntent_RequiresApprovedApplication(t *testing.T) {
	svc, _, backend := newCustomerService(t)
	ctx := context.Background()
	backend.apps["app-1"] = domain.Application{ID: "app-1", Applicant: domain.Applicant{Email: customer.Email}, Status: domain.ApplicationPending}
	backend.apps["app-2"] = domain.Application{ID: "app-2", Applicant: domain.Applicant{Email: "other@example.com"}, Status: domain.ApplicationApproved}

	_, err := svc.CreatePaymentIntent(ctx, customer.Email, &domain.PaymentIntentRequest{ApplicationID: "app-1", Amount: 580}, "")
	var ve *domain.ErrValidation
	assert.ErrorAs(t, err, &ve)

	_, err = svc.CreatePaymentIntent(ctx, customer.Email, &domain.PaymentIntentRequest{ApplicationID: "app-2", Amount: 580}, "")
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)

	backend.apps["app-1"] = domain.Application{ID: "app-1", Applicant: domain.Applicant{Email: customer.Email}, Status: domain.ApplicationApproved}
	intent, err := svc.CreatePaymentIntent(ctx, customer.Email, &domain.PaymentIntentRequest{ApplicationID: "app-1", Amount: 580}, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "secret-key-1", intent.ClientSecret)

	_, err = svc.CreatePaymentIntent(ctx, customer.Email, &domain.PaymentIntentRequest{ApplicationID: "app-1", Amount: 580}, "")
	require.NoError(t, err)
	require.Len(t, backend.intentKeys, 2)
	assert.NotEmpty(t, backend.intentKeys[1])
}

func TestRecordPayment_StampsCaller(t *testing.T) {
	svc, _, backend := newCustomerService(t)
	backend.apps["app-1"] = domain.Application{ID: "app-1", PolicyTitle: "Term Life", Applicant: domain.Applicant{Email: customer.Email}, Status: domain.ApplicationApproved}

	p, err := svc.RecordPayment(context.Background(), customer.Email, &domain.Payment{ApplicationID: "app-1", Amount: 580, TransactionID: "pi_123", Email: "spoofed@example.com"})
	require.NoError(t, err)

	assert.Equal(t, customer.Email, p.Email)
	assert.Equal(t, "Term Life", p.PolicyTitle)
	assert.Equal(t, "Paid", p.Status)
}

func TestFileClaim_OnApprovedPolicy(t *testing.T) {
	svc, _, backend := newCustomerService(t)
	backend.apps["app-1"] = domain.Application{ID: "app-1", Applicant: domain.Applicant{Email: customer.Email}, Status: domain.ApplicationApproved}

	_, err := svc.FileClaim(context.Background(), customer.Email, &domain.Claim{ApplicationID: "app-1"})
	var ve *domain.ErrValidation
	assert.ErrorAs(t, err, &ve)

	c, err := svc.FileClaim(context.Background(), customer.Email, &domain.Claim{ApplicationID: "app-1", Reason: "hospital stay"})
	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationPending, c.Status)
}

func TestSubmitReview_RatingRange(t *testing.T) {
	svc, _, backend := newCustomerService(t)

	for _, rating := range []int{0, 6} {
		err := svc.SubmitReview(context.Background(), customer, &domain.Review{Rating: rating, Feedback: "ok"})
		var ve *domain.ErrValidation
		assert.ErrorAs(t, err, &ve, "rating %d", rating)
	}

	require.NoError(t, svc.SubmitReview(context.Background(), customer, &domain.Review{Rating: 5, Feedback: "great"}))
	require.Len(t, backend.reviews, 1)
	assert.Equal(t, "Ana", backend.reviews[0].UserName)
	assert.Equal(t, "https://pic/ana", backend.reviews[0].UserPhoto)
}

func TestApplyAsAgent(t *testing.T) {
	svc, _, backend := newCustomerService(t)

	err := svc.ApplyAsAgent(context.Background(), customer, &domain.AgentRequest{Experience: "5 years"})
	var ve *domain.ErrValidation
	assert.ErrorAs(t, err, &ve)

	require.NoError(t, svc.ApplyAsAgent(context.Background(), customer, &domain.AgentRequest{Experience: "5 years", Motivation: "help"}))
	require.Len(t, backend.agentRequests, 1)
	for _, r := range backend.agentRequests {
		assert.Equal(t, customer.Email, r.Email)
		assert.Equal(t, "Ana", r.Name)
		assert.Equal(t, domain.ApplicationPending, r.Status)
	}
}

func TestUpdateProfile_RejectsEmptyUpdate(t *testing.T) {
	svc, _, backend := newCustomerService(t)
	backend.users[customer.Email] = domain.User{Email: customer.Email, Name: "Ana"}

	_, err := svc.UpdateProfile(context.Background(), customer.Email, &domain.ProfileUpdate{})
	var ve *domain.ErrValidation
	assert.ErrorAs(t, err, &ve)

	u, err := svc.UpdateProfile(context.Background(), customer.Email, &domain.ProfileUpdate{Phone: "555"})
	require.NoError(t, err)
	assert.Equal(t, "555", u.Phone)
}
