package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var customerTracer = otel.Tracer("service/customer")

// CustomerStores groups the backend ports a customer touches.
type CustomerStores struct {
	Applications  port.ApplicationStore
	Payments      port.PaymentStore
	Claims        port.ClaimStore
	AgentRequests port.AgentRequestStore
	Users         port.UserStore
	Catalog       port.CatalogStore
}

// CustomerService runs the customer flows: apply with a quote, pay, claim,
// review and ask to become an agent.
type CustomerService struct {
	stores CustomerStores
	quotes *QuoteService
	logger *zap.Logger
}

func NewCustomerService(stores CustomerStores, quotes *QuoteService, logger *zap.Logger) *CustomerService {
	return &CustomerService{stores: stores, quotes: quotes, logger: logger}
}

// Apply files an application. It requires a live quote issued to the caller,
// whose input and premium become part of the application. The quote is taken
// before the backend write, so concurrent applications cannot share it, and is
// restored if the write fails.
func (s *CustomerService) Apply(ctx context.Context, ident *domain.Identity, req *domain.ApplicationRequest) (*domain.Application, error) {
	ctx, span := customerTracer.Start(ctx, "CustomerService.Apply")
	defer span.End()

	quote, ok := s.quotes.Lookup(req.QuoteID, ident.Email)
	if !ok {
		return nil, &domain.ErrValidation{Field: "quoteId", Message: "calculate a quote before applying"}
	}
	policyID := strings.TrimSpace(req.PolicyID)
	if policyID == "" {
		policyID = quote.Input.PolicyID
	}
	if policyID == "" {
		return nil, &domain.ErrValidation{Field: "policyId", Message: "policy is required"}
	}
	if quote.Input.PolicyID != "" && quote.Input.PolicyID != policyID {
		return nil, &domain.ErrValidation{Field: "quoteId", Message: "quote was calculated for another policy"}
	}
	if strings.TrimSpace(req.Applicant.Name) == "" || strings.TrimSpace(req.Applicant.Address) == "" || strings.TrimSpace(req.Applicant.NID) == "" {
		return nil, &domain.ErrValidation{Field: "applicant", Message: "name, address and NID are required"}
	}
	if strings.TrimSpace(req.Nominee.Name) == "" || strings.TrimSpace(req.Nominee.Relationship) == "" {
		return nil, &domain.ErrValidation{Field: "nominee", Message: "nominee name and relationship are required"}
	}
	span.SetAttributes(attribute.String("policy.id", policyID), attribute.String("quote.id", quote.QuoteID))

	if _, ok := s.quotes.Take(quote.QuoteID, ident.Email); !ok {
		return nil, &domain.ErrConflict{Message: "quote was already used"}
	}

	applicant := req.Applicant
	applicant.Email = ident.Email

	app, err := s.stores.Applications.CreateApplication(ctx, &domain.Application{
		PolicyID:         policyID,
		Applicant:        applicant,
		Nominee:          req.Nominee,
		HealthHistory:    req.HealthHistory,
		Quote:            quote.Input,
		EstimatedPremium: quote.EstimatedPremium,
		Status:           domain.ApplicationPending,
	})
	if err != nil {
		s.quotes.Restore(quote)
		return nil, fmt.Errorf("create application: %w", err)
	}

	s.logger.Info("application filed",
		zap.String("application_id", app.ID),
		zap.String("policy_id", policyID),
		zap.String("email", ident.Email),
	)
	return app, nil
}

// MyPolicies lists the applications of email, approved or not.
func (s *CustomerService) MyPolicies(ctx context.Context, email string) ([]domain.Application, error) {
	ctx, span := customerTracer.Start(ctx, "CustomerService.MyPolicies")
	defer span.End()

	apps, err := s.stores.Applications.ApplicationsByApplicant(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

func (s *CustomerService) MyPayments(ctx context.Context, email string) ([]domain.Payment, error) {
	ctx, span := customerTracer.Start(ctx, "CustomerService.MyPayments")
	defer span.End()

	payments, err := s.stores.Payments.PaymentsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// approvedApplication returns the caller's application id, which must be approved.
func (s *CustomerService) approvedApplication(ctx context.Context, email, id string) (*domain.Application, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &domain.ErrValidation{Field: "applicationId", Message: "application is required"}
	}
	apps, err := s.stores.Applications.ApplicationsByApplicant(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	for i := range apps {
		if apps[i].ID != id {
			continue
		}
		if apps[i].Status != domain.ApplicationApproved {
			return nil, &domain.ErrValidation{Field: "applicationId", Message: "application is not approved"}
		}
		return &apps[i], nil
	}
	return nil, &domain.ErrNotFound{Resource: "application", ID: id}
}

// CreatePaymentIntent opens a payment for an approved application. An empty
// idempotencyKey is replaced by a fresh one.
func (s *CustomerService) CreatePaymentIntent(ctx context.Context, email string, req *domain.PaymentIntentRequest, idempotencyKey string) (*domain.PaymentIntent, error) {
	ctx, span := customerTracer.Start(ctx, "CustomerService.CreatePaymentIntent")
	defer span.End()

	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}
	if _, err := s.approvedApplication(ctx, email, req.ApplicationID); err != nil {
		return nil, err
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	span.SetAttributes(attribute.String("payment.idempotency_key", idempotencyKey))

	return s.stores.Payments.CreatePaymentIntent(ctx, req, idempotencyKey)
}

// RecordPayment stores a confirmed payment for the caller.
func (s *CustomerService) RecordPayment(ctx context.Context, email string, p *domain.Payment) (*domain.Payment, error) {
	ctx, span := customerTracer.Start(ctx, "CustomerService.RecordPayment")
	defer span.End()

	if strings.TrimSpace(p.TransactionID) == "" {
		return nil, &domain.ErrValidation{Field: "transactionId", Message: "transaction id is required"}
	}
	if p.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}
	app, err := s.approvedApplication(ctx, email, p.ApplicationID)
	if err != nil {
		return nil, err
	}

	p.Email = email
	if p.PolicyTitle == "" {
		p.PolicyTitle = app.PolicyTitle
	}
	if p.Status == "" {
		p.Status = "Paid"
	}
	saved, err := s.stores.Payments.RecordPayment(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	s.logger.Info("payment recorded",
		zap.String("transaction_id", p.TransactionID),
		zap.String("application_id", p.ApplicationID),
	)
	return saved, nil
}

// FileClaim submits a claim against one of the caller's approved policies.
func (s *CustomerService) FileClaim(ctx context.Context, email string, c *domain.Claim) (*domain.Claim, error) {
	ctx, span := customerTracer.Start(ctx, "CustomerService.FileClaim")
	defer span.End()

	if strings.TrimSpace(c.Reason) == "" {
		return nil, &domain.ErrValidation{Field: "reason", Message: "reason is required"}
	}
	app, err := s.approvedApplication(ctx, email, c.ApplicationID)
	if err != nil {
		return nil, err
	}

	c.Email = email
	c.Status = domain.ApplicationPending
	if c.PolicyTitle == "" {
		c.PolicyTitle = app.PolicyTitle
	}
	return s.stores.Claims.CreateClaim(ctx, c)
}

// SubmitReview publishes a testimonial signed with the caller's profile.
func (s *CustomerService) SubmitReview(ctx context.Context, ident *domain.Identity, r *domain.Review) error {
	ctx, span := customerTracer.Start(ctx, "CustomerService.SubmitReview")
	defer span.End()

	if r.Rating < 1 || r.Rating > 5 {
		return &domain.ErrValidation{Field: "rating", Message: "rating must be between 1 and 5"}
	}
	if strings.TrimSpace(r.Feedback) == "" {
		return &domain.ErrValidation{Field: "feedback", Message: "feedback is required"}
	}
	r.UserName = ident.DisplayName
	if r.UserName == "" {
		r.UserName = ident.Email
	}
	r.UserPhoto = ident.PhotoURL
	return s.stores.Catalog.CreateReview(ctx, r)
}

// ApplyAsAgent files the caller's request to become an agent.
func (s *CustomerService) ApplyAsAgent(ctx context.Context, ident *domain.Identity, r *domain.AgentRequest) error {
	ctx, span := customerTracer.Start(ctx, "CustomerService.ApplyAsAgent")
	defer span.End()

	if strings.TrimSpace(r.Experience) == "" || strings.TrimSpace(r.Motivation) == "" {
		return &domain.ErrValidation{Field: "request", Message: "experience and motivation are required"}
	}
	r.Email = ident.Email
	if strings.TrimSpace(r.Name) == "" {
		r.Name = ident.DisplayName
	}
	r.Status = domain.ApplicationPending
	return s.stores.AgentRequests.CreateAgentRequest(ctx, r)
}

func (s *CustomerService) Profile(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := customerTracer.Start(ctx, "CustomerService.Profile")
	defer span.End()

	return s.stores.Users.GetUser(ctx, email)
}

func (s *CustomerService) UpdateProfile(ctx context.Context, email string, upd *domain.ProfileUpdate) (*domain.User, error) {
	ctx, span := customerTracer.Start(ctx, "CustomerService.UpdateProfile")
	defer span.End()

	if *upd == (domain.ProfileUpdate{}) {
		return nil, &domain.ErrValidation{Field: "profile", Message: "nothing to update"}
	}
	return s.stores.Users.UpdateUser(ctx, email, upd)
}
