package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
)

// ============================================================
// Applications
// ============================================================

func (b *Backend) CreateApplication(ctx context.Context, a *domain.Application) (*domain.Application, error) {
	var created domain.Application
	err := b.do(ctx, call{
		method:   http.MethodPost,
		path:     "/applications",
		body:     a,
		out:      &created,
		resource: "application",
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (b *Backend) ListApplications(ctx context.Context) ([]domain.Application, error) {
	var apps []domain.Application
	err := b.do(ctx, call{
		method:   http.MethodGet,
		path:     "/admin/applications",
		out:      &apps,
		resource: "applications",
	})
	return apps, err
}

// ApplicationsByApplicant returns the applications filed by email.
func (b *Backend) ApplicationsByApplicant(ctx context.Context, email string) ([]domain.Application, error) {
	var apps []domain.Application
	err := b.do(ctx, call{
		method:   http.MethodGet,
		path:     "/applications",
		query:    url.Values{"email": {email}},
		out:      &apps,
		resource: "applications",
	})
	return apps, err
}

// ApplicationsByAgent returns the applications assigned to agentEmail.
func (b *Backend) ApplicationsByAgent(ctx context.Context, agentEmail string) ([]domain.Application, error) {
	var apps []domain.Application
	err := b.do(ctx, call{
		method:   http.MethodGet,
		path:     "/agent/applications",
		query:    url.Values{"email": {agentEmail}},
		out:      &apps,
		resource: "applications",
	})
	return apps, err
}

func (b *Backend) AssignAgent(ctx context.Context, id, agentEmail string) error {
	return b.do(ctx, call{
		method:   http.MethodPatch,
		path:     "/admin/applications/" + url.PathEscape(id) + "/assign",
		body:     domain.AgentAssignment{AgentEmail: agentEmail},
		resource: "application",
		id:       id,
	})
}

func (b *Backend) UpdateApplicationStatus(ctx context.Context, id string, upd *domain.StatusUpdate) error {
	return b.do(ctx, call{
		method:   http.MethodPatch,
		path:     "/applications/" + url.PathEscape(id) + "/status",
		body:     upd,
		resource: "application",
		id:       id,
	})
}

// ============================================================
// Payments
// ============================================================

// CreatePaymentIntent asks the backend to open a payment-processor intent.
// idempotencyKey is forwarded so a retried request cannot double-charge.
func (b *Backend) CreatePaymentIntent(ctx context.Context, req *domain.PaymentIntentRequest, idempotencyKey string) (*domain.PaymentIntent, error) {
	var intent domain.PaymentIntent
	err := b.do(ctx, call{
		method:   http.MethodPost,
		path:     "/create-payment-intent",
		body:     req,
		out:      &intent,
		resource: "payment intent",
		id:       req.ApplicationID,
		headers:  map[string]string{"Idempotency-Key": idempotencyKey},
	})
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (b *Backend) RecordPayment(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	var saved domain.Payment
	err := b.do(ctx, call{
		method:   http.MethodPost,
		path:     "/payments",
		body:     p,
		out:      &saved,
		resource: "payment",
		id:       p.TransactionID,
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (b *Backend) PaymentsByEmail(ctx context.Context, email string) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := b.do(ctx, call{
		method:   http.MethodGet,
		path:     "/payments",
		query:    url.Values{"email": {email}},
		out:      &payments,
		resource: "payments",
	})
	return payments, err
}

func (b *Backend) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := b.do(ctx, call{
		method:   http.MethodGet,
		path:     "/admin/transactions",
		out:      &txs,
		resource: "transactions",
	})
	return txs, err
}

// ============================================================
// Claims
// ============================================================

func (b *Backend) CreateClaim(ctx context.Context, c *domain.Claim) (*domain.Claim, error) {
	var created domain.Claim
	err := b.do(ctx, call{
		method:   http.MethodPost,
		path:     "/claims",
		body:     c,
		out:      &created,
		resource: "claim",
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (b *Backend) ClaimsByAgent(ctx context.Context, agentEmail string) ([]domain.Claim, error) {
	var claims []domain.Claim
	err := b.do(ctx, call{
		method:   http.MethodGet,
		path:     "/agent/claims",
		query:    url.Values{"email": {agentEmail}},
		out:      &claims,
		resource: "claims",
	})
	return claims, err
}

func (b *Backend) UpdateClaimStatus(ctx context.Context, id string, upd *domain.StatusUpdate) error {
	return b.do(ctx, call{
		method:   http.MethodPatch,
		path:     "/agent/claims/" + url.PathEscape(id),
		body:     upd,
		resource: "claim",
		id:       id,
	})
}

// ============================================================
// Agent requests
// ============================================================

func (b *Backend) CreateAgentRequest(ctx context.Context, r *domain.AgentRequest) error {
	return b.do(ctx, call{
		method:   http.MethodPost,
		path:     "/agent-requests",
		body:     r,
		resource: "agent request",
		id:       r.Email,
	})
}

func (b *Backend) ListAgentRequests(ctx context.Context) ([]domain.AgentRequest, error) {
	var reqs []domain.AgentRequest
	err := b.do(ctx, call{
		method:   http.MethodGet,
		path:     "/admin/agent-requests",
		out:      &reqs,
		resource: "agent requests",
	})
	return reqs, err
}

func (b *Backend) UpdateAgentRequest(ctx context.Context, id string, upd *domain.StatusUpdate) error {
	return b.do(ctx, call{
		method:   http.MethodPatch,
		path:     "/admin/agent-requests/" + url.PathEscape(id),
		body:     upd,
		resource: "agent request",
		id:       id,
	})
}
