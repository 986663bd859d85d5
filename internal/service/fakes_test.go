package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/port"
)

// --- Mocks ---

// mockRoleFetcher answers from a fixed email → role map.
type mockRoleFetcher struct {
	roles map[string]string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (m *mockRoleFetcher) GetRole(ctx context.Context, email string) (string, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.err != nil {
		return "", m.err
	}
	role, ok := m.roles[email]
	if !ok {
		return "", &domain.ErrNotFound{Resource: "role", ID: email}
	}
	return role, nil
}

// mockBackend is an in-memory stand-in for every backend store port.
type mockBackend struct {
	mu            sync.Mutex
	users         map[string]domain.User
	policies      map[string]domain.Policy
	blogs         map[string]domain.Blog
	apps          map[string]domain.Application
	payments      []domain.Payment
	claims        map[string]domain.Claim
	agentRequests map[string]domain.AgentRequest
	reviews       []domain.Review
	subscriptions []domain.NewsletterSubscription
	intentKeys    []string
	seq           int
	failWith      error
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		users:         map[string]domain.User{},
		policies:      map[string]domain.Policy{},
		blogs:         map[string]domain.Blog{},
		apps:          map[string]domain.Application{},
		claims:        map[string]domain.Claim{},
		agentRequests: map[string]domain.AgentRequest{},
	}
}

func (m *mockBackend) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

var (
	_ port.UserStore         = (*mockBackend)(nil)
	_ port.CatalogStore      = (*mockBackend)(nil)
	_ port.BlogStore         = (*mockBackend)(nil)
	_ port.ApplicationStore  = (*mockBackend)(nil)
	_ port.PaymentStore      = (*mockBackend)(nil)
	_ port.ClaimStore        = (*mockBackend)(nil)
	_ port.AgentRequestStore = (*mockBackend)(nil)
)

func (m *mockBackend) GetUser(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: email}
	}
	return &u, nil
}

func (m *mockBackend) UpsertUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if existing, ok := m.users[u.Email]; ok && existing.Role != "" {
		u.Role = existing.Role
	}
	m.users[u.Email] = *u
	return nil
}

func (m *mockBackend) UpdateUser(_ context.Context, email string, upd *domain.ProfileUpdate) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: email}
	}
	if upd.Name != "" {
		u.Name = upd.Name
	}
	if upd.Phone != "" {
		u.Phone = upd.Phone
	}
	m.users[email] = u
	return &u, nil
}

func (m *mockBackend) ListUsers(context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockBackend) SetUserRole(_ context.Context, email string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[email]
	u.Email = email
	u.Role = role.String()
	m.users[email] = u
	return nil
}

// GetRole lets mockBackend double as the role fetcher, reading users' roles.
func (m *mockBackend) GetRole(_ context.Context, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return "", &domain.ErrNotFound{Resource: "role", ID: email}
	}
	return u.Role, nil
}

func (m *mockBackend) ListPolicies(_ context.Context, q domain.PolicyQuery) (*domain.PolicyPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Policy
	for _, p := range m.policies {
		if q.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(q.Search)) {
			continue
		}
		out = append(out, p)
	}
	return &domain.PolicyPage{Policies: out, Total: len(out), Page: q.Page, PageSize: q.PageSize}, nil
}

func (m *mockBackend) PopularPolicies(context.Context) ([]domain.Policy, error) {
	return nil, nil
}

func (m *mockBackend) GetPolicy(_ context.Context, id string) (*domain.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "policy", ID: id}
	}
	return &p, nil
}

func (m *mockBackend) CreatePolicy(_ context.Context, p *domain.Policy) (*domain.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextID("policy")
	m.policies[p.ID] = *p
	return p, nil
}

func (m *mockBackend) UpdatePolicy(_ context.Context, id string, p *domain.Policy) (*domain.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = id
	m.policies[id] = *p
	return p, nil
}

func (m *mockBackend) DeletePolicy(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.policies, id)
	return nil
}

func (m *mockBackend) ListReviews(context.Context) ([]domain.Review, error) {
	return m.reviews, nil
}

func (m *mockBackend) CreateReview(_ context.Context, r *domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews = append(m.reviews, *r)
	return nil
}

func (m *mockBackend) Subscribe(_ context.Context, s *domain.NewsletterSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.subscriptions {
		if existing.Email == s.Email {
			return &domain.ErrConflict{Message: "already subscribed"}
		}
	}
	m.subscriptions = append(m.subscriptions, *s)
	return nil
}

func (m *mockBackend) ListBlogs(_ context.Context, authorEmail string) ([]domain.Blog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Blog
	for _, b := range m.blogs {
		if authorEmail == "" || b.AuthorEmail == authorEmail {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBackend) GetBlog(_ context.Context, id string) (*domain.Blog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blogs[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "blog", ID: id}
	}
	return &b, nil
}

func (m *mockBackend) RecordBlogVisit(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blogs[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "blog", ID: id}
	}
	b.Visits++
	m.blogs[id] = b
	return nil
}

func (m *mockBackend) CreateBlog(_ context.Context, b *domain.Blog) (*domain.Blog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.nextID("blog")
	m.blogs[b.ID] = *b
	return b, nil
}

func (m *mockBackend) UpdateBlog(_ context.Context, id string, b *domain.Blog) (*domain.Blog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blogs[id] = *b
	return b, nil
}

func (m *mockBackend) DeleteBlog(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blogs, id)
	return nil
}

func (m *mockBackend) CreateApplication(_ context.Context, a *domain.Application) (*domain.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	a.ID = m.nextID("app")
	m.apps[a.ID] = *a
	return a, nil
}

func (m *mockBackend) ListApplications(context.Context) ([]domain.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]domain.Application, 0, len(m.apps))
	for _, a := range m.apps {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockBackend) ApplicationsByApplicant(_ context.Context, email string) ([]domain.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Application
	for _, a := range m.apps {
		if a.Applicant.Email == email {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockBackend) ApplicationsByAgent(_ context.Context, agentEmail string) ([]domain.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Application
	for _, a := range m.apps {
		if a.AgentEmail == agentEmail {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockBackend) AssignAgent(_ context.Context, id, agentEmail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "application", ID: id}
	}
	a.AgentEmail = agentEmail
	m.apps[id] = a
	return nil
}

func (m *mockBackend) UpdateApplicationStatus(_ context.Context, id string, upd *domain.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "application", ID: id}
	}
	a.Status = upd.Status
	a.RejectionReason = upd.Feedback
	m.apps[id] = a
	return nil
}

func (m *mockBackend) CreatePaymentIntent(_ context.Context, _ *domain.PaymentIntentRequest, key string) (*domain.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intentKeys = append(m.intentKeys, key)
	return &domain.PaymentIntent{ClientSecret: "secret-" + key}, nil
}

func (m *mockBackend) RecordPayment(_ context.Context, p *domain.Payment) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextID("payment")
	m.payments = append(m.payments, *p)
	return p, nil
}

func (m *mockBackend) PaymentsByEmail(_ context.Context, email string) ([]domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Payment
	for _, p := range m.payments {
		if p.Email == email {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockBackend) ListTransactions(context.Context) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Transaction, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, domain.Transaction{TransactionID: p.TransactionID, Email: p.Email, Amount: p.Amount, Status: p.Status})
	}
	return out, nil
}

func (m *mockBackend) CreateClaim(_ context.Context, c *domain.Claim) (*domain.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID("claim")
	m.claims[c.ID] = *c
	return c, nil
}

func (m *mockBackend) ClaimsByAgent(context.Context, string) ([]domain.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Claim, 0, len(m.claims))
	for _, c := range m.claims {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockBackend) UpdateClaimStatus(_ context.Context, id string, upd *domain.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "claim", ID: id}
	}
	c.Status = upd.Status
	m.claims[id] = c
	return nil
}

func (m *mockBackend) CreateAgentRequest(_ context.Context, r *domain.AgentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.nextID("agentreq")
	m.agentRequests[r.ID] = *r
	return nil
}

func (m *mockBackend) ListAgentRequests(context.Context) ([]domain.AgentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AgentRequest, 0, len(m.agentRequests))
	for _, r := range m.agentRequests {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockBackend) UpdateAgentRequest(_ context.Context, id string, upd *domain.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.agentRequests[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "agent request", ID: id}
	}
	r.Status = upd.Status
	m.agentRequests[id] = r
	return nil
}

// mockIdentityProvider hands out tokens whose value encodes the email, which
// mockVerifier decodes back.
type mockIdentityProvider struct {
	signInErr  error
	refreshErr error
	refreshes  atomic.Int32
}

func (m *mockIdentityProvider) tokens(email, name string) *domain.ProviderTokens {
	return &domain.ProviderTokens{
		UID:          "uid-" + email,
		Email:        email,
		DisplayName:  name,
		IDToken:      "idtoken:" + email,
		RefreshToken: "refresh:" + email,
		ExpiresIn:    time.Hour,
	}
}

func (m *mockIdentityProvider) SignIn(_ context.Context, email, password string) (*domain.ProviderTokens, error) {
	if m.signInErr != nil {
		return nil, m.signInErr
	}
	if password != "Secret1" {
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}
	return m.tokens(email, ""), nil
}

func (m *mockIdentityProvider) SignUp(_ context.Context, email, _, displayName, _ string) (*domain.ProviderTokens, error) {
	return m.tokens(email, displayName), nil
}

func (m *mockIdentityProvider) Refresh(_ context.Context, refreshToken string) (*domain.ProviderTokens, error) {
	m.refreshes.Add(1)
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	email := strings.TrimPrefix(refreshToken, "refresh:")
	t := m.tokens(email, "")
	t.IDToken = "idtoken:" + email + ":renewed"
	return t, nil
}

func (m *mockIdentityProvider) SignInWithGoogle(_ context.Context, googleIDToken, _ string) (*domain.ProviderTokens, error) {
	return m.tokens(strings.TrimPrefix(googleIDToken, "google:"), ""), nil
}

// mockVerifier accepts "idtoken:<email>[:renewed]" tokens.
type mockVerifier struct {
	ready  atomic.Bool
	expiry time.Duration
}

func newMockVerifier() *mockVerifier {
	v := &mockVerifier{expiry: time.Hour}
	v.ready.Store(true)
	return v
}

func (v *mockVerifier) Ready() bool { return v.ready.Load() }

func (v *mockVerifier) Verifier(context.Context) (port.TokenVerifier, error) {
	if !v.Ready() {
		return nil, errors.New("not ready")
	}
	return v, nil
}

func (v *mockVerifier) Verify(_ context.Context, raw string) (*domain.Identity, time.Time, error) {
	rest, ok := strings.CutPrefix(raw, "idtoken:")
	if !ok {
		return nil, time.Time{}, &domain.ErrUnauthorized{Message: "invalid identity token"}
	}
	email, _, _ := strings.Cut(rest, ":")
	return &domain.Identity{UID: "uid-" + email, Email: email, Credential: raw}, time.Now().Add(v.expiry), nil
}
