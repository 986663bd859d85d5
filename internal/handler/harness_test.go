package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/handler"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/cache"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/observability"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/session"
	"github.com/boddenberg/lifecover-bfa-go/internal/port"
	"github.com/boddenberg/lifecover-bfa-go/internal/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mocks ---

// fakeBackend implements the store ports the routes under test reach.
// Calls to any other port method panic on the nil embedded interface.
type fakeBackend struct {
	port.UserStore
	port.CatalogStore
	port.BlogStore
	port.ApplicationStore
	port.PaymentStore
	port.ClaimStore
	port.AgentRequestStore

	mu        sync.Mutex
	roles     map[string]string
	roleErr   error
	users     map[string]domain.User
	apps      []domain.Application
	intentKey string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{roles: map[string]string{}, users: map[string]domain.User{}}
}

func (f *fakeBackend) GetRole(_ context.Context, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roleErr != nil {
		return "", f.roleErr
	}
	r, ok := f.roles[email]
	if !ok {
		return "", &domain.ErrNotFound{Resource: "role", ID: email}
	}
	return r, nil
}

func (f *fakeBackend) UpsertUser(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.Email] = *u
	return nil
}

func (f *fakeBackend) GetUser(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: email}
	}
	return &u, nil
}

func (f *fakeBackend) ListUsers(context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeBackend) ListPolicies(_ context.Context, q domain.PolicyQuery) (*domain.PolicyPage, error) {
	return &domain.PolicyPage{
		Policies: []domain.Policy{{ID: "p1", Title: "Term Life " + q.Search}},
		Total:    1,
		Page:     q.Page,
		PageSize: q.PageSize,
	}, nil
}

func (f *fakeBackend) GetPolicy(_ context.Context, id string) (*domain.Policy, error) {
	if id != "p1" {
		return nil, &domain.ErrNotFound{Resource: "policy", ID: id}
	}
	return &domain.Policy{ID: "p1", Title: "Term Life"}, nil
}

func (f *fakeBackend) ApplicationsByApplicant(_ context.Context, email string) ([]domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Application
	for _, a := range f.apps {
		if a.Applicant.Email == email {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeBackend) ApplicationsByAgent(_ context.Context, agentEmail string) ([]domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Application
	for _, a := range f.apps {
		if a.AgentEmail == agentEmail {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeBackend) CreateApplication(_ context.Context, a *domain.Application) (*domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = "app-new"
	f.apps = append(f.apps, *a)
	return a, nil
}

func (f *fakeBackend) CreatePaymentIntent(_ context.Context, _ *domain.PaymentIntentRequest, key string) (*domain.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intentKey = key
	return &domain.PaymentIntent{ClientSecret: "pi_secret"}, nil
}

// fakeProvider accepts the password "Secret1" for any email.
type fakeProvider struct{}

func (fakeProvider) tokens(email string) *domain.ProviderTokens {
	return &domain.ProviderTokens{Email: email, IDToken: "idtoken:" + email, RefreshToken: "refresh:" + email, ExpiresIn: time.Hour}
}

func (p fakeProvider) SignIn(_ context.Context, email, password string) (*domain.ProviderTokens, error) {
	if password != "Secret1" {
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}
	return p.tokens(email), nil
}

func (p fakeProvider) SignUp(_ context.Context, email, _, _, _ string) (*domain.ProviderTokens, error) {
	return p.tokens(email), nil
}

func (p fakeProvider) Refresh(_ context.Context, refreshToken string) (*domain.ProviderTokens, error) {
	return p.tokens(strings.TrimPrefix(refreshToken, "refresh:")), nil
}

func (fakeProvider) SignInWithGoogle(context.Context, string, string) (*domain.ProviderTokens, error) {
	return nil, errors.New("not configured")
}

// fakeVerifier accepts "idtoken:<email>" and can be switched to not ready.
type fakeVerifier struct {
	ready atomic.Bool
}

func (v *fakeVerifier) Ready() bool { return v.ready.Load() }

func (v *fakeVerifier) Verifier(context.Context) (port.TokenVerifier, error) {
	if !v.Ready() {
		return nil, errors.New("not ready")
	}
	return v, nil
}

func (v *fakeVerifier) Verify(_ context.Context, raw string) (*domain.Identity, time.Time, error) {
	email, ok := strings.CutPrefix(raw, "idtoken:")
	if !ok {
		return nil, time.Time{}, &domain.ErrUnauthorized{Message: "invalid identity token"}
	}
	return &domain.Identity{UID: "uid-" + email, Email: email}, time.Now().Add(time.Hour), nil
}

type fakeUploader struct {
	gotName string
	gotSize int
}

func (u *fakeUploader) Upload(_ context.Context, filename string, data []byte) (*domain.UploadedImage, error) {
	u.gotName = filename
	u.gotSize = len(data)
	return &domain.UploadedImage{URL: "https://img.example/" + filename}, nil
}

// outageStore is a memory store whose reads can be switched to fail.
type outageStore struct {
	*session.MemoryStore
	down atomic.Bool
}

func (s *outageStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	if s.down.Load() {
		return nil, errors.New("dial tcp 10.0.0.7:6379: connection refused")
	}
	return s.MemoryStore.Get(ctx, id)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

// --- Harness ---

type harness struct {
	router   http.Handler
	backend  *fakeBackend
	verifier *fakeVerifier
	uploader *fakeUploader
	store    *outageStore
	metrics  *observability.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	backend := newFakeBackend()
	verifier := &fakeVerifier{}
	verifier.ready.Store(true)
	uploader := &fakeUploader{}

	store := &outageStore{MemoryStore: session.NewMemoryStore(time.Minute)}
	t.Cleanup(store.Close)

	roles := service.NewRoleResolver(backend, cache.New[domain.Role](time.Minute), metrics, logger)
	holder := service.NewSessionHolder(service.SessionHolderDeps{
		Provider:   fakeProvider{},
		Verifiers:  verifier,
		Readiness:  verifier,
		Store:      store,
		Users:      backend,
		Roles:      roles,
		SessionTTL: time.Hour,
		Metrics:    metrics,
		Logger:     logger,
	})
	quotes := service.NewQuoteService(cache.New[domain.QuoteResult](time.Minute), time.Minute, metrics, logger)

	router := handler.NewRouter(handler.Deps{
		Sessions: holder,
		Cookies:  session.NewCookies("test-secret", false),
		Guard:    service.NewGuard(holder, roles, metrics),
		Quotes:   quotes,
		Catalog:  service.NewCatalogService(backend, backend, logger),
		Customers: service.NewCustomerService(service.CustomerStores{
			Applications:  backend,
			Payments:      backend,
			Claims:        backend,
			AgentRequests: backend,
			Users:         backend,
			Catalog:       backend,
		}, quotes, logger),
		Agents: service.NewAgentService(backend, backend, backend, logger),
		Admin: service.NewAdminService(service.AdminStores{
			Users:         backend,
			Catalog:       backend,
			Applications:  backend,
			Payments:      backend,
			AgentRequests: backend,
		}, roles, metrics, logger),
		Dashboard: service.NewDashboardService(service.DashboardStores{
			Users:         backend,
			Applications:  backend,
			Payments:      backend,
			Claims:        backend,
			Blogs:         backend,
			AgentRequests: backend,
		}, roles, metrics, logger),
		Images:           uploader,
		Checks:           map[string]handler.Pinger{"backend": fakePinger{}},
		PaymentPublicKey: "pk_test_123",
		Metrics:          metrics,
		Logger:           logger,
	})

	return &harness{router: router, backend: backend, verifier: verifier, uploader: uploader, store: store, metrics: metrics}
}

// do runs a request, attaching cookie when non-nil.
func (h *harness) do(method, target, body string, cookie *http.Cookie, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

// signIn logs email in with the given backend role and returns the session cookie.
func (h *harness) signIn(t *testing.T, email, role string) *http.Cookie {
	t.Helper()
	h.backend.mu.Lock()
	h.backend.roles[email] = role
	h.backend.mu.Unlock()

	rec := h.do(http.MethodPost, "/v1/auth/login", `{"email":"`+email+`","password":"Secret1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, c := range rec.Result().Cookies() {
		if c.Name == session.InsecureCookieName {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}
