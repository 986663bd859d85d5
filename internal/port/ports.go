// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	SetWithTTL(key string, value T, ttl time.Duration)
	Delete(key string)
	// Take removes key and returns its value. Concurrent callers never both
	// receive the same entry.
	Take(key string) (T, bool)
}

// ============================================================
// Identity provider
// ============================================================

// IdentityProvider signs users in against the third-party identity provider.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*domain.ProviderTokens, error)
	SignUp(ctx context.Context, email, password, displayName, photoURL string) (*domain.ProviderTokens, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.ProviderTokens, error)
	SignInWithGoogle(ctx context.Context, googleIDToken, requestURI string) (*domain.ProviderTokens, error)
}

// OAuthProvider runs an authorization-code flow with PKCE.
type OAuthProvider interface {
	RedirectURL() string
	AuthCodeURL(state, codeVerifier string) string
	Exchange(ctx context.Context, code, codeVerifier string) (*domain.FederatedProfile, error)
}

// TokenVerifier verifies an identity-provider ID token and extracts the identity.
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*domain.Identity, time.Time, error)
}

// VerifierSource produces a TokenVerifier once provider discovery completes.
type VerifierSource interface {
	Verifier(ctx context.Context) (TokenVerifier, error)
}

// Readiness reports whether the provider's verification keys are loaded.
type Readiness interface {
	Ready() bool
}

// SessionStore persists sessions keyed by session ID.
type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Update(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, sessionID string) error
}

// ============================================================
// Backend REST API
// ============================================================

// RoleFetcher asks the backend for the role assigned to an email.
type RoleFetcher interface {
	GetRole(ctx context.Context, email string) (string, error)
}

// UserStore reads and writes backend user profiles.
type UserStore interface {
	GetUser(ctx context.Context, email string) (*domain.User, error)
	UpsertUser(ctx context.Context, u *domain.User) error
	UpdateUser(ctx context.Context, email string, upd *domain.ProfileUpdate) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	SetUserRole(ctx context.Context, email string, role domain.Role) error
}

// CatalogStore serves the public catalog.
type CatalogStore interface {
	ListPolicies(ctx context.Context, q domain.PolicyQuery) (*domain.PolicyPage, error)
	PopularPolicies(ctx context.Context) ([]domain.Policy, error)
	GetPolicy(ctx context.Context, id string) (*domain.Policy, error)
	CreatePolicy(ctx context.Context, p *domain.Policy) (*domain.Policy, error)
	UpdatePolicy(ctx context.Context, id string, p *domain.Policy) (*domain.Policy, error)
	DeletePolicy(ctx context.Context, id string) error
	ListReviews(ctx context.Context) ([]domain.Review, error)
	CreateReview(ctx context.Context, r *domain.Review) error
	Subscribe(ctx context.Context, s *domain.NewsletterSubscription) error
}

// BlogStore serves blogs.
type BlogStore interface {
	ListBlogs(ctx context.Context, authorEmail string) ([]domain.Blog, error)
	GetBlog(ctx context.Context, id string) (*domain.Blog, error)
	RecordBlogVisit(ctx context.Context, id string) error
	CreateBlog(ctx context.Context, b *domain.Blog) (*domain.Blog, error)
	UpdateBlog(ctx context.Context, id string, b *domain.Blog) (*domain.Blog, error)
	DeleteBlog(ctx context.Context, id string) error
}

// ApplicationStore serves policy applications.
type ApplicationStore interface {
	CreateApplication(ctx context.Context, a *domain.Application) (*domain.Application, error)
	ListApplications(ctx context.Context) ([]domain.Application, error)
	ApplicationsByApplicant(ctx context.Context, email string) ([]domain.Application, error)
	ApplicationsByAgent(ctx context.Context, agentEmail string) ([]domain.Application, error)
	AssignAgent(ctx context.Context, id, agentEmail string) error
	UpdateApplicationStatus(ctx context.Context, id string, upd *domain.StatusUpdate) error
}

// PaymentStore serves payments and payment-processor intents.
type PaymentStore interface {
	CreatePaymentIntent(ctx context.Context, req *domain.PaymentIntentRequest, idempotencyKey string) (*domain.PaymentIntent, error)
	RecordPayment(ctx context.Context, p *domain.Payment) (*domain.Payment, error)
	PaymentsByEmail(ctx context.Context, email string) ([]domain.Payment, error)
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
}

// ClaimStore serves claim requests.
type ClaimStore interface {
	CreateClaim(ctx context.Context, c *domain.Claim) (*domain.Claim, error)
	ClaimsByAgent(ctx context.Context, agentEmail string) ([]domain.Claim, error)
	UpdateClaimStatus(ctx context.Context, id string, upd *domain.StatusUpdate) error
}

// AgentRequestStore serves "apply as agent" requests.
type AgentRequestStore interface {
	CreateAgentRequest(ctx context.Context, r *domain.AgentRequest) error
	ListAgentRequests(ctx context.Context) ([]domain.AgentRequest, error)
	UpdateAgentRequest(ctx context.Context, id string, upd *domain.StatusUpdate) error
}

// ImageUploader forwards images to the image host.
type ImageUploader interface {
	Upload(ctx context.Context, filename string, data []byte) (*domain.UploadedImage, error)
}
