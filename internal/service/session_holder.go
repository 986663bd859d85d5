package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/observability"
	"github.com/boddenberg/lifecover-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

var sessionTracer = otel.Tracer("service/session")

// ErrInitializing is returned while the identity provider's verification keys
// are still loading.
var ErrInitializing = errors.New("identity session initializing")

// refreshSkew renews credentials shortly before they expire so a request
// forwarded to the backend never carries a token that dies in flight.
const refreshSkew = time.Minute

// SessionHolder owns the caller's identity for the lifetime of a sign-in. It
// is the only writer of the stored credential: sign-in and sign-up create
// it, refresh replaces it and sign-out removes it.
type SessionHolder struct {
	provider  port.IdentityProvider
	verifiers port.VerifierSource
	readiness port.Readiness
	store     port.SessionStore
	users     port.UserStore
	roles     *RoleResolver
	google    port.OAuthProvider
	pending   port.Cache[string]

	sessionTTL time.Duration
	refreshes  singleflight.Group
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// SessionHolderDeps groups the collaborators of a SessionHolder. Google and
// Pending are optional; without them Google sign-in is disabled.
type SessionHolderDeps struct {
	Provider   port.IdentityProvider
	Verifiers  port.VerifierSource
	Readiness  port.Readiness
	Store      port.SessionStore
	Users      port.UserStore
	Roles      *RoleResolver
	Google     port.OAuthProvider
	Pending    port.Cache[string]
	SessionTTL time.Duration
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewSessionHolder creates a session holder.
func NewSessionHolder(d SessionHolderDeps) *SessionHolder {
	return &SessionHolder{
		provider:   d.Provider,
		verifiers:  d.Verifiers,
		readiness:  d.Readiness,
		store:      d.Store,
		users:      d.Users,
		roles:      d.Roles,
		google:     d.Google,
		pending:    d.Pending,
		sessionTTL: d.SessionTTL,
		metrics:    d.Metrics,
		logger:     d.Logger,
		now:        time.Now,
	}
}

// Ready reports whether session initialization has completed.
func (h *SessionHolder) Ready() bool {
	return h.readiness.Ready()
}

// Credential returns the bearer credential of the session attached to ctx.
func (h *SessionHolder) Credential(ctx context.Context) (string, bool) {
	s, ok := SessionFrom(ctx)
	if !ok || s.Credential == "" {
		return "", false
	}
	return s.Credential, true
}

// ============================================================
// Sign-in / sign-up
// ============================================================

// SignIn authenticates with email and password.
func (h *SessionHolder) SignIn(ctx context.Context, req *domain.SignInRequest) (*domain.Session, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionHolder.SignIn")
	defer span.End()

	if !h.Ready() {
		return nil, ErrInitializing
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, &domain.ErrValidation{Field: "credentials", Message: "email and password are required"}
	}

	tokens, err := h.provider.SignIn(ctx, email, req.Password)
	if err != nil {
		h.logger.Info("sign-in rejected", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	return h.establish(ctx, tokens, "sign_in", nil)
}

// SignUp registers a new account and signs it in. The backend user record is
// created with the customer role.
func (h *SessionHolder) SignUp(ctx context.Context, req *domain.SignUpRequest) (*domain.Session, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionHolder.SignUp")
	defer span.End()

	if !h.Ready() {
		return nil, ErrInitializing
	}
	if err := validateSignUp(req); err != nil {
		return nil, err
	}

	tokens, err := h.provider.SignUp(ctx, strings.TrimSpace(req.Email), req.Password, strings.TrimSpace(req.Name), req.PhotoURL)
	if err != nil {
		return nil, err
	}
	return h.establish(ctx, tokens, "sign_up", &domain.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		PhotoURL: req.PhotoURL,
		Role:     domain.RoleCustomer.String(),
	})
}

func validateSignUp(req *domain.SignUpRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return &domain.ErrValidation{Field: "email", Message: "invalid email"}
	}
	var upper, lower bool
	for _, r := range req.Password {
		upper = upper || unicode.IsUpper(r)
		lower = lower || unicode.IsLower(r)
	}
	if len(req.Password) < 6 || !upper || !lower {
		return &domain.ErrValidation{
			Field:   "password",
			Message: "password needs at least 6 characters with an uppercase and a lowercase letter",
		}
	}
	return nil
}

// GoogleEnabled reports whether Google sign-in is configured.
func (h *SessionHolder) GoogleEnabled() bool {
	return h.google != nil && h.pending != nil
}

// BeginGoogle starts a Google sign-in and returns the consent URL.
func (h *SessionHolder) BeginGoogle(ctx context.Context) (string, error) {
	if !h.GoogleEnabled() {
		return "", &domain.ErrNotFound{Resource: "sign-in method", ID: "google"}
	}
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	h.pending.Set(state, verifier)
	return h.google.AuthCodeURL(state, verifier), nil
}

// CompleteGoogle finishes a Google sign-in started by BeginGoogle.
func (h *SessionHolder) CompleteGoogle(ctx context.Context, state, code string) (*domain.Session, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionHolder.CompleteGoogle")
	defer span.End()

	if !h.GoogleEnabled() {
		return nil, &domain.ErrNotFound{Resource: "sign-in method", ID: "google"}
	}
	if !h.Ready() {
		return nil, ErrInitializing
	}
	verifier, ok := h.pending.Get(state)
	if !ok || code == "" {
		return nil, &domain.ErrUnauthorized{Message: "sign-in attempt expired or unknown"}
	}
	h.pending.Delete(state)

	profile, err := h.google.Exchange(ctx, code, verifier)
	if err != nil {
		return nil, &domain.ErrSession{Op: "google", Err: err}
	}
	tokens, err := h.provider.SignInWithGoogle(ctx, profile.IDToken, h.google.RedirectURL())
	if err != nil {
		return nil, err
	}
	if tokens.DisplayName == "" {
		tokens.DisplayName = profile.Name
	}
	if tokens.PhotoURL == "" {
		tokens.PhotoURL = profile.Picture
	}
	return h.establish(ctx, tokens, "google", &domain.User{
		Name:     tokens.DisplayName,
		Email:    profile.Email,
		PhotoURL: tokens.PhotoURL,
		Role:     domain.RoleCustomer.String(),
	})
}

// establish verifies the provider's ID token, stores a new session and
// registers the user with the backend. register overrides the upserted record.
func (h *SessionHolder) establish(ctx context.Context, tokens *domain.ProviderTokens, event string, register *domain.User) (*domain.Session, error) {
	ident, expiry, err := h.verify(ctx, tokens.IDToken)
	if err != nil {
		return nil, err
	}
	if ident.DisplayName == "" {
		ident.DisplayName = tokens.DisplayName
	}
	if ident.PhotoURL == "" {
		ident.PhotoURL = tokens.PhotoURL
	}

	now := h.now()
	sess := &domain.Session{
		ID:           uuid.NewString(),
		Identity:     *ident,
		Credential:   tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
		TokenExpiry:  expiry,
		ExpiresAt:    now.Add(h.sessionTTL),
		CreatedAt:    now,
	}
	sess.Identity.Credential = ""
	if err := h.store.Create(ctx, sess); err != nil {
		return nil, &domain.ErrSessionStore{Op: "create", Err: err}
	}

	user := register
	if user == nil {
		user = &domain.User{Name: ident.DisplayName, Email: ident.Email, PhotoURL: ident.PhotoURL}
	}
	lastLogin := now
	user.LastLoginAt = &lastLogin
	// A failed upsert must not cost the user their sign-in.
	if err := h.users.UpsertUser(WithSession(ctx, sess), user); err != nil {
		h.logger.Warn("user upsert failed", zap.String("email", ident.Email), zap.Error(err))
	}

	h.metrics.IncrSessionEvent(event)
	h.logger.Info("session started",
		zap.String("event", event),
		zap.String("email", ident.Email),
		zap.Time("token_expiry", expiry),
	)
	return sess, nil
}

func (h *SessionHolder) verify(ctx context.Context, rawIDToken string) (*domain.Identity, time.Time, error) {
	v, err := h.verifiers.Verifier(ctx)
	if err != nil {
		return nil, time.Time{}, ErrInitializing
	}
	return v.Verify(ctx, rawIDToken)
}

// ============================================================
// Current session / refresh
// ============================================================

// Current loads sessionID, renewing its credential when it is about to
// expire. It fails with ErrUnauthorized when the session is gone.
func (h *SessionHolder) Current(ctx context.Context, sessionID string) (*domain.Session, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionHolder.Current")
	defer span.End()

	sess, err := h.store.Get(ctx, sessionID)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil, &domain.ErrUnauthorized{Message: "session expired"}
		}
		return nil, &domain.ErrSessionStore{Op: "load", Err: err}
	}

	now := h.now()
	if !now.Before(sess.ExpiresAt) {
		_ = h.store.Delete(ctx, sessionID)
		return nil, &domain.ErrUnauthorized{Message: "session expired"}
	}
	if now.Add(refreshSkew).Before(sess.TokenExpiry) {
		return sess, nil
	}

	span.SetAttributes(attribute.Bool("session.refresh", true))
	v, err, _ := h.refreshes.Do(sessionID, func() (any, error) {
		return h.refresh(ctx, sess)
	})
	if err == nil {
		return v.(*domain.Session), nil
	}

	var unauth *domain.ErrUnauthorized
	if errors.As(err, &unauth) {
		h.roles.Invalidate(sess.Identity.Email)
		_ = h.store.Delete(ctx, sessionID)
		return nil, err
	}
	// Keep serving the old credential while it is still valid.
	if now.Before(sess.TokenExpiry) {
		h.logger.Warn("credential refresh failed, keeping current token",
			zap.String("email", sess.Identity.Email),
			zap.Error(err),
		)
		return sess, nil
	}
	return nil, err
}

func (h *SessionHolder) refresh(ctx context.Context, sess *domain.Session) (*domain.Session, error) {
	if sess.RefreshToken == "" {
		return nil, &domain.ErrUnauthorized{Message: "session cannot be renewed"}
	}
	tokens, err := h.provider.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return nil, err
	}
	ident, expiry, err := h.verify(ctx, tokens.IDToken)
	if err != nil {
		return nil, err
	}
	if ident.Email != sess.Identity.Email {
		return nil, &domain.ErrUnauthorized{Message: "refreshed identity does not match session"}
	}

	renewed := *sess
	renewed.Credential = tokens.IDToken
	renewed.TokenExpiry = expiry
	if tokens.RefreshToken != "" {
		renewed.RefreshToken = tokens.RefreshToken
	}
	if err := h.store.Update(ctx, &renewed); err != nil {
		return nil, &domain.ErrSessionStore{Op: "update", Err: err}
	}
	h.metrics.IncrSessionEvent("refresh")
	return &renewed, nil
}

// SignOut ends sessionID and forgets the memoised role of its identity.
func (h *SessionHolder) SignOut(ctx context.Context, sessionID string) error {
	ctx, span := sessionTracer.Start(ctx, "SessionHolder.SignOut")
	defer span.End()

	if sess, err := h.store.Get(ctx, sessionID); err == nil {
		h.roles.Invalidate(sess.Identity.Email)
		h.logger.Info("session ended", zap.String("email", sess.Identity.Email))
	}
	if err := h.store.Delete(ctx, sessionID); err != nil {
		return &domain.ErrSessionStore{Op: "delete", Err: err}
	}
	h.metrics.IncrSessionEvent("sign_out")
	return nil
}

// UpdateIdentity rewrites the profile fields cached in sess after a profile edit.
func (h *SessionHolder) UpdateIdentity(ctx context.Context, sess *domain.Session, name, photoURL string) error {
	updated := *sess
	if name != "" {
		updated.Identity.DisplayName = name
	}
	if photoURL != "" {
		updated.Identity.PhotoURL = photoURL
	}
	return h.store.Update(ctx, &updated)
}

// Describe reports the session state to the SPA.
func (h *SessionHolder) Describe(ctx context.Context, sess *domain.Session) *domain.SessionResponse {
	if !h.Ready() || (sess == nil && SessionUnavailable(ctx)) {
		return &domain.SessionResponse{Loading: true}
	}
	if sess == nil {
		return &domain.SessionResponse{}
	}
	// sess may be fresh from sign-in and not yet on ctx.
	res := h.roles.Resolve(WithSession(ctx, sess), sess.Identity.Email)
	ident := sess.Identity
	return &domain.SessionResponse{
		Authenticated: true,
		Identity:      &ident,
		Role:          res.Role.String(),
		RoleFallback:  res.Fallback,
	}
}
