package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/port"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
)

// ErrNotReady is returned by Verifier when discovery has not completed.
var ErrNotReady = errors.New("identity provider discovery not complete")

// Discovery resolves the provider's OIDC metadata and signing keys in the
// background. Until it completes the session holder reports "initializing".
type Discovery struct {
	issuer   string
	clientID string
	logger   *zap.Logger

	// retry delay between failed discovery attempts
	retryEvery time.Duration

	ready    chan struct{}
	once     sync.Once
	mu       sync.RWMutex
	verifier *oidc.IDTokenVerifier
}

// NewDiscovery creates a Discovery for issuer. clientID is the expected
// token audience (the provider project ID).
func NewDiscovery(issuer, clientID string, logger *zap.Logger) *Discovery {
	return &Discovery{
		issuer:     issuer,
		clientID:   clientID,
		logger:     logger,
		retryEvery: 2 * time.Second,
		ready:      make(chan struct{}),
	}
}

// Start launches discovery. It keeps retrying until it succeeds or ctx ends.
// Calling Start more than once has no effect.
func (d *Discovery) Start(ctx context.Context) {
	d.once.Do(func() {
		go d.run(ctx)
	})
}

func (d *Discovery) run(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		provider, err := oidc.NewProvider(ctx, d.issuer)
		if err == nil {
			d.mu.Lock()
			d.verifier = provider.Verifier(&oidc.Config{ClientID: d.clientID})
			d.mu.Unlock()
			close(d.ready)
			d.logger.Info("identity provider discovered", zap.String("issuer", d.issuer), zap.Int("attempts", attempt))
			return
		}

		d.logger.Warn("identity provider discovery failed",
			zap.String("issuer", d.issuer),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.retryEvery):
		}
	}
}

// Ready reports whether discovery has completed.
func (d *Discovery) Ready() bool {
	select {
	case <-d.ready:
		return true
	default:
		return false
	}
}

// Verifier returns the token verifier, or ErrNotReady while discovery is
// still pending.
func (d *Discovery) Verifier(ctx context.Context) (port.TokenVerifier, error) {
	if !d.Ready() {
		return nil, ErrNotReady
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return &tokenVerifier{v: d.verifier}, nil
}

// Wait blocks until discovery completes or ctx ends.
func (d *Discovery) Wait(ctx context.Context) error {
	select {
	case <-d.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type tokenVerifier struct {
	v *oidc.IDTokenVerifier
}

// idClaims are the identity fields carried by provider ID tokens.
type idClaims struct {
	Subject  string `json:"sub"`
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
	Verified bool   `json:"email_verified"`
}

// Verify checks signature, issuer, audience and expiry of rawIDToken.
func (t *tokenVerifier) Verify(ctx context.Context, rawIDToken string) (*domain.Identity, time.Time, error) {
	tok, err := t.v.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, time.Time{}, &domain.ErrUnauthorized{Message: "invalid identity token"}
	}

	var c idClaims
	if err := tok.Claims(&c); err != nil {
		return nil, time.Time{}, fmt.Errorf("parse identity claims: %w", err)
	}
	if c.Email == "" {
		return nil, time.Time{}, &domain.ErrUnauthorized{Message: "identity token carries no email"}
	}

	uid := c.UserID
	if uid == "" {
		uid = c.Subject
	}
	return &domain.Identity{
		UID:         uid,
		Email:       c.Email,
		DisplayName: c.Name,
		PhotoURL:    c.Picture,
		Credential:  rawIDToken,
	}, tok.Expiry, nil
}
