package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const googleIssuer = "https://accounts.google.com"

// Google runs the Google OAuth authorization-code flow with PKCE.
type Google struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	logger      *zap.Logger
}

// NewGoogle discovers Google's OIDC metadata and builds the OAuth client.
func NewGoogle(ctx context.Context, clientID, clientSecret, redirectURL string, logger *zap.Logger) (*Google, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("init google oidc provider: %w", err)
	}

	return &Google{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		logger:   logger,
	}, nil
}

// RedirectURL is the callback registered with Google.
func (g *Google) RedirectURL() string {
	return g.oauthConfig.RedirectURL
}

// AuthCodeURL builds the consent URL. codeVerifier must be kept until the
// callback (see oauth2.GenerateVerifier).
func (g *Google) AuthCodeURL(state, codeVerifier string) string {
	return g.oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(codeVerifier),
	)
}

// Exchange trades the callback code for a verified Google ID token.
func (g *Google) Exchange(ctx context.Context, code, codeVerifier string) (*domain.FederatedProfile, error) {
	token, err := g.oauthConfig.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("google token exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("google did not return id_token")
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("google id_token verification failed: %w", err)
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("google id_token claims parse failed: %w", err)
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, errors.New("google id_token missing required claims")
	}

	g.logger.Info("google oidc verified",
		zap.Bool("email_verified", claims.EmailVerified),
		zap.Time("expiry", idToken.Expiry),
	)

	return &domain.FederatedProfile{
		IDToken: rawIDToken,
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}
