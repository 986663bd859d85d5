// Package identity adapts the third-party identity provider: the Identity
// Toolkit REST API for password sign-in, sign-up and token refresh, OIDC
// discovery for ID-token verification, and Google sign-in.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("identity")

// Toolkit is an Identity Toolkit REST client.
type Toolkit struct {
	httpClient *http.Client
	apiURL     string
	tokenURL   string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewToolkit creates a Toolkit. apiURL is the accounts API base
// (https://identitytoolkit.googleapis.com/v1), tokenURL the secure token
// endpoint (https://securetoken.googleapis.com/v1/token).
func NewToolkit(httpClient *http.Client, apiURL, tokenURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Toolkit {
	return &Toolkit{
		httpClient: httpClient,
		apiURL:     strings.TrimRight(apiURL, "/"),
		tokenURL:   tokenURL,
		apiKey:     apiKey,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

// accountToken is the accounts:* response body.
type accountToken struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

// secureToken is the securetoken refresh response body.
type secureToken struct {
	UserID       string `json:"user_id"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
}

type providerError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn exchanges email and password for an ID token.
func (t *Toolkit) SignIn(ctx context.Context, email, password string) (*domain.ProviderTokens, error) {
	body := map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}
	var out accountToken
	if err := t.postJSON(ctx, "signIn", "accounts:signInWithPassword", body, &out); err != nil {
		return nil, err
	}
	return out.tokens()
}

// SignUp registers a new password account with its profile.
func (t *Toolkit) SignUp(ctx context.Context, email, password, displayName, photoURL string) (*domain.ProviderTokens, error) {
	body := map[string]any{
		"email":             email,
		"password":          password,
		"displayName":       displayName,
		"photoUrl":          photoURL,
		"returnSecureToken": true,
	}
	var out accountToken
	if err := t.postJSON(ctx, "signUp", "accounts:signUp", body, &out); err != nil {
		return nil, err
	}
	tokens, err := out.tokens()
	if err != nil {
		return nil, err
	}
	// accounts:signUp echoes neither name nor photo.
	if tokens.DisplayName == "" {
		tokens.DisplayName = displayName
	}
	if tokens.PhotoURL == "" {
		tokens.PhotoURL = photoURL
	}
	return tokens, nil
}

// SignInWithGoogle trades a verified Google ID token for a provider session.
func (t *Toolkit) SignInWithGoogle(ctx context.Context, googleIDToken, requestURI string) (*domain.ProviderTokens, error) {
	body := map[string]any{
		"postBody":            url.Values{"id_token": {googleIDToken}, "providerId": {"google.com"}}.Encode(),
		"requestUri":          requestURI,
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}
	var out accountToken
	if err := t.postJSON(ctx, "signInWithIdp", "accounts:signInWithIdp", body, &out); err != nil {
		return nil, err
	}
	return out.tokens()
}

// Refresh renews an ID token. Only UID and the token fields are populated.
func (t *Toolkit) Refresh(ctx context.Context, refreshToken string) (*domain.ProviderTokens, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	target := t.tokenURL + "?" + url.Values{"key": {t.apiKey}}.Encode()

	var out secureToken
	err := t.send(ctx, "refresh", target, "application/x-www-form-urlencoded", []byte(form.Encode()), &out)
	if err != nil {
		return nil, err
	}
	if out.IDToken == "" {
		return nil, &domain.ErrSession{Op: "refresh", Err: errors.New("provider returned no id token")}
	}
	return &domain.ProviderTokens{
		UID:          out.UserID,
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    parseExpiresIn(out.ExpiresIn),
	}, nil
}

func (t *Toolkit) postJSON(ctx context.Context, op, method string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", op, err)
	}
	target := t.apiURL + "/" + method + "?" + url.Values{"key": {t.apiKey}}.Encode()
	return t.send(ctx, op, target, "application/json", payload, out)
}

func (t *Toolkit) send(ctx context.Context, op, target, contentType string, payload []byte, out any) error {
	ctx, span := tracer.Start(ctx, "Identity."+op)
	defer span.End()
	span.SetAttributes(attribute.String("identity.op", op))

	_, err := t.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, t.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
			if err != nil {
				return resilience.Permanent(err)
			}
			req.Header.Set("Content-Type", contentType)

			resp, err := t.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
				return providerStatusError(op, resp.StatusCode, raw)
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return resilience.Permanent(fmt.Errorf("decode %s response: %w", op, err))
			}
			return nil
		})
	})
	if err == nil {
		return nil
	}

	span.RecordError(err)
	if resilience.IsBreakerOpen(err) {
		return &domain.ErrCircuitOpen{Service: "identity"}
	}
	inner := resilience.Unwrap(err)
	var (
		unauthorized *domain.ErrUnauthorized
		conflict     *domain.ErrConflict
		validation   *domain.ErrValidation
	)
	if errors.As(inner, &unauthorized) || errors.As(inner, &conflict) || errors.As(inner, &validation) {
		return inner
	}
	t.logger.Warn("identity provider call failed", zap.String("op", op), zap.Error(err))
	return &domain.ErrSession{Op: op, Err: inner}
}

// providerStatusError maps the provider's error codes. Messages look like
// "EMAIL_EXISTS" or "WEAK_PASSWORD : Password should be at least 6 characters".
func providerStatusError(op string, status int, raw []byte) error {
	if status >= 500 || status == http.StatusTooManyRequests {
		return fmt.Errorf("identity provider returned status %d", status)
	}

	var pe providerError
	_ = json.Unmarshal(raw, &pe)
	code, detail, _ := strings.Cut(pe.Error.Message, ":")
	code = strings.TrimSpace(code)
	detail = strings.TrimSpace(detail)

	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED",
		"TOKEN_EXPIRED", "INVALID_REFRESH_TOKEN", "USER_NOT_FOUND", "INVALID_IDP_RESPONSE":
		return resilience.Permanent(&domain.ErrUnauthorized{Message: "invalid credentials"})
	case "EMAIL_EXISTS":
		return resilience.Permanent(&domain.ErrConflict{Message: "email already registered"})
	case "INVALID_EMAIL":
		return resilience.Permanent(&domain.ErrValidation{Field: "email", Message: "invalid email"})
	case "WEAK_PASSWORD":
		return resilience.Permanent(&domain.ErrValidation{Field: "password", Message: orDefault(detail, "password too weak")})
	case "MISSING_PASSWORD":
		return resilience.Permanent(&domain.ErrValidation{Field: "password", Message: "password is required"})
	}
	return resilience.Permanent(fmt.Errorf("%s rejected with status %d: %s", op, status, orDefault(pe.Error.Message, "unknown error")))
}

func (a accountToken) tokens() (*domain.ProviderTokens, error) {
	if a.IDToken == "" {
		return nil, &domain.ErrSession{Op: "signIn", Err: errors.New("provider returned no id token")}
	}
	return &domain.ProviderTokens{
		UID:          a.LocalID,
		Email:        a.Email,
		DisplayName:  a.DisplayName,
		PhotoURL:     a.PhotoURL,
		IDToken:      a.IDToken,
		RefreshToken: a.RefreshToken,
		ExpiresIn:    parseExpiresIn(a.ExpiresIn),
	}, nil
}

// parseExpiresIn reads the provider's seconds-as-string lifetime.
// Unknown values fall back to the provider's documented one hour.
func parseExpiresIn(s string) time.Duration {
	secs, err := strconv.Atoi(s)
	if err != nil || secs <= 0 {
		return time.Hour
	}
	return time.Duration(secs) * time.Second
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
