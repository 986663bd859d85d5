package identity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/identity"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newToolkit(t *testing.T, h http.HandlerFunc) *identity.Toolkit {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return identity.NewToolkit(srv.Client(), srv.URL+"/v1", srv.URL+"/token", "api-key",
		resilience.NewCircuitBreaker(t.Name()),
		resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond},
		zap.NewNop())
}

func TestSignIn(t *testing.T) {
	tk := newToolkit(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts:signInWithPassword", r.URL.Path)
		assert.Equal(t, "api-key", r.URL.Query().Get("key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana@example.com", body["email"])
		assert.Equal(t, true, body["returnSecureToken"])

		_, _ = w.Write([]byte(`{"localId":"u1","email":"ana@example.com","displayName":"Ana",
			"idToken":"id-1","refreshToken":"rt-1","expiresIn":"3600"}`))
	})

	tokens, err := tk.SignIn(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", tokens.UID)
	assert.Equal(t, "id-1", tokens.IDToken)
	assert.Equal(t, "rt-1", tokens.RefreshToken)
	assert.Equal(t, time.Hour, tokens.ExpiresIn)
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	calls := 0
	tk := newToolkit(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"INVALID_LOGIN_CREDENTIALS"}}`))
	})

	_, err := tk.SignIn(context.Background(), "ana@example.com", "wrong")

	var unauth *domain.ErrUnauthorized
	require.ErrorAs(t, err, &unauth)
	assert.Equal(t, 1, calls)
}

func TestSignUp_MapsProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		message string
		check   func(t *testing.T, err error)
	}{
		{"email exists", "EMAIL_EXISTS", func(t *testing.T, err error) {
			var c *domain.ErrConflict
			assert.ErrorAs(t, err, &c)
		}},
		{"weak password", "WEAK_PASSWORD : Password should be at least 6 characters", func(t *testing.T, err error) {
			var v *domain.ErrValidation
			require.ErrorAs(t, err, &v)
			assert.Equal(t, "password", v.Field)
			assert.Equal(t, "Password should be at least 6 characters", v.Message)
		}},
		{"unknown code", "OPERATION_NOT_ALLOWED", func(t *testing.T, err error) {
			var s *domain.ErrSession
			assert.ErrorAs(t, err, &s)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := newToolkit(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": 400, "message": tt.message}})
			})
			_, err := tk.SignUp(context.Background(), "ana@example.com", "pw", "Ana", "")
			tt.check(t, err)
		})
	}
}

func TestSignUp_KeepsProfileFields(t *testing.T) {
	tk := newToolkit(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Ana", body["displayName"])
		_, _ = w.Write([]byte(`{"localId":"u2","email":"ana@example.com","idToken":"id-2","refreshToken":"rt-2","expiresIn":"3600"}`))
	})

	tokens, err := tk.SignUp(context.Background(), "ana@example.com", "secret1", "Ana", "https://i.example/a.png")
	require.NoError(t, err)
	assert.Equal(t, "Ana", tokens.DisplayName)
	assert.Equal(t, "https://i.example/a.png", tokens.PhotoURL)
}

func TestRefresh(t *testing.T) {
	tk := newToolkit(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-1", r.PostForm.Get("refresh_token"))
		_, _ = w.Write([]byte(`{"user_id":"u1","id_token":"id-new","refresh_token":"rt-new","expires_in":"1800"}`))
	})

	tokens, err := tk.Refresh(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "id-new", tokens.IDToken)
	assert.Equal(t, 30*time.Minute, tokens.ExpiresIn)
}

func TestProviderOutage_IsSessionError(t *testing.T) {
	tk := newToolkit(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := tk.SignIn(context.Background(), "ana@example.com", "pw")

	var s *domain.ErrSession
	require.ErrorAs(t, err, &s)
	assert.Equal(t, "signIn", s.Op)
}

func TestDiscovery_ReadyAfterMetadataLoads(t *testing.T) {
	var issuer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                issuer,
			"jwks_uri":                              issuer + "/jwks",
			"authorization_endpoint":                issuer + "/auth",
			"token_endpoint":                        issuer + "/token",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	}))
	defer srv.Close()
	issuer = srv.URL

	d := identity.NewDiscovery(issuer, "project-1", zap.NewNop())
	_, err := d.Verifier(context.Background())
	assert.ErrorIs(t, err, identity.ErrNotReady)
	assert.False(t, d.Ready())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d.Start(ctx)
	require.NoError(t, d.Wait(ctx))

	assert.True(t, d.Ready())
	v, err := d.Verifier(ctx)
	require.NoError(t, err)

	_, _, err = v.Verify(ctx, "not-a-jwt")
	var unauth *domain.ErrUnauthorized
	assert.ErrorAs(t, err, &unauth)
}
