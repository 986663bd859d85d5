package domain

import "time"

// ============================================================
// Identity / Session
// ============================================================

// Identity is the identity-provider record the session holder owns.
// Credential is the ID token forwarded to the backend as a bearer token.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
	Credential  string `json:"-"`
}

// Session binds a browser session to an identity for its lifetime.
type Session struct {
	ID           string    `json:"id"`
	Identity     Identity  `json:"identity"`
	Credential   string    `json:"credential"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenExpiry  time.Time `json:"tokenExpiry"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ProviderTokens is what the identity provider returns on sign-in,
// sign-up and refresh.
type ProviderTokens struct {
	UID          string
	Email        string
	DisplayName  string
	PhotoURL     string
	IDToken      string
	RefreshToken string
	ExpiresIn    time.Duration
}

// FederatedProfile is a verified third-party (Google) sign-in result.
type FederatedProfile struct {
	IDToken string
	Subject string
	Email   string
	Name    string
	Picture string
}

// SignInRequest is the body for POST /v1/auth/login.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpRequest is the body for POST /v1/auth/register.
type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	PhotoURL string `json:"photoURL,omitempty"`
}

// SessionResponse describes the current session to the SPA.
type SessionResponse struct {
	Loading       bool      `json:"loading"`
	Authenticated bool      `json:"authenticated"`
	Identity      *Identity `json:"identity,omitempty"`
	Role          string    `json:"role,omitempty"`
	RoleFallback  bool      `json:"roleFallback,omitempty"`
}
