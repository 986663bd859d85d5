package client

import (
	"context"
	"net/http"
)

// CredentialSource yields the bearer credential cached for the caller of ctx.
type CredentialSource interface {
	Credential(ctx context.Context) (string, bool)
}

// BearerTransport decorates outgoing requests with the caller's cached
// identity credential. Requests that already carry an Authorization header
// and callers without a credential pass through untouched.
type BearerTransport struct {
	Base   http.RoundTripper
	Source CredentialSource
}

// NewBearerTransport wraps base (http.DefaultTransport when nil).
func NewBearerTransport(base http.RoundTripper, src CredentialSource) *BearerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &BearerTransport{Base: base, Source: src}
}

// RoundTrip implements http.RoundTripper.
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") != "" || t.Source == nil {
		return t.Base.RoundTrip(req)
	}
	token, ok := t.Source.Credential(req.Context())
	if !ok || token == "" {
		return t.Base.RoundTrip(req)
	}

	// RoundTrippers must not mutate the caller's request.
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return t.Base.RoundTrip(clone)
}
