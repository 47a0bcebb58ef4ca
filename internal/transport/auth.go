package transport

import (
	"net/http"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request, apiKey string)
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request, _ string) {}

// BearerAuth implements Bearer token authentication.
type BearerAuth struct{}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
}

// HeaderAuth sends the key verbatim in a header. CKAN reads API tokens from
// the Authorization header; older sites use X-CKAN-API-Key.
type HeaderAuth struct {
	Header string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(req *http.Request, apiKey string) {
	header := a.Header
	if header == "" {
		header = "Authorization"
	}
	req.Header.Set(header, apiKey)
}

// AuthenticatorFor returns the authenticator for a scheme name: "token"
// (the default), "bearer", "legacy" or "none".
func AuthenticatorFor(scheme string) Authenticator {
	switch scheme {
	case "bearer":
		return &BearerAuth{}
	case "legacy":
		return &HeaderAuth{Header: "X-CKAN-API-Key"}
	case "none":
		return &NoAuth{}
	default:
		return &HeaderAuth{}
	}
}
