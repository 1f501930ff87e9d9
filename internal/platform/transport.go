package platform

import (
	"errors"
	"net/http"
)

// ErrNotAuthenticated is returned by the authorized transport when there is no fully authenticated session.
var ErrNotAuthenticated = errors.New("not authenticated")

// TokenSource provides the bearer token of the current session.
type TokenSource interface {
	IsAuthenticated() bool
	Token() string
}

type authorizedTransport struct {
	base   http.RoundTripper
	source TokenSource
}

// NewAuthorizedTransport returns a RoundTripper that attaches the session's bearer token to every request.
// Requests are refused while the source is not authenticated.
func NewAuthorizedTransport(base http.RoundTripper, source TokenSource) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &authorizedTransport{base: base, source: source}
}

func (t *authorizedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.source.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	token := t.source.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(r)
}
