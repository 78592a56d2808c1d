package auth

import (
	"net/http"

	"golang.org/x/oauth2"

	"github.com/semmy-space/monthend/internal/vault"
)

// SessionTokenSource serves a provider's token straight from the session's
// token manager. It never refreshes: an expired or missing token is returned
// as vault.ErrTokenExpired or vault.ErrTokenAbsent and the operator reconnects.
type SessionTokenSource struct {
	session  *vault.Session
	provider string
}

// NewTokenSource returns a token source for provider backed by s.
func NewTokenSource(s *vault.Session, provider string) *SessionTokenSource {
	return &SessionTokenSource{session: s, provider: provider}
}

// Token implements oauth2.TokenSource.
func (ts *SessionTokenSource) Token() (*oauth2.Token, error) {
	tok, err := ts.session.Tokens().Get(ts.provider)
	if err != nil {
		return nil, err
	}
	defer tok.Wipe()
	return &oauth2.Token{
		AccessToken: tok.Value.Reveal(),
		TokenType:   "Bearer",
		Expiry:      tok.ExpiresAt,
	}, nil
}

// HTTPClient returns a client that authorizes every request with the
// provider's current token. Unlike oauth2.NewClient it does not wrap the
// source in a cache, so a lock takes effect on the very next request.
func HTTPClient(s *vault.Session, provider string, base http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: NewTokenSource(s, provider),
			Base:   base,
		},
	}
}
