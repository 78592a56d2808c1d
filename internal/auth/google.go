package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/awnumar/memguard"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/semmy-space/monthend/internal/vault"
)

// GoogleOptions configure ConnectGoogle.
type GoogleOptions struct {
	Scopes     []string     // defaults to GoogleScopes
	TokenURL   string       // overrides the key's token_uri
	HTTPClient *http.Client // used for the JWT exchange
	MaxRetries uint64       // defaults to 3
}

// ConnectGoogle mints an access token for the bundle's service account and
// registers it under ProviderGoogle. The key material only exists for the
// duration of the call.
func ConnectGoogle(ctx context.Context, s *vault.Session, opts GoogleOptions) (*ConnectResult, error) {
	if len(opts.Scopes) == 0 {
		opts.Scopes = GoogleScopes
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}

	var (
		tok     *oauth2.Token
		subject string
	)
	err := s.WithSecret(vault.GoogleServiceAccount, func(v vault.Value) error {
		key, _ := v.ServiceAccount()
		subject = key.ClientEmail

		data, err := key.JSON()
		if err != nil {
			return err
		}
		defer memguard.WipeBytes(data)

		jwtCfg, err := google.JWTConfigFromJSON(data, opts.Scopes...)
		if err != nil {
			return fmt.Errorf("service account key: %w", err)
		}
		defer memguard.WipeBytes(jwtCfg.PrivateKey)
		if opts.TokenURL != "" {
			jwtCfg.TokenURL = opts.TokenURL
		}

		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), opts.MaxRetries), ctx)
		tok, err = backoff.RetryWithData(func() (*oauth2.Token, error) {
			t, err := jwtCfg.TokenSource(ctx).Token()
			if err != nil {
				return nil, classify(err)
			}
			return t, nil
		}, policy)
		if err != nil {
			return fmt.Errorf("google token request failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return register(s, ProviderGoogle, tok, subject)
}
