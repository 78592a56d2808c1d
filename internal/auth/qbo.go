package auth

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"

	"github.com/semmy-space/monthend/internal/vault"
	"github.com/semmy-space/monthend/pkg/browser"
)

// Providers as registered with the token manager.
const (
	ProviderQBO    = "qbo"
	ProviderGoogle = "google"
)

// IntuitEndpoint is the QuickBooks Online OAuth2 endpoint. It is the same for
// sandbox and production companies.
var IntuitEndpoint = oauth2.Endpoint{
	AuthURL:   "https://appcenter.intuit.com/connect/oauth2",
	TokenURL:  "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer",
	AuthStyle: oauth2.AuthStyleInHeader,
}

const defaultTokenTTL = time.Hour

// ConnectOptions configure the QuickBooks connect flows.
type ConnectOptions struct {
	RedirectURL string
	Endpoint    oauth2.Endpoint    // zero value means IntuitEndpoint
	HTTPClient  *http.Client       // used for the token exchange
	Prompt      io.Writer          // instructions; defaults to stderr
	Input       io.Reader          // pasted redirect URL for ManualConnect; defaults to stdin
	OpenBrowser func(string) error // defaults to pkg/browser
	Timeout     time.Duration      // whole flow; defaults to 5 minutes
	MaxRetries  uint64             // token exchange retries on 5xx/network errors; defaults to 3
}

func (o ConnectOptions) withDefaults() ConnectOptions {
	if o.Endpoint.TokenURL == "" {
		o.Endpoint = IntuitEndpoint
	}
	if o.Prompt == nil {
		o.Prompt = os.Stderr
	}
	if o.Input == nil {
		o.Input = os.Stdin
	}
	if o.OpenBrowser == nil {
		o.OpenBrowser = browser.Open
	}
	if o.Timeout == 0 {
		o.Timeout = 5 * time.Minute
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	return o
}

// ConnectResult describes a registered token without its value.
type ConnectResult struct {
	Provider  string    `json:"provider"`
	Subject   string    `json:"subject,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InteractiveConnect runs the QuickBooks authorization in the browser and
// captures the redirect on a local callback server bound to RedirectURL.
func InteractiveConnect(ctx context.Context, s *vault.Session, opts ConnectOptions) (*ConnectResult, error) {
	opts = opts.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	u, err := url.Parse(opts.RedirectURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid redirect URL %q", opts.RedirectURL)
	}
	port := u.Port()
	if port == "" {
		port = "80"
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	results, shutdown, err := startCallbackServer(ctx, net.JoinHostPort(u.Hostname(), port), path)
	if err != nil {
		return nil, err
	}
	defer shutdown()

	return connectQBO(ctx, s, opts, func(authURL string) (callbackResult, error) {
		fmt.Fprintf(opts.Prompt, "Opening browser to connect QuickBooks...\n")
		fmt.Fprintf(opts.Prompt, "If the browser doesn't open, visit this URL:\n%s\n\n", authURL)
		if err := opts.OpenBrowser(authURL); err != nil {
			fmt.Fprintf(opts.Prompt, "Failed to open browser: %v\n", err)
		}

		select {
		case r := <-results:
			return r, nil
		case <-ctx.Done():
			return callbackResult{}, fmt.Errorf("connection timed out after %s", opts.Timeout)
		}
	})
}

// ManualConnect prints the authorization URL and reads the redirected URL back
// from Input. For SSH and headless sessions where no browser can reach us.
func ManualConnect(ctx context.Context, s *vault.Session, opts ConnectOptions) (*ConnectResult, error) {
	opts = opts.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	return connectQBO(ctx, s, opts, func(authURL string) (callbackResult, error) {
		fmt.Fprintf(opts.Prompt, "\n=== Manual QuickBooks Connect ===\n\n")
		fmt.Fprintf(opts.Prompt, "1. Visit this URL in your browser:\n\n%s\n\n", authURL)
		fmt.Fprintf(opts.Prompt, "2. After authorizing, you'll be redirected to a page that may not load.\n")
		fmt.Fprintf(opts.Prompt, "3. Copy the FULL URL from the address bar and paste it here.\n\n")
		fmt.Fprintf(opts.Prompt, "Paste the redirect URL: ")

		line, err := bufio.NewReader(opts.Input).ReadString('\n')
		if err != nil && line == "" {
			return callbackResult{}, fmt.Errorf("failed to read input: %w", err)
		}
		parsed, err := url.Parse(strings.TrimSpace(line))
		if err != nil {
			return callbackResult{}, fmt.Errorf("invalid URL: %w", err)
		}
		return callbackFromQuery(parsed.Query()), nil
	})
}

func connectQBO(ctx context.Context, s *vault.Session, opts ConnectOptions, obtain func(authURL string) (callbackResult, error)) (*ConnectResult, error) {
	cfg, err := qboConfig(s, opts)
	if err != nil {
		return nil, err
	}

	state, err := generateState()
	if err != nil {
		return nil, err
	}

	result, err := obtain(cfg.AuthCodeURL(state))
	if err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, fmt.Errorf("authorization failed: %s", result.Error)
	}
	if subtle.ConstantTimeCompare([]byte(result.State), []byte(state)) != 1 {
		return nil, errors.New("state mismatch (possible CSRF attack)")
	}
	if result.RealmID == "" {
		return nil, errors.New("redirect did not include a realmId")
	}

	tok, err := exchange(ctx, cfg, result.Code, opts)
	if err != nil {
		return nil, err
	}
	return register(s, ProviderQBO, tok, result.RealmID)
}

// qboConfig reads the client credentials from the unlocked session. The
// oauth2 package keeps them as strings, so the config must stay short-lived.
func qboConfig(s *vault.Session, opts ConnectOptions) (*oauth2.Config, error) {
	clientID, err := textSecret(s, vault.QBOClientID)
	if err != nil {
		return nil, err
	}
	clientSecret, err := textSecret(s, vault.QBOClientSecret)
	if err != nil {
		return nil, err
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     opts.Endpoint,
		RedirectURL:  opts.RedirectURL,
		Scopes:       QBOScopes,
	}, nil
}

func textSecret(s *vault.Session, name vault.Name) (string, error) {
	var out string
	err := s.WithSecret(name, func(v vault.Value) error {
		text, _ := v.Text()
		out = text.Reveal()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// exchange trades the authorization code for tokens, retrying transient
// failures. 4xx responses are permanent: the code is single-use.
func exchange(ctx context.Context, cfg *oauth2.Config, code string, opts ConnectOptions) (*oauth2.Token, error) {
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}

	op := func() (*oauth2.Token, error) {
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, classify(err)
		}
		return tok, nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), opts.MaxRetries), ctx)

	tok, err := backoff.RetryWithData(op, policy)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return tok, nil
}

// classify marks client errors as permanent so they are not retried.
func classify(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
		return backoff.Permanent(err)
	}
	return err
}

// register hands the access token to the session and drops everything else:
// refresh tokens are never kept.
func register(s *vault.Session, provider string, tok *oauth2.Token, subject string) (*ConnectResult, error) {
	value := []byte(tok.AccessToken)
	defer memguard.WipeBytes(value)
	ttl := tokenTTL(tok)
	tok.AccessToken, tok.RefreshToken = "", ""

	if err := s.Tokens().Register(provider, value, ttl, vault.WithSubject(subject)); err != nil {
		return nil, err
	}
	for _, st := range s.Tokens().List() {
		if st.Provider == provider {
			return &ConnectResult{Provider: provider, Subject: st.Subject, ExpiresAt: st.ExpiresAt}, nil
		}
	}
	// Locked between register and list.
	return nil, vault.ErrVaultLocked
}

func tokenTTL(tok *oauth2.Token) time.Duration {
	if tok.ExpiresIn > 0 {
		return time.Duration(tok.ExpiresIn) * time.Second
	}
	if !tok.Expiry.IsZero() {
		if ttl := time.Until(tok.Expiry); ttl > 0 {
			return ttl
		}
	}
	return defaultTokenTTL
}

// generateState generates a random state parameter for OAuth2 CSRF protection.
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CompanyName fetches the connected company's name, confirming the QuickBooks
// token works. apiBase comes from the configured environment.
func CompanyName(ctx context.Context, s *vault.Session, apiBase string) (string, error) {
	tok, err := s.Tokens().Get(ProviderQBO)
	if err != nil {
		return "", err
	}
	realm := tok.Subject
	tok.Wipe()

	endpoint := fmt.Sprintf("%s/v3/company/%s/companyinfo/%s", strings.TrimRight(apiBase, "/"), url.PathEscape(realm), url.PathEscape(realm))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := HTTPClient(s, ProviderQBO, nil).Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("QuickBooks API returned %s", resp.Status)
	}

	var body struct {
		CompanyInfo struct {
			CompanyName string `json:"CompanyName"`
		} `json:"CompanyInfo"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding company info: %w", err)
	}
	return body.CompanyInfo.CompanyName, nil
}
