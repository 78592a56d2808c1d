package auth

import (
	"context"
	"fmt"
	"html"
	"net"
	"net/http"
	"time"
)

// callbackResult holds the OAuth2 callback parameters.
type callbackResult struct {
	Code    string
	State   string
	RealmID string
	Error   string
}

func callbackFromQuery(q interface{ Get(string) string }) callbackResult {
	if code := q.Get("code"); code != "" {
		return callbackResult{Code: code, State: q.Get("state"), RealmID: q.Get("realmId")}
	}
	errorMsg := q.Get("error")
	if errorMsg == "" {
		errorMsg = "missing authorization code"
	}
	return callbackResult{Error: errorMsg}
}

// startCallbackServer serves one OAuth2 redirect on addr at path. Intuit only
// redirects to registered URIs, so there is no fallback to a random port.
// The server shuts down on context cancellation or via the returned function.
func startCallbackServer(ctx context.Context, addr, path string) (<-chan callbackResult, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}

	resultChan := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		result := callbackFromQuery(r.URL.Query())
		select {
		case resultChan <- result:
		default:
			// Only the first callback counts.
		}

		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Cache-Control", "no-store")
		if result.Error != "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Connection Failed</title></head>
<body>
<h1>Connection Failed</h1>
<p>Error: %s</p>
<p>You can close this window and try again.</p>
</body>
</html>`, html.EscapeString(result.Error))
			return
		}

		fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Connected</title></head>
<body>
<h1>Connected</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`)
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	go func() {
		_ = server.Serve(listener)
	}()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}

	go func() {
		<-ctx.Done()
		shutdown()
	}()

	return resultChan, shutdown, nil
}
