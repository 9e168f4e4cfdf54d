// Package auth obtains OAuth credentials for the Google Calendar API and
// keeps the granted token fresh on disk between runs.
package auth

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// TokenStore saves and loads OAuth tokens between runs.
type TokenStore interface {
	SaveToken(token *oauth2.Token) error
	LoadToken() (*oauth2.Token, error)
}

// autoSaveTokenSource wraps an oauth2.TokenSource and writes every refreshed
// token back to the store.
type autoSaveTokenSource struct {
	source oauth2.TokenSource
	store  TokenStore
	last   *oauth2.Token
}

// Token implements oauth2.TokenSource and saves the token if it was refreshed.
func (a *autoSaveTokenSource) Token() (*oauth2.Token, error) {
	token, err := a.source.Token()
	if err != nil {
		return nil, err
	}

	if a.last == nil || a.last.AccessToken != token.AccessToken {
		if err := a.store.SaveToken(token); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
		a.last = token
	}

	return token, nil
}

// GetAuthenticatedClient returns an HTTP client carrying OAuth credentials.
// On the first run it walks the user through the browser consent flow and
// catches the redirect on a loopback listener.
func GetAuthenticatedClient(ctx context.Context, oauthConfig *oauth2.Config, store TokenStore) (*http.Client, error) {
	token, err := store.LoadToken()
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	if token == nil {
		code, err := codeViaLoopback(oauthConfig)
		if err != nil {
			return nil, err
		}
		token, err = exchangeAndSave(ctx, oauthConfig, store, code)
		if err != nil {
			return nil, err
		}
		fmt.Println("Authorization successful!")
	}

	return clientFromToken(ctx, oauthConfig, store, token), nil
}

// GetAuthenticatedClientWithReader runs the consent flow with the
// authorization code pasted into reader instead of caught on a loopback
// listener. Tests script the flow through it.
func GetAuthenticatedClientWithReader(ctx context.Context, oauthConfig *oauth2.Config, store TokenStore, reader io.Reader) (*http.Client, error) {
	token, err := store.LoadToken()
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	if token == nil {
		authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
		fmt.Println("Please visit the following URL to authorize the application:")
		fmt.Println(authURL)
		fmt.Print("Enter the authorization code: ")

		var code string
		if _, err := fmt.Fscanln(reader, &code); err != nil {
			return nil, fmt.Errorf("failed to read authorization code: %w", err)
		}

		token, err = exchangeAndSave(ctx, oauthConfig, store, code)
		if err != nil {
			return nil, err
		}
	}

	return clientFromToken(ctx, oauthConfig, store, token), nil
}

func exchangeAndSave(ctx context.Context, oauthConfig *oauth2.Config, store TokenStore, code string) (*oauth2.Token, error) {
	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := store.SaveToken(token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	return token, nil
}

func clientFromToken(ctx context.Context, oauthConfig *oauth2.Config, store TokenStore, token *oauth2.Token) *http.Client {
	source := &autoSaveTokenSource{
		source: oauth2.ReuseTokenSource(token, oauthConfig.TokenSource(ctx, token)),
		store:  store,
		last:   token,
	}
	return oauth2.NewClient(ctx, source)
}

// codeViaLoopback prints the consent URL and waits for the browser redirect
// to deliver the authorization code.
func codeViaLoopback(oauthConfig *oauth2.Config) (string, error) {
	redirectURL, codeChan, errChan, err := startLocalServer()
	if err != nil {
		return "", fmt.Errorf("failed to start local server: %w", err)
	}

	oauthConfig.RedirectURL = redirectURL
	authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Printf("Starting local server on %s\n", redirectURL)
	if redirectURL != "http://127.0.0.1:8080" {
		fmt.Printf("Note: Port 8080 was unavailable. Make sure to add %s to your authorized redirect URIs in Google Cloud Console.\n", redirectURL)
	}
	fmt.Println("\nPlease visit the following URL to authorize the application:")
	fmt.Println(authURL)
	fmt.Println("\nWaiting for authorization...")

	select {
	case code := <-codeChan:
		if code == "" {
			return "", fmt.Errorf("no authorization code received")
		}
		return code, nil
	case err := <-errChan:
		return "", fmt.Errorf("failed to receive authorization code: %w", err)
	case <-time.After(5 * time.Minute):
		return "", fmt.Errorf("authorization timeout: no response received within 5 minutes")
	}
}

// startLocalServer starts a local HTTP server to receive the OAuth callback.
// Uses port 8080 by default, or a random port if 8080 is unavailable.
func startLocalServer() (string, <-chan string, <-chan error, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:8080")
	if err != nil {
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return "", nil, nil, err
		}
	}

	port := listener.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	server := &http.Server{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  10 * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Query().Get("code") != "":
			fmt.Fprint(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window.</p></body></html>")
			codeChan <- r.URL.Query().Get("code")
		case r.URL.Query().Get("error") != "":
			errMsg := r.URL.Query().Get("error")
			fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>Error: %s</p></body></html>", errMsg)
			errChan <- fmt.Errorf("authorization error: %s", errMsg)
		default:
			fmt.Fprint(w, "<html><body><h1>No authorization code received</h1></body></html>")
			errChan <- fmt.Errorf("no authorization code received")
		}

		// Let the response flush before taking the server down.
		go func() {
			time.Sleep(1 * time.Second)
			server.Shutdown(context.Background())
		}()
	})
	server.Handler = mux

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	return redirectURL, codeChan, errChan, nil
}
