package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// mockTokenStore is a mock implementation of TokenStore for testing.
type mockTokenStore struct {
	token       *oauth2.Token
	savedTokens []*oauth2.Token
}

func (m *mockTokenStore) SaveToken(token *oauth2.Token) error {
	m.savedTokens = append(m.savedTokens, token)
	m.token = token
	return nil
}

func (m *mockTokenStore) LoadToken() (*oauth2.Token, error) {
	return m.token, nil
}

// stubTokenSource hands out a fixed sequence of tokens.
type stubTokenSource struct {
	tokens []*oauth2.Token
	calls  int
}

func (s *stubTokenSource) Token() (*oauth2.Token, error) {
	i := s.calls
	if i >= len(s.tokens) {
		i = len(s.tokens) - 1
	}
	s.calls++
	return s.tokens[i], nil
}

func TestGetAuthenticatedClient_TokenExists(t *testing.T) {
	ctx := context.Background()

	mockStore := &mockTokenStore{
		token: &oauth2.Token{
			AccessToken:  "test-access-token",
			RefreshToken: "test-refresh-token",
			Expiry:       time.Now().Add(1 * time.Hour),
			TokenType:    "Bearer",
		},
	}

	// The config is never used since a valid token exists.
	oauthConfig := &oauth2.Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		Scopes:       []string{"https://www.googleapis.com/auth/calendar"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}

	client, err := GetAuthenticatedClient(ctx, oauthConfig, mockStore)
	if err != nil {
		t.Fatalf("GetAuthenticatedClient() returned an error: %v", err)
	}
	if client == nil {
		t.Fatal("GetAuthenticatedClient() returned nil client")
	}

	if len(mockStore.savedTokens) != 0 {
		t.Errorf("Expected no token writes for a valid stored token, got %d", len(mockStore.savedTokens))
	}
}

func TestGetAuthenticatedClientWithReader_Exchange(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("code"); got != "auth-code" {
			t.Errorf("Expected the pasted code in the exchange, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh-token","token_type":"Bearer","refresh_token":"refresh","expires_in":3600}`)
	}))
	defer ts.Close()

	mockStore := &mockTokenStore{}
	oauthConfig := &oauth2.Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  ts.URL + "/auth",
			TokenURL: ts.URL + "/token",
		},
	}

	client, err := GetAuthenticatedClientWithReader(context.Background(), oauthConfig, mockStore, strings.NewReader("auth-code\n"))
	if err != nil {
		t.Fatalf("GetAuthenticatedClientWithReader() returned an error: %v", err)
	}
	if client == nil {
		t.Fatal("GetAuthenticatedClientWithReader() returned nil client")
	}

	if len(mockStore.savedTokens) != 1 {
		t.Fatalf("Expected the exchanged token to be saved once, got %d writes", len(mockStore.savedTokens))
	}
	if mockStore.savedTokens[0].AccessToken != "fresh-token" {
		t.Errorf("Expected the exchanged access token to be saved, got %q", mockStore.savedTokens[0].AccessToken)
	}
}

func TestAutoSaveTokenSource_SavesOnRefresh(t *testing.T) {
	first := &oauth2.Token{AccessToken: "first"}
	second := &oauth2.Token{AccessToken: "second"}

	mockStore := &mockTokenStore{}
	source := &autoSaveTokenSource{
		source: &stubTokenSource{tokens: []*oauth2.Token{first, second}},
		store:  mockStore,
		last:   first,
	}

	// Same access token comes back, nothing to persist.
	if _, err := source.Token(); err != nil {
		t.Fatalf("Token() returned an error: %v", err)
	}
	if len(mockStore.savedTokens) != 0 {
		t.Fatalf("Expected no writes while the token is unchanged, got %d", len(mockStore.savedTokens))
	}

	// A refreshed token must be written through.
	token, err := source.Token()
	if err != nil {
		t.Fatalf("Token() returned an error: %v", err)
	}
	if token.AccessToken != "second" {
		t.Errorf("Expected the refreshed token, got %q", token.AccessToken)
	}
	if len(mockStore.savedTokens) != 1 {
		t.Fatalf("Expected one write for the refreshed token, got %d", len(mockStore.savedTokens))
	}

	// And it only gets written once.
	if _, err := source.Token(); err != nil {
		t.Fatalf("Token() returned an error: %v", err)
	}
	if len(mockStore.savedTokens) != 1 {
		t.Errorf("Expected no further writes, got %d", len(mockStore.savedTokens))
	}
}
