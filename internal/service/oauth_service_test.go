package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/weaveui/dataset-manager/internal/config"
	"github.com/weaveui/dataset-manager/internal/repository"
)

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("code") != "good-code" || r.PostForm.Get("client_id") != "client" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh-token","token_type":"bearer","scope":"public"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newOAuthFixture(t *testing.T) *OAuthService {
	t.Helper()
	srv := newTokenServer(t)
	return NewOAuthService(config.DribbbleConfig{
		AuthURL:      "https://dribbble.example/oauth/authorize",
		TokenURL:     srv.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "https://consent.example.org/oauth/callback",
		AccessToken:  "configured-token",
	}, repository.NewMemoryOAuthStateRepository(), nil)
}

func stateFrom(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "client" || q.Get("scope") != "public" || q.Get("redirect_uri") == "" {
		t.Errorf("authorize query = %v", q)
	}
	return q.Get("state")
}

func TestOAuthFlow(t *testing.T) {
	ctx := context.Background()
	svc := newOAuthFixture(t)

	if got, _ := svc.AccessToken(ctx); got != "configured-token" {
		t.Fatalf("fallback token = %q", got)
	}

	authURL, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	state := stateFrom(t, authURL)
	if len(state) != 32 {
		t.Fatalf("state = %q", state)
	}

	res, err := svc.Callback(ctx, "good-code", state)
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if res.Scope != "public" {
		t.Errorf("scope = %q", res.Scope)
	}
	if got, _ := svc.AccessToken(ctx); got != "fresh-token" {
		t.Errorf("token = %q", got)
	}

	if _, err := svc.Callback(ctx, "good-code", state); errorCode(t, err) != "VALIDATION_FAILED" {
		t.Errorf("reused state accepted: %v", err)
	}
}

func TestOAuthCallbackFailures(t *testing.T) {
	ctx := context.Background()
	svc := newOAuthFixture(t)

	authURL, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	state := stateFrom(t, authURL)

	if _, err := svc.Callback(ctx, "", state); errorCode(t, err) != "VALIDATION_FAILED" {
		t.Errorf("missing code: %v", err)
	}
	if _, err := svc.Callback(ctx, "good-code", "forged"); errorCode(t, err) != "VALIDATION_FAILED" {
		t.Errorf("forged state: %v", err)
	}
	if _, err := svc.Callback(ctx, "bad-code", state); errorCode(t, err) != "UPSTREAM_UNAVAILABLE" {
		t.Errorf("bad code: %v", err)
	}
}

func TestOAuthStartRequiresClient(t *testing.T) {
	svc := NewOAuthService(config.DribbbleConfig{}, repository.NewMemoryOAuthStateRepository(), nil)
	if _, err := svc.Start(context.Background()); errorCode(t, err) != "OAUTH_NOT_CONFIGURED" {
		t.Fatalf("expected OAUTH_NOT_CONFIGURED, got %v", err)
	}
}
