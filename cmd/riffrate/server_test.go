package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"riffrate/internal/config"
	"riffrate/internal/identity"
	"riffrate/internal/logging"
	"riffrate/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Store:   config.StoreConfig{Backend: config.BackendMemory, Collection: "reviews"},
		Auth:    config.AuthConfig{Mode: config.AuthJWT, JWTSecret: "0123456789abcdef", JWTIssuer: "riffrate"},
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: 8080},
		CORS:    config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
		Logging: config.LoggingConfig{Level: "info", Format: "json"},
		Browse:  config.BrowseConfig{Window: 300, PageSize: 12},
	}
}

func TestSeedAndServe(t *testing.T) {
	cfg := testConfig()
	logger := logging.New(logging.Config{Output: &bytes.Buffer{}})
	authority := identity.NewJWTAuthority(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	deps := &dependencies{docs: store.NewMemory(), verifier: authority}
	repo := newRepository(cfg, deps, logger)

	ctx := context.Background()
	if err := seedDemoReviews(ctx, repo, logger); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := seedDemoReviews(ctx, repo, logger); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if n := deps.docs.(*store.Memory).Len("reviews"); n != len(demoReviews) {
		t.Fatalf("expected %d seeded reviews, got %d", len(demoReviews), n)
	}

	h := newHTTPHandler(cfg, repo, deps.verifier, logger)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bands?sort=az", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" || rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("middleware headers missing: %v", rec.Header())
	}
	if !strings.Contains(rec.Body.String(), "Idles") {
		t.Fatalf("expected seeded band in listing: %s", rec.Body.String())
	}

	token, err := authority.Issue(identity.Identity{UID: "u1", Email: "kim@example.com"}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"username":"kim"`) {
		t.Fatalf("unexpected /me response %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", rec.Code)
	}
}
