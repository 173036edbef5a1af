package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/segmentio/ksuid"

	cidpkg "presencehub/internal/cid"
)

func TestCIDMiddlewareAddsHeader(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	cid := w.Header().Get(cidpkg.HeaderName)
	if cid == "" {
		t.Fatalf("expected response to include header %s", cidpkg.HeaderName)
	}
	if _, err := ksuid.Parse(cid); err != nil {
		t.Fatalf("expected %s to be a valid ksuid: %v", cid, err)
	}
}

func TestCIDMiddlewarePreservesExistingHeader(t *testing.T) {
	s := newTestServer()

	incoming := ksuid.New().String()
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(cidpkg.HeaderName, incoming)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	if got := w.Header().Get(cidpkg.HeaderName); got != incoming {
		t.Fatalf("expected middleware to preserve incoming CID %s, got %s", incoming, got)
	}
}

func TestCORSMiddlewareEchoesConfiguredOrigin(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://allowed.example")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://allowed.example" {
		t.Fatalf("expected allowed origin echoed, got %q", got)
	}
}

func TestCORSMiddlewareIgnoresUnknownOrigin(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header for unknown origin, got %q", got)
	}
}

func TestCORSMiddlewarePreflight(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodOptions, "/emit", nil)
	req.Header.Set("Origin", "http://allowed.example")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest("GET", "/api/presence/app", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsGarbageToken(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest("GET", "/api/presence/app", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", w.Code)
	}
}
