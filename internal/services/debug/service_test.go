package debug

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"braind/internal/storage"
	"braind/pkg/logx"
)

func eventsFixture(context.Context, int) ([]storage.Event, error) {
	return []storage.Event{
		{ID: 2, At: time.Now(), Session: "boot-1", Kind: storage.KindFault, Detail: "drivetrain fault"},
		{ID: 1, At: time.Now(), Session: "boot-1", Kind: storage.KindTransition, ToPhase: "connected"},
	}, nil
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop(), eventsFixture)
	rec := httptest.NewRecorder()
	s.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestEventsz(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop(), eventsFixture)
	rec := httptest.NewRecorder()
	s.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/eventsz?limit=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("eventsz = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "drivetrain fault") || !strings.Contains(body, "connected") {
		t.Fatalf("body missing events: %s", body)
	}

	rec = httptest.NewRecorder()
	s.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/eventsz?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit = %d, want 400", rec.Code)
	}
}

func TestEventszDisabled(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop(), nil)
	rec := httptest.NewRecorder()
	s.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/eventsz", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("eventsz without storage = %d, want 404", rec.Code)
	}
}

func TestTokenAuth(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Token: "s3cret"}, logx.Nop(), eventsFixture)
	h := s.handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer token = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz?token=s3cret", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("query token = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz?token=wrong", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token = %d, want 401", rec.Code)
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	for addr, want := range map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:6060": true,
		"[::1]:6060":     true,
		"0.0.0.0:6060":   false,
		":6060":          false,
		"10.0.0.5:6060":  false,
		"garbage":        false,
	} {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}
