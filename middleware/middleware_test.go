package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bikebill/authcore"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name      string
		remote    string
		forwarded string
		trust     bool
		want      string
	}{
		{"remote v4", "198.51.100.7:4431", "", false, "198.51.100.7"},
		{"remote v6", "[2001:db8::1]:4431", "", false, "2001:db8::1"},
		{"mapped v4", "[::ffff:198.51.100.7]:80", "", false, "198.51.100.7"},
		{"untrusted header ignored", "198.51.100.7:1", "203.0.113.9", false, "198.51.100.7"},
		{"trusted header", "10.0.0.2:1", "203.0.113.9, 10.0.0.1", true, "203.0.113.9"},
		{"garbage header falls back", "10.0.0.2:1", "nonsense", true, "10.0.0.2"},
		{"garbage remote", "pipe", "", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := ClientIP(r, tt.trust); got != tt.want {
				t.Fatalf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientContext(t *testing.T) {
	var gotIP string
	h := ClientContext(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = authcore.ClientIPFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.7:4431"
	h.ServeHTTP(httptest.NewRecorder(), r)

	if gotIP != "198.51.100.7" {
		t.Fatalf("expected client ip in context, got %q", gotIP)
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err        error
		status     int
		message    string
		retryAfter string
	}{
		{authcore.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials", ""},
		{authcore.ErrInvalidToken, http.StatusUnauthorized, "invalid or expired token", ""},
		{&authcore.RateLimitedError{Scope: "login", RetryAfter: 1500 * time.Millisecond}, http.StatusTooManyRequests, "too many requests", "2"},
		{fmt.Errorf("%w: redis down", authcore.ErrStoreUnavailable), http.StatusInternalServerError, "internal error", ""},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		WriteError(rec, tt.err)

		if rec.Code != tt.status {
			t.Fatalf("%v: status %d, want %d", tt.err, rec.Code, tt.status)
		}
		var body ErrorBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Error != tt.message {
			t.Fatalf("%v: message %q, want %q", tt.err, body.Error, tt.message)
		}
		if got := rec.Header().Get("Retry-After"); got != tt.retryAfter {
			t.Fatalf("%v: Retry-After %q, want %q", tt.err, got, tt.retryAfter)
		}
	}
}

func TestGuardWithoutEngine(t *testing.T) {
	called := false
	h := Guard(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer x")
	h.ServeHTTP(rec, r)

	if called || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without calling next, got %d called=%v", rec.Code, called)
	}
}
