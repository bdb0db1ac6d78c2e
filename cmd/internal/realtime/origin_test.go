package realtime

import (
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestEnforceOrigin(t *testing.T) {
	g := &Gateway{
		originRequired: true,
		allowedOrigins: []string{"http://localhost", "https://app.example.com"},
	}

	cases := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"missing origin", "", false},
		{"exact match", "http://localhost", true},
		{"host match different port", "http://localhost:5173", true},
		{"host match different scheme", "https://app.example.com", true},
		{"unknown host", "https://evil.example.com", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}
			err := g.enforceOrigin(r)
			if tc.ok && err != nil {
				t.Fatalf("unexpected reject: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected reject")
			}
		})
	}
}

func TestEnforceOriginOptional(t *testing.T) {
	g := &Gateway{originRequired: false, allowedOrigins: []string{"http://localhost"}}

	r := httptest.NewRequest("GET", "/ws", nil)
	if err := g.enforceOrigin(r); err != nil {
		t.Fatalf("missing origin should pass when not required: %v", err)
	}

	r.Header.Set("Origin", "https://evil.example.com")
	if err := g.enforceOrigin(r); err == nil {
		t.Fatal("present but disallowed origin should still be rejected")
	}
}

func TestEnforceOriginWildcard(t *testing.T) {
	g := &Gateway{originRequired: true, allowedOrigins: []string{"*"}}

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "https://anywhere.example.com")
	if err := g.enforceOrigin(r); err != nil {
		t.Fatalf("explicit wildcard should pass: %v", err)
	}
}

func TestOriginHostOnly(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"http://localhost", "localhost"},
		{"http://localhost:5173", "localhost"},
		{"https://App.Example.COM", "app.example.com"},
		{"localhost:8080", "localhost"},
		{"localhost", "localhost"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := originHostOnly(tc.in); got != tc.want {
			t.Fatalf("originHostOnly(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDeriveOriginPatterns(t *testing.T) {
	got := deriveOriginPatternsFromAllowedOrigins([]string{
		"http://localhost", "http://localhost:5173", "https://app.example.com", "*", "",
	})
	want := []string{"app.example.com", "localhost"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("patterns = %v, want %v", got, want)
	}
}
