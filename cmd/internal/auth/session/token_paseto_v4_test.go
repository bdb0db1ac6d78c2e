package session

import (
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewEphemeralManager(DefaultConfig())
	now := time.Now().UTC()

	token, exp, err := m.Issue("user-1", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if want := now.Add(DefaultConfig().AccessTokenTTL); !exp.Equal(want) {
		t.Fatalf("exp = %v, want %v", exp, want)
	}

	claims, err := m.Verify(token, now)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("uid = %q", claims.UserID)
	}
	if claims.Issuer != DefaultConfig().Issuer {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := NewEphemeralManager(DefaultConfig())

	for _, tok := range []string{"", "garbage", "v4.public.AAAA"} {
		if _, err := m.Verify(tok, time.Now().UTC()); err == nil {
			t.Fatalf("garbage token %q verified", tok)
		}
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewEphemeralManager(DefaultConfig())

	// Issued far enough in the past that the TTL has long lapsed.
	issued := time.Now().UTC().Add(-2 * time.Hour)
	token, _, err := m.Issue("user-1", issued)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := m.Verify(token, time.Now().UTC()); err == nil {
		t.Fatal("expired token verified")
	}
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	a := NewEphemeralManager(DefaultConfig())
	b := NewEphemeralManager(DefaultConfig())
	now := time.Now().UTC()

	token, _, err := a.Issue("user-1", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Verify(token, now); err == nil {
		t.Fatal("token signed by another keypair verified")
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Issuer = "someone-else"
	other := NewEphemeralManager(cfg)
	now := time.Now().UTC()

	token, _, err := other.Issue("user-1", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Same key, different expected issuer.
	mgr := other.(*pasetoV4PublicManager)
	same := &pasetoV4PublicManager{
		issuer:    "courier",
		ttl:       mgr.ttl,
		clockSkew: mgr.clockSkew,
		secret:    mgr.secret,
		public:    mgr.public,
	}
	if _, err := same.Verify(token, now); err == nil {
		t.Fatal("token with a foreign issuer verified")
	}
}

func TestPublicKeyHexRoundTrip(t *testing.T) {
	m := NewEphemeralManager(DefaultConfig())
	hexKey := m.PublicKeyHex()
	if hexKey == "" {
		t.Fatal("empty public key")
	}
	if m.PublicKeyHex() != hexKey {
		t.Fatal("public key not stable")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("COURIER_PASETO_V4_SECRET_KEY_HEX", "")
	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatal("missing secret key accepted")
	}

	t.Setenv("COURIER_PASETO_V4_SECRET_KEY_HEX", "deadbeef")
	t.Setenv("COURIER_AUTH_ISSUER", "courier-test")
	t.Setenv("COURIER_AUTH_ACCESS_TTL", "5m")
	t.Setenv("COURIER_AUTH_CLOCK_SKEW", "10s")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Issuer != "courier-test" || cfg.AccessTokenTTL != 5*time.Minute || cfg.ClockSkew != 10*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}

	t.Setenv("COURIER_AUTH_ACCESS_TTL", "not-a-duration")
	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatal("invalid TTL accepted")
	}
}
