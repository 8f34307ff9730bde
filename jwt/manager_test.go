package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"
)

func hsConfig() Config {
	return Config{
		AccessTTL:     30 * time.Minute,
		SigningMethod: MethodHS256,
		SigningKey:    []byte("test-signing-key-32-bytes-long!!"),
	}
}

func TestCreateAndParseAccess(t *testing.T) {
	mgr, err := NewManager(hsConfig())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, err := mgr.CreateAccess("u1", "user")
	if err != nil {
		t.Fatalf("CreateAccess error: %v", err)
	}

	claims, err := mgr.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess error: %v", err)
	}
	if claims.UID != "u1" {
		t.Fatalf("expected uid u1, got %q", claims.UID)
	}
	if claims.Scope != "user" {
		t.Fatalf("expected scope user, got %q", claims.Scope)
	}
	if claims.ID == "" {
		t.Fatal("expected a jti claim")
	}
}

func TestExpiryBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := now

	cfg := hsConfig()
	cfg.TimeFunc = func() time.Time { return clock }

	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, err := mgr.CreateAccess("u1", "user")
	if err != nil {
		t.Fatalf("CreateAccess error: %v", err)
	}

	// One second before expiry the token is valid.
	clock = now.Add(cfg.AccessTTL - time.Second)
	if _, err := mgr.ParseAccess(token); err != nil {
		t.Fatalf("token must be valid before expiry: %v", err)
	}

	// One second after expiry it is not.
	clock = now.Add(cfg.AccessTTL + time.Second)
	if _, err := mgr.ParseAccess(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired after expiry, got %v", err)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	mgr, err := NewManager(hsConfig())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	other := hsConfig()
	other.SigningKey = []byte("another-signing-key-32-bytes!!!!")
	otherMgr, err := NewManager(other)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, err := otherMgr.CreateAccess("u1", "user")
	if err != nil {
		t.Fatalf("CreateAccess error: %v", err)
	}

	if _, err := mgr.ParseAccess(token); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for wrong key, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	mgr, err := NewManager(hsConfig())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	for _, input := range []string{"", "garbage", "a.b.c", strings.Repeat("x", 4096)} {
		if _, err := mgr.ParseAccess(input); !errors.Is(err, ErrMalformed) {
			t.Fatalf("input %q: expected ErrMalformed, got %v", input, err)
		}
	}
}

func TestParseRejectsTamperedClaims(t *testing.T) {
	mgr, err := NewManager(hsConfig())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, err := mgr.CreateAccess("u1", "user")
	if err != nil {
		t.Fatalf("CreateAccess error: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d parts", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	if _, err := mgr.ParseAccess(tampered); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for tampered payload, got %v", err)
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("key generation error: %v", err)
	}

	mgr, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		SigningKey:    priv,
		VerifyKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, err := mgr.CreateAccess("u1", "admin")
	if err != nil {
		t.Fatalf("CreateAccess error: %v", err)
	}

	claims, err := mgr.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess error: %v", err)
	}
	if claims.UID != "u1" || claims.Scope != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestIssuerAndAudienceEnforced(t *testing.T) {
	cfg := hsConfig()
	cfg.Issuer = "authcore"
	cfg.Audience = "task-api"

	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	plain, err := NewManager(hsConfig())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	// A token without the expected issuer/audience fails validation.
	token, err := plain.CreateAccess("u1", "user")
	if err != nil {
		t.Fatalf("CreateAccess error: %v", err)
	}
	if _, err := mgr.ParseAccess(token); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for missing issuer, got %v", err)
	}

	// Its own tokens round-trip.
	token, err = mgr.CreateAccess("u1", "user")
	if err != nil {
		t.Fatalf("CreateAccess error: %v", err)
	}
	if _, err := mgr.ParseAccess(token); err != nil {
		t.Fatalf("ParseAccess error: %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero ttl", Config{SigningMethod: MethodHS256, SigningKey: []byte("k")}},
		{"missing key", Config{AccessTTL: time.Minute, SigningMethod: MethodHS256}},
		{"bad method", Config{AccessTTL: time.Minute, SigningMethod: "rs256", SigningKey: []byte("k")}},
		{"excessive leeway", Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, SigningKey: []byte("k"), Leeway: time.Hour}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewManager(tc.cfg); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}
}
