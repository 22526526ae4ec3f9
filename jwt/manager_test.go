package jwt

import (
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("dev-secret-dev-secret-dev-secret")

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{AccessTTL: time.Minute, Secret: testSecret, Issuer: "tvshows-dev"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestCreateAndParseAccess(t *testing.T) {
	m := newTestManager(t)
	tok, err := m.CreateAccess("alice", "USER", "PREMIUM")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	claims, err := m.ParseAccess(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "alice" || claims.Role != "USER" || claims.Membership != "PREMIUM" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseAccessRejectsExpired(t *testing.T) {
	m := newTestManager(t)
	tok, err := m.CreateAccessWithTTL("alice", "USER", "FREE", -time.Second)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.ParseAccess(tok); !IsExpired(err) {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestParseAccessRejectsWrongAlgorithmAndIssuer(t *testing.T) {
	m := newTestManager(t)

	none := gjwt.NewWithClaims(gjwt.SigningMethodNone, AccessClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "tvshows-dev",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	unsigned, _ := none.SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if _, err := m.ParseAccess(unsigned); err == nil {
		t.Fatal("expected unsigned token to be rejected")
	}

	other := gjwt.NewWithClaims(gjwt.SigningMethodHS256, AccessClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "someone-else",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	wrongIssuer, _ := other.SignedString(testSecret)
	if _, err := m.ParseAccess(wrongIssuer); err == nil {
		t.Fatal("expected wrong issuer to be rejected")
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{AccessTTL: time.Minute, Secret: []byte("short")}); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
	if _, err := NewManager(Config{Secret: testSecret}); err == nil {
		t.Fatal("expected zero TTL to be rejected")
	}
	if _, err := NewManager(Config{AccessTTL: time.Minute, Secret: testSecret, Leeway: time.Hour}); err == nil {
		t.Fatal("expected large leeway to be rejected")
	}
}

func TestPeekExpiry(t *testing.T) {
	m := newTestManager(t)
	tok, _ := m.CreateAccess("alice", "USER", "FREE")

	exp, ok := PeekExpiry(tok)
	if !ok {
		t.Fatal("expected expiry from signed token")
	}
	if d := time.Until(exp); d <= 0 || d > time.Minute+time.Second {
		t.Fatalf("unexpected expiry %v", exp)
	}

	for _, opaque := range []string{"", "opaque-token", "a.b", "a.b.c"} {
		if _, ok := PeekExpiry(opaque); ok {
			t.Fatalf("expected no expiry for %q", opaque)
		}
	}
}

// FuzzPeekExpiry feeds arbitrary strings to the unverified expiry reader.
// Goal: no panics.
func FuzzPeekExpiry(f *testing.F) {
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJIUzI1NiJ9.eyJleHAiOjF9.sig")
	f.Add("eyJhbGciOiJIUzI1NiJ9.e30.")
	f.Fuzz(func(t *testing.T, token string) {
		_, _ = PeekExpiry(token)
	})
}
