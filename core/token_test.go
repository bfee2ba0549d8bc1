package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewSigningKeyRejectsShortSecret(t *testing.T) {
	if _, err := NewSigningKey([]byte("too-short")); err == nil {
		t.Fatalf("expected error for short secret")
	}
}

func TestSigningKeyCopiesSecret(t *testing.T) {
	secret := []byte(testSecret)
	key, err := NewSigningKey(secret)
	if err != nil {
		t.Fatalf("NewSigningKey: %v", err)
	}
	codec := NewTokenCodec(key, time.Hour, newFakeClock().Now)
	tok, _, err := codec.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	secret[0] ^= 0xff
	if _, err := codec.Parse(tok); err != nil {
		t.Fatalf("token stopped verifying after caller mutated its buffer: %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, testSecret, clock)

	tok, issued, err := codec.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !issued.ExpiresAt.Equal(clock.Now().Add(time.Hour)) {
		t.Fatalf("expires_at = %s, want %s", issued.ExpiresAt, clock.Now().Add(time.Hour))
	}

	claims, err := codec.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("subject = %q, want alice", claims.Subject)
	}
	if !claims.IssuedAt.Equal(issued.IssuedAt) || !claims.ExpiresAt.Equal(issued.ExpiresAt) {
		t.Fatalf("claims = %+v, want %+v", claims, issued)
	}
}

func TestTokenIssueIsDeterministic(t *testing.T) {
	codec := newTestCodec(t, testSecret, newFakeClock())
	a, _, err := codec.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	b, _, err := codec.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if a != b {
		t.Fatalf("same subject and clock produced different tokens")
	}
}

func TestTokenIssueRejectsEmptySubject(t *testing.T) {
	codec := newTestCodec(t, testSecret, newFakeClock())
	if _, _, err := codec.Issue("  "); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}

func TestTokenParseIgnoresExpiry(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, testSecret, clock)
	tok, _, err := codec.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	clock.Advance(48 * time.Hour)
	claims, err := codec.Parse(tok)
	if err != nil {
		t.Fatalf("Parse of expired token: %v", err)
	}
	if !claims.Expired(clock.Now()) {
		t.Fatalf("claims should report expired")
	}
}

func TestTokenParseRejectsForeignKey(t *testing.T) {
	clock := newFakeClock()
	ours := newTestCodec(t, testSecret, clock)
	theirs := newTestCodec(t, strings.Repeat("z", MinSigningKeyBytes), clock)

	tok, _, err := theirs.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := ours.Parse(tok); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestTokenParseRejectsSwappedPayload(t *testing.T) {
	codec := newTestCodec(t, testSecret, newFakeClock())
	alice, _, _ := codec.Issue("alice")
	mallory, _, _ := codec.Issue("mallory")

	a := strings.Split(alice, ".")
	m := strings.Split(mallory, ".")
	forged := a[0] + "." + m[1] + "." + a[2]

	if _, err := codec.Parse(forged); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestTokenParseRejectsUnsignedToken(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, testSecret, clock)
	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := codec.Parse(tok); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestTokenParseRejectsMalformed(t *testing.T) {
	codec := newTestCodec(t, testSecret, newFakeClock())
	for _, tok := range []string{"", "not-a-token", "a.b.c", "only.two"} {
		if _, err := codec.Parse(tok); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("Parse(%q) err = %v, want ErrMalformedToken", tok, err)
		}
	}
}

func TestTokenParseRequiresSubjectAndExpiry(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, testSecret, clock)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"}).
		SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := codec.Parse(tok); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("err = %v, want ErrMalformedToken", err)
	}
}
