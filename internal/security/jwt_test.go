package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	testSecret = "test-secret"
	testIssuer = "unihub-auth"
)

func mint(t *testing.T, secret string, claims *jwt.StandardClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func validClaims() *jwt.StandardClaims {
	now := time.Now()
	return &jwt.StandardClaims{
		Subject:   "42",
		Issuer:    testIssuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
	}
}

func TestParseAndValidate(t *testing.T) {
	v := NewVerifier(testSecret, testIssuer, 30*time.Second)

	claims, err := v.ParseAndValidate(mint(t, testSecret, validClaims()))
	if err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	id, err := claims.UserID()
	if err != nil || id != 42 {
		t.Fatalf("UserID() = (%d, %v), want (42, nil)", id, err)
	}
}

func TestParseAndValidateRejects(t *testing.T) {
	v := NewVerifier(testSecret, testIssuer, 30*time.Second)

	expired := validClaims()
	expired.ExpiresAt = time.Now().Add(-time.Hour).Unix()

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "someone-else"

	cases := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", mint(t, "other-secret", validClaims())},
		{"expired", mint(t, testSecret, expired)},
		{"wrong issuer", mint(t, testSecret, wrongIssuer)},
	}
	for _, tc := range cases {
		if _, err := v.ParseAndValidate(tc.token); err == nil {
			t.Fatalf("%s: token accepted", tc.name)
		}
	}
}

func TestUserIDSubjectValidation(t *testing.T) {
	v := NewVerifier(testSecret, testIssuer, 30*time.Second)

	for _, sub := range []string{"", "abc", "-5", "0"} {
		c := validClaims()
		c.Subject = sub
		claims, err := v.ParseAndValidate(mint(t, testSecret, c))
		if err != nil {
			// пустой sub может срезаться раньше — это тоже отказ
			continue
		}
		if _, err := claims.UserID(); !errors.Is(err, ErrInvalidSubject) {
			t.Fatalf("sub=%q: expected ErrInvalidSubject, got %v", sub, err)
		}
	}
}
