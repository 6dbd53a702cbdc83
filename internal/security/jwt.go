package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrInvalidIssuer  = errors.New("invalid issuer")
	ErrInvalidSubject = errors.New("invalid subject")
)

// Verifier проверяет access-токены auth-сервиса. Чат токены не выпускает —
// только parse и валидация (HS256, sub = user id).
type Verifier struct {
	secret    []byte
	issuer    string
	clockSkew time.Duration
}

func NewVerifier(secret, issuer string, clockSkew time.Duration) *Verifier {
	return &Verifier{
		secret:    []byte(secret),
		issuer:    issuer,
		clockSkew: clockSkew,
	}
}

type AccessClaims struct {
	jwt.StandardClaims
}

func (v *Verifier) ParseAndValidate(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if !claims.VerifyIssuer(v.issuer, true) {
		return nil, ErrInvalidIssuer
	}

	now := time.Now()
	nbf := time.Unix(claims.NotBefore, 0).Add(-v.clockSkew)
	exp := time.Unix(claims.ExpiresAt, 0).Add(v.clockSkew)
	if now.Before(nbf) || now.After(exp) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

// UserID парсит sub в числовой id пользователя.
func (c *AccessClaims) UserID() (int64, error) {
	if c == nil || c.Subject == "" {
		return 0, ErrInvalidSubject
	}
	var id int64
	if _, err := fmt.Sscan(c.Subject, &id); err != nil || id <= 0 {
		return 0, ErrInvalidSubject
	}
	return id, nil
}
