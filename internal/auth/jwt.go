package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"archive/internal/apperr"
)

// SessionTTL is how long an issued session token stays valid.
const SessionTTL = 30 * 24 * time.Hour

type TokenService struct {
	Secret   []byte
	Issuer   string
	Duration time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// Issue signs a token for userID that expires Duration from now.
func (ts TokenService) Issue(userID string) (string, time.Time, error) {
	now := ts.now()
	exp := now.Add(ts.duration())

	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(ts.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

// Verify returns the user id carried by a valid token. Any failure is an
// unauthorized error.
func (ts TokenService) Verify(tokenString string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired(), jwt.WithTimeFunc(ts.now)}
	if ts.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.Issuer))
	}

	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		// enforce HS256
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.Secret, nil
	}, opts...)
	if err != nil {
		return "", apperr.Unauthorized(msgTokenFailed).WithCause(err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || claims.UserID == "" {
		return "", apperr.Unauthorized(msgTokenFailed)
	}
	return claims.UserID, nil
}

func (ts TokenService) duration() time.Duration {
	if ts.Duration <= 0 {
		return SessionTTL
	}
	return ts.Duration
}

func (ts TokenService) now() time.Time {
	if ts.Now == nil {
		return time.Now()
	}
	return ts.Now()
}
