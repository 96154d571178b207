// Package auth exchanges bearer tokens for player profiles.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sketchroom/internal/session"
)

var (
	ErrExpiredToken                = errors.New("token expired")
	ErrInvalidTokenSignature       = errors.New("invalid token signature")
	ErrCorruptedToken              = errors.New("corrupted token")
	ErrInvalidSigningAlg           = errors.New("invalid signing algorithm")
	ErrMissingSubject              = errors.New("token has no subject")
	ErrUnexpectedTokenGeneration   = errors.New("unexpected token generation error")
	ErrUnexpectedTokenVerification = errors.New("unexpected token verification error")
)

type claims struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	secretKey []byte
	maxAge    time.Duration
}

func NewJWTManager(secretKey string, maxAge time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secretKey),
		maxAge:    maxAge,
	}
}

// Generate signs p's identity, valid for maxAge from now.
func (m *JWTManager) Generate(p session.Profile, now time.Time) (string, error) {
	c := claims{
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		CountryCode: p.CountryCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnexpectedTokenGeneration, err)
	}
	return signed, nil
}

// Verify checks an HS256 token and returns the profile it carries.
func (m *JWTManager) Verify(tokenString string) (session.Profile, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSigningAlg
		}
		return m.secretKey, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSigningAlg):
			return session.Profile{}, ErrInvalidSigningAlg
		case errors.Is(err, jwt.ErrTokenExpired):
			return session.Profile{}, ErrExpiredToken
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return session.Profile{}, ErrInvalidTokenSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return session.Profile{}, ErrCorruptedToken
		default:
			return session.Profile{}, fmt.Errorf("%w: %w", ErrUnexpectedTokenVerification, err)
		}
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return session.Profile{}, ErrCorruptedToken
	}
	if c.Subject == "" || c.Username == "" {
		return session.Profile{}, ErrMissingSubject
	}
	return session.Profile{
		UserID:      c.Subject,
		Username:    c.Username,
		DisplayName: c.DisplayName,
		AvatarURL:   c.AvatarURL,
		CountryCode: c.CountryCode,
	}, nil
}
