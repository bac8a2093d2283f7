// Package auth issues and validates the bearer tokens carried by tap
// requests, and owns password hashing for the user store.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is what the rest of the service sees after token validation.
// Suppressed marks the designated account whose taps are accepted but not
// counted; Admin gates round creation. Both are resolved at issue time from
// configuration, never recomputed from the identity downstream.
type Claims struct {
	UserID     int64
	Username   string
	Admin      bool
	Suppressed bool
	ExpiresAt  time.Time
	IssuedAt   time.Time
}

// Provider defines the token operations used by the HTTP layer.
type Provider interface {
	// GenerateToken creates a signed token for the given claims.
	GenerateToken(claims Claims, ttl time.Duration) (string, error)

	// ValidateToken validates a token string and returns its claims.
	ValidateToken(token string) (*Claims, error)
}

// tokenClaims is the wire shape of the JWT payload.
type tokenClaims struct {
	jwt.RegisteredClaims
	Username   string `json:"username"`
	Admin      bool   `json:"admin,omitempty"`
	Suppressed bool   `json:"suppressed,omitempty"`
}

type provider struct {
	secret []byte
}

// NewProvider creates a JWT provider signing with the given secret.
func NewProvider(secret string) Provider {
	return &provider{secret: []byte(secret)}
}

// GenerateToken creates a signed HS256 token.
func (p *provider) GenerateToken(c Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.FormatInt(c.UserID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username:   c.Username,
		Admin:      c.Admin,
		Suppressed: c.Suppressed,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken validates a token and returns its claims.
func (p *provider) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	out := &Claims{
		UserID:     userID,
		Username:   claims.Username,
		Admin:      claims.Admin,
		Suppressed: claims.Suppressed,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// HashPassword returns "salt$digest" with a random salt and SHA-256 digest.
func HashPassword(password string) (string, error) {
	saltBytes := make([]byte, 16)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	salt := base64.RawStdEncoding.EncodeToString(saltBytes)
	sum := sha256.Sum256([]byte(salt + ":" + password))
	return salt + "$" + base64.RawStdEncoding.EncodeToString(sum[:]), nil
}

// VerifyPassword reports whether password matches the stored hash, using a
// constant-time digest comparison.
func VerifyPassword(stored, password string) bool {
	salt, digest, ok := strings.Cut(stored, "$")
	if !ok {
		return false
	}
	sum := sha256.Sum256([]byte(salt + ":" + password))
	want, err := base64.RawStdEncoding.DecodeString(digest)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(sum[:], want) == 1
}
