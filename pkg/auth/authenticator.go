// Package auth issues and validates the HS256 bearer tokens exchanged
// between the probe and the collections server when auth is enabled.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/meftunca/postbench/pkg/config"
	"github.com/meftunca/postbench/pkg/types"
)

// ErrCodeUnauthorized is reported for missing or invalid tokens
const ErrCodeUnauthorized types.ErrorCode = "UNAUTHORIZED"

// ErrUnauthorized matches every token validation failure
var ErrUnauthorized = types.NewProbeError(ErrCodeUnauthorized, "unauthorized")

// Claims are the claims carried by a probe token
type Claims struct {
	RunID string `json:"run_id,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies tokens with a shared secret
type Authenticator struct {
	secret     []byte
	issuer     string
	expiration time.Duration
	now        func() time.Time
}

// NewAuthenticator creates an authenticator for cfg. The secret must be set.
func NewAuthenticator(cfg config.AuthConfig) (*Authenticator, error) {
	if cfg.JWTSecret == "" {
		return nil, types.ErrInvalidConfig("auth.jwt_secret", "")
	}
	expiration := cfg.JWTExpiration
	if expiration <= 0 {
		expiration = time.Hour
	}
	return &Authenticator{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		expiration: expiration,
		now:        time.Now,
	}, nil
}

// GenerateToken creates a signed token for subject
func (a *Authenticator) GenerateToken(subject, runID string) (string, error) {
	now := a.now()
	claims := &Claims{
		RunID: runID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    a.issuer,
			Subject:   subject,
			ID:        generateRandomString(16),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", types.NewProbeErrorWithCause(ErrCodeUnauthorized, "failed to sign token", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, expiry and issuer of tokenString
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, types.NewProbeErrorWithCause(ErrCodeUnauthorized, "invalid token", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, types.NewProbeError(ErrCodeUnauthorized, "invalid token claims")
}

// BearerToken extracts the token of an Authorization header
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func generateRandomString(length int) string {
	b := make([]byte, length/2)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
