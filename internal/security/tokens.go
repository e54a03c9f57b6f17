package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Purpose scopes an action token to the single flow it was issued for.
type Purpose string

const (
	PurposeResetPassword Purpose = "reset-password"
	PurposeVerifyEmail   Purpose = "verify-email"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// ActionClaims are carried by the links emailed to users.  Fingerprint binds the token to
// the state of the account at issue time, so changing that state revokes the token.
type ActionClaims struct {
	jwt.RegisteredClaims
	Fingerprint string `json:"fp"`
}

// TokenIssuer signs and parses action tokens with an HMAC key.
type TokenIssuer struct {
	key    []byte
	issuer string
}

func NewTokenIssuer(key []byte, issuer string) (*TokenIssuer, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("token key must be at least 32 bytes, got %d", len(key))
	}
	return &TokenIssuer{key: key, issuer: issuer}, nil
}

func (ti *TokenIssuer) Issue(purpose Purpose, userID uuid.UUID, fingerprint string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ActionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ti.issuer,
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{string(purpose)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Fingerprint: fingerprint,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.key)
}

// Parse validates the signature, expiry and purpose of token and returns the user it was issued for.
// Callers still have to compare the fingerprint with the current account state.
func (ti *TokenIssuer) Parse(purpose Purpose, token string) (uuid.UUID, *ActionClaims, error) {
	claims := &ActionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return ti.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !claims.VerifyAudience(string(purpose), true) || !claims.VerifyIssuer(ti.issuer, true) {
		return uuid.Nil, nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, nil, ErrInvalidToken
	}
	return userID, claims, nil
}

// Fingerprint is a short digest of value, safe to put in a token.
func Fingerprint(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:12])
}
