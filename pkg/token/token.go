// Package token mints the short-lived signed credentials the proxy
// presents to the upstream JiuTian API.
//
// The upstream verifies a standard three-part HS256 JWT whose header
// carries sign_type "SIGN" and whose claims identify the caller by the
// identifier half of the configured API key. Minting is stateless: a
// fresh credential is created for every outbound call and discarded
// after use. Credential lifetime far exceeds call duration, so the
// simplicity of re-minting wins over caching.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidCredentialMaterial indicates the configured API key is
	// not of the form "<identifier>.<signing key>".
	ErrInvalidCredentialMaterial = errors.New("api key is not of the form <id>.<secret>")

	// ErrSigningFailure indicates the HMAC signature could not be computed.
	ErrSigningFailure = errors.New("could not sign credential")
)

// Credential is an opaque signed token plus its validity window. It is
// owned by the outbound call that requested it and is never reused.
type Credential struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Mint creates a fresh credential from the shared API key. The key
// must split into an identifier and a signing key on a single dot.
// ExpiresAt is always IssuedAt plus ttl.
func Mint(apiKey string, ttl time.Duration) (Credential, error) {
	parts := strings.Split(apiKey, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Credential{}, ErrInvalidCredentialMaterial
	}
	id, secret := parts[0], parts[1]

	now := time.Now()
	expires := now.Add(ttl)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"api_key":   id,
		"exp":       expires.Unix(),
		"timestamp": now.UnixMilli(),
	})
	// The upstream rejects tokens whose header does not mark them as signed.
	tok.Header["sign_type"] = "SIGN"

	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}

	return Credential{
		Token:     signed,
		IssuedAt:  now,
		ExpiresAt: expires,
	}, nil
}
