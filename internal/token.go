package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

const (
	refreshSecretSize   = 32
	refreshTokenRawSize = 16 + refreshSecretSize
)

// ErrTokenFormat is returned when an opaque refresh token cannot be decoded.
var ErrTokenFormat = errors.New("invalid refresh token format")

// NewFamilyID returns a fresh refresh-token family identifier.
func NewFamilyID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

// NewRefreshSecret returns a random per-token secret. Only its hash is
// ever stored server-side.
func NewRefreshSecret() ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashRefreshSecret derives the store-side fingerprint of a refresh secret.
func HashRefreshSecret(secret [refreshSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeRefreshToken packs family id and secret into the opaque wire form:
// base64url(family ‖ secret), no padding.
func EncodeRefreshToken(family uuid.UUID, secret [refreshSecretSize]byte) string {
	var raw [refreshTokenRawSize]byte
	copy(raw[:16], family[:])
	copy(raw[16:], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:])
}

// DecodeRefreshToken reverses EncodeRefreshToken. Malformed input yields
// ErrTokenFormat without revealing which part failed.
func DecodeRefreshToken(token string) (uuid.UUID, [refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return uuid.Nil, secret, ErrTokenFormat
	}
	if len(raw) != refreshTokenRawSize {
		return uuid.Nil, secret, ErrTokenFormat
	}

	var family uuid.UUID
	copy(family[:], raw[:16])
	copy(secret[:], raw[16:])

	return family, secret, nil
}
