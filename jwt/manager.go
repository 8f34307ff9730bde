package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret. Default for single-service
	// deployments where issuer and verifier are the same process.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an asymmetric key pair so collaborators can
	// verify without holding signing material.
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrExpired is returned for structurally valid tokens past their expiry.
	ErrExpired = errors.New("access token expired")
	// ErrMalformed covers every other validation failure: bad encoding, bad
	// signature, wrong algorithm, missing claims.
	ErrMalformed = errors.New("access token malformed")
)

// Config holds signing and validation parameters for access tokens.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	SigningKey    []byte // HS256 secret or ed25519 private key (raw or PEM)
	VerifyKey     []byte // ed25519 public key; unused for HS256
	Issuer        string
	Audience      string
	Leeway        time.Duration

	// TimeFunc overrides the clock for issuance and validation.
	// Nil means time.Now.
	TimeFunc func() time.Time
}

// AccessClaims is the claim set carried by access tokens. Tokens are
// self-contained: validation never touches a store.
type AccessClaims struct {
	UID   string `json:"uid"`
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and validates access tokens. Immutable after construction
// and safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates the configuration and returns a token manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.SigningKey) == 0 {
			return nil, errors.New("hs256 requires a signing key")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.SigningKey); err != nil {
			return nil, err
		}
		if _, err := parseEdPublicKey(cfg.VerifyKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// CreateAccess mints a signed access token for the identity with
// expiry = now + AccessTTL.
func (j *Manager) CreateAccess(uid, scope string) (string, error) {
	now := j.now()

	claims := AccessClaims{
		UID:   uid,
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.config.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
			Issuer:    j.config.Issuer,
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(j.getMethod(), claims)

	signKey, err := j.getSignKey()
	if err != nil {
		return "", err
	}

	return token.SignedString(signKey)
}

// ParseAccess validates a token string and returns its claims. Validation is
// pure: signature and time checks only, no store access. Failures map to
// [ErrExpired] or [ErrMalformed].
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.TimeFunc != nil {
		options = append(options, jwt.WithTimeFunc(j.config.TimeFunc))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return j.getVerifyKey()
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid || claims.UID == "" {
		return nil, ErrMalformed
	}

	return claims, nil
}

func (j *Manager) now() time.Time {
	if j.config.TimeFunc != nil {
		return j.config.TimeFunc()
	}
	return time.Now()
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return jwt.SigningMethodEdDSA
	default:
		return jwt.SigningMethodHS256
	}
}

func (j *Manager) getSignKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return parseEdPrivateKey(j.config.SigningKey)
	default:
		return j.config.SigningKey, nil
	}
}

func (j *Manager) getVerifyKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return parseEdPublicKey(j.config.VerifyKey)
	default:
		return j.config.SigningKey, nil
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
