package authcore

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/taskforge/authcore/jwt"
)

// Config is the engine's full configuration surface. Zero values are filled
// with defaults by normalize during Build, so callers only set what they
// need to change.
type Config struct {
	JWT       JWTConfig
	Password  PasswordConfig
	Lockout   LockoutConfig
	RateLimit RateLimitConfig
	Refresh   RefreshConfig
	Audit     AuditConfig
	Metrics   MetricsConfig

	// RedisPrefix namespaces every key the engine writes.
	RedisPrefix string
}

// JWTConfig configures access-token issuance and validation.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod jwt.SigningMethod // hs256 (default) or ed25519
	SigningKey    []byte
	VerifyKey     []byte // ed25519 only
	Issuer        string
	Audience      string
	Leeway        time.Duration

	// TimeFunc overrides the token clock. Leave nil outside tests.
	TimeFunc func() time.Time
}

// PasswordConfig configures argon2id cost parameters.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// LockoutConfig configures the failed-login lockout guard.
type LockoutConfig struct {
	// Threshold is the number of consecutive failures that locks the
	// identity.
	Threshold int
	// Duration is both the lock length and the rolling failure window.
	Duration time.Duration
	// PerOrigin additionally locks per origin address. Defaults to true:
	// identity-only lockout lets a third party lock a victim out.
	PerOrigin bool
}

// RateLimitConfig configures the fixed-window request limiter.
type RateLimitConfig struct {
	// Ceiling is the request budget per key per window.
	Ceiling int
	// Window is the fixed counting window.
	Window time.Duration
	// FailOpen admits requests when the counter store is down instead of
	// rejecting them. Off by default; see internal/rate for the rationale.
	FailOpen bool
}

// RefreshConfig configures refresh-token families.
type RefreshConfig struct {
	// TTL is the refresh lifetime; rotation re-arms it.
	TTL time.Duration
}

// AuditConfig controls the async security-event stream.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     30 * time.Minute,
			SigningMethod: jwt.MethodHS256,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  15 * time.Minute,
			PerOrigin: true,
		},
		RateLimit: RateLimitConfig{
			Ceiling: 100,
			Window:  time.Minute,
		},
		Refresh: RefreshConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
		RedisPrefix: "ac",
	}
}

func (c *Config) normalize() {
	def := defaultConfig()

	if c.JWT.AccessTTL == 0 {
		c.JWT.AccessTTL = def.JWT.AccessTTL
	}
	if c.JWT.SigningMethod == "" {
		c.JWT.SigningMethod = def.JWT.SigningMethod
	}
	if c.Password.Memory == 0 {
		c.Password = def.Password
	}
	if c.Lockout.Threshold == 0 {
		c.Lockout.Threshold = def.Lockout.Threshold
	}
	if c.Lockout.Duration == 0 {
		c.Lockout.Duration = def.Lockout.Duration
	}
	if c.RateLimit.Ceiling == 0 {
		c.RateLimit.Ceiling = def.RateLimit.Ceiling
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = def.RateLimit.Window
	}
	if c.Refresh.TTL == 0 {
		c.Refresh.TTL = def.Refresh.TTL
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = def.Audit.BufferSize
	}
	if c.RedisPrefix == "" {
		c.RedisPrefix = def.RedisPrefix
	}
}

func (c *Config) validate() error {
	if len(c.JWT.SigningKey) == 0 {
		return errors.New("config: signing key is required")
	}
	if c.JWT.AccessTTL < 0 {
		return errors.New("config: access TTL must be positive")
	}
	if c.Lockout.Threshold < 1 {
		return errors.New("config: lockout threshold must be >= 1")
	}
	if c.Lockout.Duration < time.Second {
		return errors.New("config: lockout duration must be >= 1s")
	}
	if c.RateLimit.Ceiling < 1 {
		return errors.New("config: rate limit ceiling must be >= 1")
	}
	if c.RateLimit.Window < time.Second {
		return errors.New("config: rate limit window must be >= 1s")
	}
	if c.Refresh.TTL < time.Minute {
		return errors.New("config: refresh TTL must be >= 1m")
	}
	return nil
}

// ConfigFromEnv builds a Config from the process environment, loading a
// .env file first when present. Recognized variables follow the task API's
// conventions: SECRET_KEY, MAX_LOGIN_ATTEMPTS, LOCKOUT_TIME (minutes),
// RATE_LIMIT, RATE_LIMIT_WINDOW (seconds), ACCESS_TOKEN_EXPIRE_MINUTES,
// REFRESH_TOKEN_EXPIRE_DAYS. Unset variables keep their defaults.
func ConfigFromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if v := os.Getenv("SECRET_KEY"); v != "" {
		cfg.JWT.SigningKey = []byte(v)
	}
	if v, err := envInt("MAX_LOGIN_ATTEMPTS"); err != nil {
		return Config{}, err
	} else if v > 0 {
		cfg.Lockout.Threshold = v
	}
	if v, err := envInt("LOCKOUT_TIME"); err != nil {
		return Config{}, err
	} else if v > 0 {
		cfg.Lockout.Duration = time.Duration(v) * time.Minute
	}
	if v, err := envInt("RATE_LIMIT"); err != nil {
		return Config{}, err
	} else if v > 0 {
		cfg.RateLimit.Ceiling = v
	}
	if v, err := envInt("RATE_LIMIT_WINDOW"); err != nil {
		return Config{}, err
	} else if v > 0 {
		cfg.RateLimit.Window = time.Duration(v) * time.Second
	}
	if v, err := envInt("ACCESS_TOKEN_EXPIRE_MINUTES"); err != nil {
		return Config{}, err
	} else if v > 0 {
		cfg.JWT.AccessTTL = time.Duration(v) * time.Minute
	}
	if v, err := envInt("REFRESH_TOKEN_EXPIRE_DAYS"); err != nil {
		return Config{}, err
	} else if v > 0 {
		cfg.Refresh.TTL = time.Duration(v) * 24 * time.Hour
	}

	return cfg, nil
}

// RedisAddrFromEnv resolves the counter-store address from REDIS_HOST and
// REDIS_PORT, defaulting to localhost:6379.
func RedisAddrFromEnv() string {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	return host + ":" + port
}

func envInt(name string) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %v", name, err)
	}
	return n, nil
}
