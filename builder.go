package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taskforge/authcore/internal/limiters"
	"github.com/taskforge/authcore/internal/rate"
	"github.com/taskforge/authcore/jwt"
	"github.com/taskforge/authcore/password"
	"github.com/taskforge/authcore/refresh"
)

// Builder assembles an [Engine]. A builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	creds  CredentialSource

	auditSink AuditSink
	logger    *zap.Logger

	built bool
}

// New returns a builder pre-loaded with default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. Zero fields are filled with
// defaults during Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the ephemeral counter store client. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialSource sets the collaborator that owns credential records.
// Required.
func (b *Builder) WithCredentialSource(src CredentialSource) *Builder {
	b.creds = src
	return b
}

// WithAuditSink sets the destination for security events. Only consulted
// when auditing is enabled in the config. Defaults to a zap-backed sink
// when a logger is configured, NoOpSink otherwise.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. Defaults to a nop logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration and assembles the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("builder: redis client is required")
	}
	if b.creds == nil {
		return nil, errors.New("builder: credential source is required")
	}

	cfg := b.config
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: cfg.JWT.SigningMethod,
		SigningKey:    cfg.JWT.SigningKey,
		VerifyKey:     cfg.JWT.VerifyKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		TimeFunc:      cfg.JWT.TimeFunc,
	})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sink := b.auditSink
	if sink == nil && b.logger != nil {
		sink = NewZapSink(b.logger)
	}

	metrics := NewMetrics(cfg.Metrics)

	engine := &Engine{
		config:     cfg,
		creds:      b.creds,
		hasher:     hasher,
		jwtManager: jwtManager,
		refreshStore: refresh.NewStore(b.redis, refresh.Config{
			Prefix: cfg.RedisPrefix,
			TTL:    cfg.Refresh.TTL,
		}),
		rateLimiter: rate.New(b.redis, rate.Config{
			Ceiling:  cfg.RateLimit.Ceiling,
			Window:   cfg.RateLimit.Window,
			FailOpen: cfg.RateLimit.FailOpen,
			Prefix:   cfg.RedisPrefix,
		}),
		lockout: limiters.NewLockoutGuard(b.redis, limiters.LockoutConfig{
			Threshold: cfg.Lockout.Threshold,
			Duration:  cfg.Lockout.Duration,
			PerOrigin: cfg.Lockout.PerOrigin,
			Prefix:    cfg.RedisPrefix,
		}),
		audit: newAuditDispatcher(cfg.Audit, sink, func() {
			metrics.Inc(MetricAuditDropped)
		}),
		metrics: metrics,
		logger:  logger,
	}

	b.built = true
	return engine, nil
}
