// Command authcore-demo wires an engine against a real Redis (REDIS_HOST /
// REDIS_PORT) or an embedded miniredis and walks the three flows once:
// login, authorize, refresh. Useful for smoke-testing a deployment's
// configuration before pointing the API at it.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	authcore "github.com/taskforge/authcore"
)

type staticCredentials struct {
	records map[string]authcore.CredentialRecord
}

func (s *staticCredentials) Lookup(_ context.Context, identity string) (authcore.CredentialRecord, error) {
	rec, ok := s.records[identity]
	if !ok {
		return authcore.CredentialRecord{}, authcore.ErrIdentityUnknown
	}
	return rec, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "authcore-demo:", err)
		os.Exit(1)
	}
}

func run() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := authcore.ConfigFromEnv()
	if err != nil {
		return err
	}
	if len(cfg.JWT.SigningKey) == 0 {
		logger.Warn("SECRET_KEY not set, using an ephemeral demo key")
		cfg.JWT.SigningKey = []byte("demo-signing-key-do-not-deploy")
	}
	cfg.Audit.Enabled = true

	client, cleanup, err := connectRedis(logger)
	if err != nil {
		return err
	}
	defer cleanup()

	creds := &staticCredentials{records: map[string]authcore.CredentialRecord{}}

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialSource(creds).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	hash, err := engine.HashSecret("demo-password-123")
	if err != nil {
		return err
	}
	creds.records["demo"] = authcore.CredentialRecord{
		Identity:   "demo",
		SecretHash: hash,
		Scope:      "user",
	}

	ctx := authcore.WithClientIP(context.Background(), "127.0.0.1")

	pair, err := engine.Login(ctx, "demo", "demo-password-123")
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	logger.Info("login ok")

	res, err := engine.Authorize(ctx, pair.AccessToken, "demo")
	if err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	logger.Info("authorize ok", zap.String("identity", res.Identity), zap.String("scope", res.Scope))

	if _, err := engine.Refresh(ctx, pair.RefreshToken); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	logger.Info("refresh ok")

	// Reusing the rotated token must trip replay detection.
	if _, err := engine.Refresh(ctx, pair.RefreshToken); err == nil {
		return fmt.Errorf("expected replay detection, refresh succeeded")
	} else {
		logger.Info("replay detection ok", zap.String("error", err.Error()))
	}

	return nil
}

func connectRedis(logger *zap.Logger) (redis.UniversalClient, func(), error) {
	addr := authcore.RedisAddrFromEnv()

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err == nil {
		logger.Info("connected to redis", zap.String("addr", addr))
		return client, func() { _ = client.Close() }, nil
	}
	_ = client.Close()

	logger.Warn("redis unreachable, starting embedded miniredis", zap.String("addr", addr))
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}
