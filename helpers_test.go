package authcore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// memoryCredentials is a map-backed CredentialSource for tests.
type memoryCredentials struct {
	mu      sync.RWMutex
	records map[string]CredentialRecord
}

func newMemoryCredentials() *memoryCredentials {
	return &memoryCredentials{records: make(map[string]CredentialRecord)}
}

func (m *memoryCredentials) Lookup(_ context.Context, identity string) (CredentialRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[identity]
	if !ok {
		return CredentialRecord{}, fmt.Errorf("%w: %s", ErrIdentityUnknown, identity)
	}
	return rec, nil
}

func (m *memoryCredentials) add(rec CredentialRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Identity] = rec
}

// testClock is an adjustable clock wired into the token manager so expiry
// tests do not have to sleep.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	engine *Engine
	mr     *miniredis.Miniredis
	creds  *memoryCredentials
	clock  *testClock
}

// newTestEngine builds an engine against a fresh miniredis with cheap
// hashing parameters. mutate, when non-nil, adjusts the config before Build.
func newTestEngine(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := newTestClock()

	cfg := defaultConfig()
	cfg.JWT.SigningKey = []byte("test-signing-key-32-bytes-long!!")
	cfg.JWT.TimeFunc = clock.Now
	cfg.Password = PasswordConfig{
		Memory:      8192,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
	cfg.Lockout.Threshold = 3
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	creds := newMemoryCredentials()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialSource(creds).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, mr: mr, creds: creds, clock: clock}
}

// provision hashes a secret at the engine's cost parameters and registers
// the credential record.
func (env *testEnv) provision(t *testing.T, identity, secret, scope string) {
	t.Helper()

	hash, err := env.engine.HashSecret(secret)
	require.NoError(t, err)

	env.creds.add(CredentialRecord{
		Identity:   identity,
		SecretHash: hash,
		Scope:      scope,
	})
}
