package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/dropkeeper/internal/cryptox"
	"github.com/dmitrijs2005/dropkeeper/internal/logging"
	"github.com/dmitrijs2005/dropkeeper/internal/server/config"
	"github.com/dmitrijs2005/dropkeeper/internal/server/lockout"
	"github.com/dmitrijs2005/dropkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/dropkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/dropkeeper/internal/server/storage"
	"github.com/stretchr/testify/require"
)

const (
	alicePassword = "correct horse battery staple"
	bobPassword   = "tr0ub4dor&3 tr0ub4dor&3"
)

var testPasswordParams = cryptox.PasswordParams{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	cfg     *config.Config
	manager *repomanager.InMemoryRepositoryManager
	vault   *KeyVault
	auth    *AuthService
	subs    *SubmissionService
	store   storage.Store
	metrics *metrics.Metrics
	clock   *testClock
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.RSABits = 2048
	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := newTestConfig()
	m := repomanager.NewInMemoryRepositoryManager()
	mx := metrics.New()
	clock := &testClock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}

	vault, err := NewKeyVault(nil, m, cfg, logging.Nop{}, mx)
	require.NoError(t, err)
	vault.Engine().Now = clock.Now

	tracker := lockout.NewTracker(m.Journalists(nil),
		lockout.WithMaxAttempts(cfg.MaxLoginAttempts),
		lockout.WithWindow(cfg.LockoutWindow),
		lockout.WithClock(clock.Now))

	authSvc := NewAuthService(nil, m, vault, cfg, logging.Nop{}, mx,
		WithTracker(tracker), WithPasswordParams(testPasswordParams))

	store, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)

	return &testEnv{
		cfg:     cfg,
		manager: m,
		vault:   vault,
		auth:    authSvc,
		subs:    NewSubmissionService(vault, store, logging.Nop{}, mx),
		store:   store,
		metrics: mx,
		clock:   clock,
	}
}

func (e *testEnv) totp(t *testing.T, secret string) string {
	t.Helper()
	code, err := e.vault.Engine().TOTPCode(secret, e.clock.Now())
	require.NoError(t, err)
	return code
}

func (e *testEnv) hotp(t *testing.T, secret string, counter uint64) string {
	t.Helper()
	code, err := e.vault.Engine().HOTPCode(secret, counter)
	require.NoError(t, err)
	return code
}

func (e *testEnv) attempts(t *testing.T, username string) int {
	t.Helper()
	n, _, err := e.manager.Journalists(nil).Attempts(context.Background(), username)
	require.NoError(t, err)
	return n
}
