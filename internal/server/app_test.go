package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/dropkeeper/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.DatabaseDSN = config.MemoryDSN
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.MetricsAddr = "127.0.0.1:0"
	c.StorePath = t.TempDir()
	return c
}

func TestOpenRepositories_Memory(t *testing.T) {
	db, m, err := OpenRepositories(context.Background(), memoryConfig(t))
	require.NoError(t, err)
	assert.Nil(t, db)
	assert.NotNil(t, m)
}

func TestNewLogger_Level(t *testing.T) {
	c := memoryConfig(t)
	c.LogLevel = "warn"

	var buf bytes.Buffer
	l := NewLogger(&buf, c)
	l.Info(context.Background(), "hidden")
	l.Warn(context.Background(), "shown", "password", "hunter2")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "[REDACTED]", rec["password"])
}

func TestNewApp_InvalidConfig(t *testing.T) {
	c := memoryConfig(t)
	c.VaultKey = "not base64!"
	_, err := NewApp(c)
	assert.Error(t, err)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	app, err := NewApp(memoryConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		assert.NoError(t, app.Run(ctx))
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}

	_, err = app.vault.GetOTPSecret(context.Background(), "alice")
	assert.Error(t, err)
}

func TestApp_RunReportsListenerFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	c := memoryConfig(t)
	c.EndpointAddrGRPC = busy.Addr().String()
	app, err := NewApp(c)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- app.Run(context.Background()) }()

	select {
	case err := <-errc:
		assert.ErrorContains(t, err, "grpc server")
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}
}
