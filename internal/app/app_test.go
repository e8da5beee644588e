package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"realtime-backend/internal/config"
	"realtime-backend/internal/realtime"
	"realtime-backend/internal/realtime/realtimetest"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		StoreDriver:       config.DriverMemory,
		JWTSecret:         "secret",
		DirectoryCacheTTL: time.Minute,
		WSIdleTimeout:     35 * time.Second,
		WSWriteTimeout:    time.Second,
		ShutdownTimeout:   time.Second,
		Environment:       "test",
	}
}

func TestNew_MemoryDriver(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)

	resp, err := a.Handler().Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health struct {
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	_ = resp.Body.Close()
	assert.Equal(t, map[string]string{"cache": "ok"}, health.Checks)

	resp, err = a.Handler().Test(httptest.NewRequest(http.MethodGet, "/api/chats", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestShutdown_ClosesRegisteredConnections(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), zerolog.Nop())
	require.NoError(t, err)

	tr := realtimetest.NewTransport()
	a.registry.Register(realtime.Online, realtime.NewClient(1, tr, time.Second))

	a.Shutdown()
	assert.True(t, tr.Closed())
	assert.Equal(t, websocket.CloseGoingAway, tr.CloseCode())
	assert.ErrorIs(t, a.sessionCtx.Err(), context.Canceled)
}
