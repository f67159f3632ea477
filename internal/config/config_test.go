package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("PERSIST_TIMEOUT", "")

	cfg := Load()

	require.Equal(t, "postgres", cfg.DatabaseDriver)
	require.Equal(t, ":5000", cfg.Addr())
	require.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	require.Equal(t, 10*time.Second, cfg.PersistTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("DATABASE_DRIVER", "mysql")
	t.Setenv("PERSIST_TIMEOUT", "250ms")
	t.Setenv("SOCKET_EVENT_BURST", "not-a-number")
	t.Setenv("DEBUG", "true")

	cfg := Load()

	require.Equal(t, ":8081", cfg.Addr())
	require.Equal(t, "mysql", cfg.DatabaseDriver)
	require.Equal(t, 250*time.Millisecond, cfg.PersistTimeout)
	require.Equal(t, 40, cfg.SocketEventBurst)
	require.True(t, cfg.Debug)
}

func TestLoadFile_EnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kanban.toml")
	content := `
port = "7000"
frontend_url = "https://boards.example.com"
token_ttl = "1h"
socket_events_per_second = 5.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("PORT", "9000")
	t.Setenv("FRONTEND_URL", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("SOCKET_EVENTS_PER_SECOND", "")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	require.Equal(t, ":9000", cfg.Addr())
	require.Equal(t, "https://boards.example.com", cfg.FrontendURL)
	require.Equal(t, time.Hour, cfg.TokenTTL)
	require.InDelta(t, 5.5, cfg.SocketEventsPerSecond, 0.0001)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
