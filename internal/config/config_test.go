package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadService_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_URL", "REDIS_URL", "JWT_SECRET", "SEED_LIBRARY", "HEARTBEAT_INTERVAL", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadService("8000")
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.True(t, cfg.SeedLibrary)
	assert.Empty(t, cfg.JWTSecret)
	assert.Equal(t, 15*time.Second, cfg.HeartbeatInterval)
}

func TestLoadService_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SEED_LIBRARY", "false")
	t.Setenv("HEARTBEAT_INTERVAL", "5s")

	cfg, err := LoadService("8000")
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []byte("s3cret"), cfg.JWTSecret)
	assert.False(t, cfg.SeedLibrary)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
}

func TestLoadService_BadHeartbeat(t *testing.T) {
	t.Setenv("HEARTBEAT_INTERVAL", "soon")
	_, err := LoadService("8000")
	assert.Error(t, err)

	t.Setenv("HEARTBEAT_INTERVAL", "-1s")
	_, err = LoadService("8000")
	assert.Error(t, err)
}

func TestLoadClient_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: http://playlist.local
ws_url: ws://realtime.local/ws
user_name: ann
max_retries: 3
request_timeout: 2s
`), 0o600))

	t.Setenv("API_URL", "")
	t.Setenv("WS_URL", "")
	t.Setenv("API_TOKEN", "")
	t.Setenv("USER_NAME", "bob")

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "http://playlist.local", cfg.APIURL)
	assert.Equal(t, "ws://realtime.local/ws", cfg.WSURL)
	assert.Equal(t, "bob", cfg.UserName)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 45*time.Second, cfg.ReadTimeout)
}

func TestLoadClient_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("API_URL", "")
	t.Setenv("WS_URL", "")
	t.Setenv("USER_NAME", "")
	t.Setenv("API_TOKEN", "")

	cfg, err := LoadClient(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultClient(), cfg)
}

func TestLoadClient_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: [unterminated"), 0o600))

	_, err := LoadClient(path)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("debug", "json")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)

	_, err = NewLogger("loud", "text")
	assert.Error(t, err)

	_, err = NewLogger("info", "xml")
	assert.Error(t, err)
}
