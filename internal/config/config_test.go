package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 32, cfg.Sessions.CodeAttempts)
	assert.Equal(t, "none", cfg.Notifications.Queue)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  port: "9000"
redis:
  addr: "localhost:6379"
sessions:
  max_teams: 8
  require_started_for_scores: true
notifications:
  queue: asynq
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("QUIZ_JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Server.Port, "env wins over yaml")
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 8, cfg.Sessions.MaxTeams)
	assert.Equal(t, 32, cfg.Sessions.CodeAttempts, "unset keys keep defaults")
	assert.True(t, cfg.Sessions.RequireStartedForScores)
	assert.Equal(t, "asynq", cfg.Notifications.Queue)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestTTLDuration(t *testing.T) {
	assert.Equal(t, time.Minute, TTLDuration("", time.Minute))
	assert.Equal(t, 90*time.Second, TTLDuration("90s", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("soon", time.Minute))
}
