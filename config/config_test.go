package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutEnvFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "{prefix}-{seq}", cfg.Queue.CodePattern)
	assert.Equal(t, 3, cfg.Queue.CodePad)
	assert.Equal(t, 6, cfg.Screen.Count)
	assert.Equal(t, 10*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessExpiry)
	assert.Contains(t, cfg.Queue.Motives, "consulta")
	assert.False(t, cfg.IsProduction())
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "APP_PORT=9090\nQUEUE_CODE_PAD=4\nSCREEN_PAIRING_TTL=2m\nQUEUE_MOTIVES=consulta, control\nJWT_ACCESS_EXPIRY=invalid\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 4, cfg.Queue.CodePad)
	assert.Equal(t, 2*time.Minute, cfg.Screen.PairingTTL)
	assert.Equal(t, []string{"consulta", "control"}, cfg.Queue.Motives)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessExpiry)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_ENV=development\n"), 0o600))
	t.Setenv("APP_ENV", "production")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
