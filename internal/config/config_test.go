package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"roomies/backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestPathFromEnv_DotEnvSetsDefault(t *testing.T) {
	unsetEnv(t, "CONFIG_FILE")
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CONFIG_FILE=/etc/roomies/prod.toml\n"), 0o600))

	path, err := config.PathFromEnv("config.toml", envFile)

	require.NoError(t, err)
	assert.Equal(t, "/etc/roomies/prod.toml", path)
}

func TestPathFromEnv_ProcessEnvWins(t *testing.T) {
	t.Setenv("CONFIG_FILE", "from-shell.toml")
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CONFIG_FILE=from-dotenv.toml\n"), 0o600))

	path, err := config.PathFromEnv("config.toml", envFile)

	require.NoError(t, err)
	assert.Equal(t, "from-shell.toml", path)
}

func TestPathFromEnv_MissingFileFallsBack(t *testing.T) {
	unsetEnv(t, "CONFIG_FILE")

	path, err := config.PathFromEnv("config.toml", filepath.Join(t.TempDir(), "absent.env"))

	assert.Error(t, err)
	assert.Equal(t, "config.toml", path)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(file, []byte("storage = \"memory\"\n\n[gateway]\nopTimeout = \"2s\"\n"), 0o600))
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := config.Load(file)

	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.Gateway.OpTimeout)
}
