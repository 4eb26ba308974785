package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apiplane.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.False(t, cfg.StrictIfMatch)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
port = 9000
database_path = "/var/lib/apiplane.db"
review_enabled = true
admin_principals = ["root"]

[permission_cache]
size = 10
ttl = "30s"
`)
	t.Setenv(FileEnv, path)
	t.Setenv("PORT", "9100")
	t.Setenv("ADMIN_PRINCIPALS", "alice, bob,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "/var/lib/apiplane.db", cfg.DatabasePath)
	assert.True(t, cfg.ReviewEnabled)
	assert.Equal(t, []string{"alice", "bob"}, cfg.Admins)
	assert.Equal(t, 10, cfg.PermissionCache.Size)
	assert.Equal(t, 30*time.Second, cfg.PermissionCache.TTL.Duration)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STRICT_IF_MATCH", "true")
	t.Setenv("PERMISSION_CACHE_TTL", "2m")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WORKERS", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.StrictIfMatch)
	assert.Equal(t, 2*time.Minute, cfg.PermissionCache.TTL.Duration)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.Workers)
}

func TestLoad_BadEnvValues(t *testing.T) {
	t.Setenv("PORT", "eighty")
	t.Setenv("REVIEW_ENABLED", "maybe")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "REVIEW_ENABLED")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "missing.toml"))

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	t.Setenv(FileEnv, writeFile(t, "port = ["))

	_, err := Load()
	require.Error(t, err)
}

func TestValidate_ReportsTOMLNames(t *testing.T) {
	cfg := Default()
	cfg.Port = 0
	cfg.LogLevel = "verbose"
	cfg.PermissionCache.Size = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "permission_cache.size")
}
