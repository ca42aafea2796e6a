package pool

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellavondegurechaff/vmq/pool/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "debug"

[db]
host = "db.internal"
port = 6543
user = "vmq"
password = "secret"
database = "accounts"

[web]
port = 8080
rate_window = "30s"

[pool]
allocate_timeout = "3s"

[archive]
enabled = true
schedule = "*/5 * * * *"
bucket = "exports"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, 6543, cfg.DB.Port)
	assert.Equal(t, 8080, cfg.Web.Port)
	assert.Equal(t, 30*time.Second, cfg.Web.RateWindow.Duration)
	assert.Equal(t, 3*time.Second, cfg.Pool.AllocateTimeout.Duration)
	assert.Equal(t, config.DefaultQueryTimeout, cfg.Pool.QueryTimeout.Duration)
	assert.Equal(t, config.DefaultInsertChunkSize, cfg.Pool.InsertChunkSize)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "*/5 * * * *", cfg.Archive.Schedule)
	assert.Empty(t, cfg.Archive.Dir, "bucket configured, no implicit file sink")

	db := cfg.Database()
	assert.Equal(t, "accounts", db.Database)
	assert.Equal(t, "vmq", db.User)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "env-host")
	t.Setenv("DB_PORT", "7000")
	t.Setenv("DB_NAME", "envdb")

	cfg, err := LoadConfig(writeConfig(t, "[db]\nhost = \"file-host\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "env-host", cfg.DB.Host)
	assert.Equal(t, 7000, cfg.DB.Port)
	assert.Equal(t, "envdb", cfg.DB.Database)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "[pool]\nquery_timeout = \"soon\"\n"))
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, config.DefaultWebPort, cfg.Web.Port)
	assert.Equal(t, config.DefaultArchiveDir, cfg.Archive.Dir)
	assert.Equal(t, config.DefaultArchiveSchedule, cfg.Archive.Schedule)
}

func TestLoadConfigOrDefault(t *testing.T) {
	cfg, found, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, config.DefaultWebPort, cfg.Web.Port)

	cfg, found, err = LoadConfigOrDefault(writeConfig(t, "[pool]\ninsert_chunk_size = 42\n"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 42, cfg.Repository().ChunkSize)
	assert.Equal(t, config.AllocateTimeout, cfg.Repository().AllocateTimeout)

	_, _, err = LoadConfigOrDefault(writeConfig(t, "[web\n"))
	assert.Error(t, err)
}
