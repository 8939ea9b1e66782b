package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("SITE_BASE_URL", "")

	cfg, err := Load("")
	require.NoError(t, err)

	want := Default()
	want.SiteBaseURL = "http://localhost:8080"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.yaml")
	err := os.WriteFile(path, []byte(`
port: "3000"
site_base_url: https://mvpetrera.com/
content_dir: /srv/content
subscribers: "1200"
storage:
  type: sqlite
  database_url: /tmp/file.db
`), 0o644)
	require.NoError(t, err)

	t.Setenv("STORAGE_TYPE", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SITE_BASE_URL", "")
	t.Setenv("PORT", "9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, "https://mvpetrera.com", cfg.SiteBaseURL)
	assert.Equal(t, "/srv/content", cfg.ContentDir)
	assert.Equal(t, "1200", cfg.Subscribers)
	assert.Equal(t, StorageSQLite, cfg.Storage.Type)
	assert.Equal(t, "/tmp/file.db", cfg.Storage.DatabaseURL)
	assert.Equal(t, "migrations", cfg.Storage.MigrationsDir)
}

func TestLoad_EnvOverridesStorage(t *testing.T) {
	t.Setenv("STORAGE_TYPE", StoragePostgres)
	t.Setenv("DATABASE_URL", "postgres://localhost/portfolio?sslmode=disable")
	t.Setenv("PORT", "")
	t.Setenv("SITE_BASE_URL", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.Storage.Type)
	assert.Equal(t, "postgres://localhost/portfolio?sslmode=disable", cfg.Storage.DatabaseURL)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SITE_BASE_URL", "")

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("unknown storage", func(t *testing.T) {
		t.Setenv("STORAGE_TYPE", "redis")
		_, err := Load("")
		assert.ErrorIs(t, err, ErrUnknownStorage)
	})

	t.Run("postgres without url", func(t *testing.T) {
		t.Setenv("STORAGE_TYPE", StoragePostgres)
		t.Setenv("DATABASE_URL", "")
		_, err := Load("")
		assert.ErrorContains(t, err, "DATABASE_URL")
	})
}
