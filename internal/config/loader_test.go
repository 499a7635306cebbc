package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.GetConfigPath())

	assert.Equal(t, DefaultConfigPath, NewLoader("").GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nonexistent.json")

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("load config from file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "wapair.json")

		testConfig := `{
			"http": {"port": 8081},
			"sessions": {"pending_dir": "/var/lib/wapair/temp", "resume_on_start": false}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)

		assert.Equal(t, 8081, cfg.HTTP.Port)
		assert.Equal(t, "/var/lib/wapair/temp", cfg.Sessions.PendingDir)
		assert.False(t, cfg.Sessions.ResumeOnStart)
		// untouched keys keep their defaults
		assert.Equal(t, "sessions", cfg.Sessions.PersistedDir)
		assert.Equal(t, "public", cfg.HTTP.StaticDir)
	})

	t.Run("invalid json", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "wapair.json")
		require.NoError(t, os.WriteFile(configPath, []byte("{not json"), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoaderLoad_Env(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nonexistent.json")

	t.Run("PORT overrides http.port", func(t *testing.T) {
		t.Setenv("PORT", "4000")

		cfg, err := Load(configPath)
		require.NoError(t, err)
		assert.Equal(t, 4000, cfg.HTTP.Port)
	})

	t.Run("prefixed variable wins over PORT", func(t *testing.T) {
		t.Setenv("PORT", "4000")
		t.Setenv("WAPAIR_HTTP_PORT", "5000")

		cfg, err := Load(configPath)
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.HTTP.Port)
	})

	t.Run("nested keys", func(t *testing.T) {
		t.Setenv("WAPAIR_SESSIONS_PERSISTED_DIR", "/data/sessions")
		t.Setenv("WAPAIR_SESSIONS_RESUME_ON_START", "false")
		t.Setenv("WAPAIR_LOGGING_LEVEL", "debug")

		cfg, err := Load(configPath)
		require.NoError(t, err)
		assert.Equal(t, "/data/sessions", cfg.Sessions.PersistedDir)
		assert.False(t, cfg.Sessions.ResumeOnStart)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})
}

func TestLoaderSave(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "conf", "wapair.json")
	loader := NewLoader(configPath)

	cfg := DefaultConfig()
	cfg.HTTP.Port = 9090
	cfg.Sessions.PendingDir = "pending"
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, loaded.HTTP.Port)
	assert.Equal(t, "pending", loaded.Sessions.PendingDir)
}
