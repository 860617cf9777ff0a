package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) LookupEnv {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beatlab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  allowed_origins: ["https://beats.example"]
storage:
  root: /var/lib/beatlab
  signed_url_ttl: 5m
audio:
  sample_rate: 48000
log:
  level: debug
`)
	cfg, err := Load(path, env(nil))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://beats.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "/var/lib/beatlab", cfg.Storage.Root)
	assert.Equal(t, 5*time.Minute, cfg.Storage.SignedURLTTL.Std())
	assert.Equal(t, 48000, cfg.Audio.SampleRate)
	assert.Equal(t, "beatlab.db", cfg.Database, "unset keys keep defaults")

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "database: file.db\nai:\n  model: from-file\n")
	cfg, err := Load(path, env(map[string]string{
		"BEATLAB_DB":              "env.db",
		"BEATLAB_ALLOWED_ORIGINS": "https://a.example, https://b.example,",
		"BEATLAB_SAMPLE_RATE":     "22050",
		"BEATLAB_SIGNED_URL_TTL":  "90s",
		"OPENAI_API_KEY":          "sk-fallback",
	}))
	require.NoError(t, err)

	assert.Equal(t, "env.db", cfg.Database)
	assert.Equal(t, "from-file", cfg.AI.Model)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 22050, cfg.Audio.SampleRate)
	assert.Equal(t, 90*time.Second, cfg.Storage.SignedURLTTL.Std())
	assert.Equal(t, "sk-fallback", cfg.AI.APIKey)
}

func TestLoad_PrefixedKeyWinsOverFallback(t *testing.T) {
	cfg, err := Load("", env(map[string]string{
		"BEATLAB_OPENAI_API_KEY": "sk-beatlab",
		"OPENAI_API_KEY":         "sk-other",
	}))
	require.NoError(t, err)
	assert.Equal(t, "sk-beatlab", cfg.AI.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{"unknown key", "databse: typo.db\n", nil},
		{"bad duration", "storage:\n  signed_url_ttl: soon\n", nil},
		{"bad level", "log:\n  level: loud\n", nil},
		{"zero sample rate", "audio:\n  sample_rate: 0\n", nil},
		{"bad env int", "", map[string]string{"BEATLAB_SAMPLE_RATE": "fast"}},
		{"bad env duration", "", map[string]string{"BEATLAB_SIGNED_URL_TTL": "1 hour"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.body != "" {
				path = writeConfig(t, tt.body)
			}
			_, err := Load(path, env(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
	assert.Error(t, err)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""), env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
