package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_PASSWORD", "password")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_DB", "")
	t.Setenv("PORT", "")
	t.Setenv("SHUTDOWN_TIMEOUT", "")
	t.Setenv("ENGINE_L2_SIZE", "")
	t.Setenv("ENGINE_L3_ENABLED", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 0, cfg.Redis.RedisDB)
	assert.True(t, cfg.Engine.L3Enabled)
	assert.Equal(t, 10000, cfg.Engine.L2Size)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ENGINE_L3_ENABLED", "false")
	t.Setenv("CORS_ALLOW_ORIGINS", " https://a.example , https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 3, cfg.Redis.RedisDB)
	assert.False(t, cfg.Engine.L3Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowOrigins)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "password")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_DB", "first")
	_, err := Load()
	assert.Error(t, err)
}

type engineDoc struct {
	Threshold float64       `yaml:"confidence_threshold"`
	Timeout   time.Duration `yaml:"request_timeout"`
	Max       int           `yaml:"max_recommendations"`
}

func TestLoadYAMLOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("confidence_threshold: 0.4\nrequest_timeout: 2s\n"), 0o600))

	doc := engineDoc{Threshold: 0.3, Timeout: time.Second, Max: 5}
	require.NoError(t, LoadYAML(path, &doc))

	assert.Equal(t, 0.4, doc.Threshold)
	assert.Equal(t, 2*time.Second, doc.Timeout)
	assert.Equal(t, 5, doc.Max)
}

func TestLoadYAMLEmptyPath(t *testing.T) {
	doc := engineDoc{Max: 5}
	require.NoError(t, LoadYAML("", &doc))
	assert.Equal(t, 5, doc.Max)
}

func TestLoadYAMLMissingFile(t *testing.T) {
	assert.Error(t, LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"), &engineDoc{}))
}
