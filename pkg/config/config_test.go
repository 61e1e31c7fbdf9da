package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1<<20, cfg.Extract.MaxInputBytes)
	assert.Equal(t, "extraction-events", cfg.Kafka.Topics.ExtractionEvents)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9999
knowledgeBase:
  snapshotPath: /tmp/kb.rtkb
  validateOnLoad: true
redis:
  enabled: true
  cacheTTL: 30s
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "/tmp/kb.rtkb", cfg.KnowledgeBase.SnapshotPath)
	assert.True(t, cfg.KnowledgeBase.ValidateOnLoad)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadDevelopmentConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "kb-reload", cfg.Kafka.Topics.KBReload)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.KnowledgeBase.Watch)
	assert.Equal(t, time.Second, cfg.KnowledgeBase.WatchDebounce)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RT_SERVER_PORT", "7070")
	t.Setenv("RT_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("RT_REDIS_ENABLED", "true")
	t.Setenv("RT_KB_SEED_PATH", "/etc/reltime/seed.yaml")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "/etc/reltime/seed.yaml", cfg.KnowledgeBase.SeedPath)
}

func TestSourcePath(t *testing.T) {
	kb := KnowledgeBaseConfig{SeedPath: "seed.yaml"}
	assert.Equal(t, "seed.yaml", kb.SourcePath())
	kb.SnapshotPath = "kb.rtkb"
	assert.Equal(t, "kb.rtkb", kb.SourcePath())
	assert.Empty(t, KnowledgeBaseConfig{}.SourcePath())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)

	t.Setenv("RT_EXTRACT_MAX_INPUT_BYTES", "0")
	_, err = Load("")
	assert.Error(t, err)
}
