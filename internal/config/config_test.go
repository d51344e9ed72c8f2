package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("X_ACCESS_TOKEN", "")
	t.Setenv("BLUESKY_HANDLE", "")
	t.Setenv("BLUESKY_PASSWORD", "")
	t.Setenv("HISTORY_FILE", "")
	t.Setenv("MAX_GEMINI_REQUESTS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Walter Croncat", cfg.AnchorName)
	assert.Equal(t, 280, cfg.MaxLength)
	assert.Equal(t, "posts_history.json", cfg.HistoryFile)
	assert.True(t, cfg.Dedup.Enabled)
	assert.Equal(t, 48, cfg.Dedup.TopicCooldownHours)
	assert.Equal(t, 0.40, cfg.Dedup.TopicSimilarityThreshold)
	assert.False(t, cfg.EnableX)
	assert.False(t, cfg.EnableBluesky)
}

func TestApplyFile(t *testing.T) {
	t.Run("file overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
content:
  anchor_name: "Kitty Purrific"
  max_length: 250
news:
  max_candidates: 8
deduplication:
  topic_cooldown_hours: 24
  allow_updates: false
`)
		cfg, err := Load()
		require.NoError(t, err)
		require.NoError(t, cfg.applyFile(path))

		assert.Equal(t, "Kitty Purrific", cfg.AnchorName)
		assert.Equal(t, 250, cfg.MaxLength)
		assert.Equal(t, 8, cfg.MaxCandidates)
		assert.Equal(t, 24, cfg.Dedup.TopicCooldownHours)
		assert.False(t, cfg.Dedup.AllowUpdates)
		// Untouched keys keep their defaults.
		assert.Equal(t, 0.40, cfg.Dedup.TopicSimilarityThreshold)
		assert.True(t, cfg.Dedup.Enabled)
	})

	t.Run("missing file keeps defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		require.NoError(t, cfg.applyFile(filepath.Join(t.TempDir(), "missing.yaml")))
		assert.Equal(t, 280, cfg.MaxLength)
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		path := writeConfig(t, "content: [not: valid")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Error(t, cfg.applyFile(path))
	})

	t.Run("explicit false overrides default true", func(t *testing.T) {
		path := writeConfig(t, `
deduplication:
  enabled: false
  url_deduplication: false
`)
		cfg, err := Load()
		require.NoError(t, err)
		require.NoError(t, cfg.applyFile(path))
		assert.False(t, cfg.Dedup.Enabled)
		assert.False(t, cfg.Dedup.URLDeduplication)
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{GeminiAPIKey: "key", EnableX: true}
	}

	t.Run("posting needs a platform", func(t *testing.T) {
		cfg := base()
		cfg.EnableX = false
		assert.Error(t, cfg.Validate(true))
		assert.NoError(t, cfg.Validate(false))
	})

	t.Run("gemini key always required", func(t *testing.T) {
		cfg := base()
		cfg.GeminiAPIKey = ""
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("complete config passes", func(t *testing.T) {
		assert.NoError(t, base().Validate(true))
	})
}
