package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.4, cfg.Search.TextWeight)
	assert.Equal(t, 0.6, cfg.Search.SemanticWeight)
	assert.Equal(t, 0.8, cfg.Search.SingleSourcePenalty)
	assert.Equal(t, 0.85, cfg.Search.ExactThreshold)
	assert.Equal(t, 1500*time.Millisecond, cfg.Search.SemanticTimeout)
	assert.Equal(t, 2, cfg.Jobs.Workers)
	assert.Equal(t, 7*24*time.Hour, cfg.Jobs.Retention)
	assert.Equal(t, 50, cfg.Embedding.BatchSize)
	assert.True(t, cfg.AI.Enabled)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schedex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/schedex
ai:
  enabled: false
search:
  text_weight: 0.5
  semantic_weight: 0.5
  semantic_timeout: 750ms
jobs:
  workers: 4
  retention: 48h
qdrant:
  addr: localhost:6334
`), 0o644))
	t.Chdir(dir)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/schedex", cfg.DataDir)
	assert.False(t, cfg.AI.Enabled)
	assert.Equal(t, 0.5, cfg.Search.TextWeight)
	assert.Equal(t, 750*time.Millisecond, cfg.Search.SemanticTimeout)
	assert.Equal(t, 4, cfg.Jobs.Workers)
	assert.Equal(t, 48*time.Hour, cfg.Jobs.Retention)
	assert.Equal(t, "localhost:6334", cfg.Qdrant.Addr)
	assert.Equal(t, "schedex_items", cfg.Qdrant.Collection, "unset fields keep defaults")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SCHEDEX_JOBS_WORKERS=6\nSCHEDEX_HTTP_ADDR=:7070\n"), 0o644))
	t.Chdir(dir)
	t.Setenv("SCHEDEX_HTTP_ADDR", ":9090")
	// Registers a restore for the variable .env is about to set
	t.Setenv("SCHEDEX_JOBS_WORKERS", "")
	require.NoError(t, os.Unsetenv("SCHEDEX_JOBS_WORKERS"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Jobs.Workers)
	assert.Equal(t, ":9090", cfg.HTTPAddr, "the environment wins over .env")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"SCHEDEX_AI_ENABLED":              "false",
		"SCHEDEX_AI_DIMENSIONS":           "768",
		"SCHEDEX_SEARCH_TEXT_WEIGHT":      "0.3",
		"SCHEDEX_SEARCH_SEMANTIC_TIMEOUT": "2s",
		"SCHEDEX_EMBED_BATCH_SIZE":        "25",
		"SCHEDEX_NATS_URL":                "nats://localhost:4222",
	}))
	require.NoError(t, err)
	assert.False(t, cfg.AI.Enabled)
	assert.Equal(t, 768, cfg.AI.Dimensions)
	assert.Equal(t, 0.3, cfg.Search.TextWeight)
	assert.Equal(t, 2*time.Second, cfg.Search.SemanticTimeout)
	assert.Equal(t, 25, cfg.Embedding.BatchSize)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"SCHEDEX_AI_ENABLED":              "maybe",
		"SCHEDEX_JOBS_WORKERS":            "two",
		"SCHEDEX_SEARCH_TEXT_WEIGHT":      "heavy",
		"SCHEDEX_SEARCH_SEMANTIC_TIMEOUT": "soon",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			err := Default().ApplyEnv(envMap(map[string]string{key: value}))
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no data dir", func(c *Config) { c.DataDir = "" }},
		{"no model", func(c *Config) { c.AI.Model = "" }},
		{"zero weights", func(c *Config) { c.Search.TextWeight, c.Search.SemanticWeight = 0, 0 }},
		{"threshold above one", func(c *Config) { c.Search.ExactThreshold = 1.5 }},
		{"no workers", func(c *Config) { c.Jobs.Workers = 0 }},
		{"batch too large", func(c *Config) { c.Embedding.BatchSize = 101 }},
		{"no retries", func(c *Config) { c.Embedding.MaxRetries = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("disabled AI skips provider checks", func(t *testing.T) {
		cfg := Default()
		cfg.AI.Enabled = false
		cfg.AI.Model = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.AI.Dimensions = 384

	aiCfg := cfg.AIConfig()
	assert.Equal(t, "embeddinggemma", aiCfg.EmbeddingModel)
	assert.Equal(t, 384, aiCfg.Dimensions)

	embed := cfg.EmbedConfig()
	assert.Equal(t, 50, embed.BatchSize)
	assert.Equal(t, 384, embed.Dimensions)

	assert.NoError(t, cfg.SearchConfig().Validate())
}
