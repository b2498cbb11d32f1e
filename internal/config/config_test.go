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
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
ai:
  providers:
    - id: main
      type: OpenAI-Compatible
      api_key: sk-test
      endpoint: https://gateway.example.com
      default_model: gpt-test
      enabled: true
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 2333, cfg.Port)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, 30, cfg.Cache.Days)
	assert.Equal(t, 20, cfg.Retrieval.TopKPerSection)
	assert.Equal(t, 8, cfg.Retrieval.TopKAccepted)
	assert.Equal(t, 5, cfg.Discuss.SearchTopK)
	assert.Equal(t, 10, cfg.Discuss.HistoryWindow)
	assert.Equal(t, "zh", cfg.Discuss.TargetLanguage)
	assert.Equal(t, "zh", cfg.Overview.TargetLanguage)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+"\nnot_a_field: 1\n"))
	require.Error(t, err)
}

func TestLoadRejectsUnknownModelProvider(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
  chat_model:
    provider_id: missing
    model: gpt-test
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestLoadDefaultCollectionFallsBackToFirst(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
vector:
  endpoint: http://localhost:19530
  collections:
    - name: papers
      description: academic articles
    - name: reports
      description: industry reports
`))
	require.NoError(t, err)
	assert.Equal(t, "papers", cfg.Vector.DefaultCollection)
}

func TestEmbeddingProviderResolution(t *testing.T) {
	ai := AIConfig{
		Providers: []AIProvider{
			{ID: "disabled", Enabled: false},
			{ID: "main", Enabled: true, Endpoint: "https://a.example.com"},
			{ID: "embed", Enabled: true, Endpoint: "https://b.example.com"},
		},
		Embedding: &AIModelAssignment{ProviderID: "embed", Model: "text-embedding-3-small"},
	}

	provider, model := ai.EmbeddingProvider()
	require.NotNil(t, provider)
	assert.Equal(t, "embed", provider.ID)
	assert.Equal(t, "text-embedding-3-small", model)

	ai.Embedding = nil
	provider, model = ai.EmbeddingProvider()
	require.NotNil(t, provider)
	assert.Equal(t, "main", provider.ID)
	assert.Empty(t, model)
}

func TestRedisURLValue(t *testing.T) {
	assert.Equal(t, "redis://cache.example.com:6380/2",
		RedisRuntimeConfig{Host: "cache.example.com", Port: 6380, DB: 2}.URLValue())
	assert.Equal(t, "redis://explicit:6379",
		RedisRuntimeConfig{URL: "redis://explicit:6379"}.URLValue())
	assert.Equal(t, "redis://bare-host:6379",
		RedisRuntimeConfig{URL: "bare-host:6379"}.URLValue())
}
