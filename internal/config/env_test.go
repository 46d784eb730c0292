package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ragdesk")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbedModel)
	assert.Equal(t, 2*time.Minute, cfg.EmbedTimeout)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ragdesk")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CHUNK_SIZE", "800")
	t.Setenv("EMBED_TIMEOUT", "45s")
	t.Setenv("EMBED_DIM", "not-a-number")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.ChunkSize)
	assert.Equal(t, 45*time.Second, cfg.EmbedTimeout)
	assert.Equal(t, 1536, cfg.EmbedDim)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CorsOrigins)
}

func TestValidateRejectsOverlapAtLeastChunkSize(t *testing.T) {
	cfg := &Config{
		DatabaseURL:       "postgres://localhost/ragdesk",
		JWTSecret:         "secret",
		ChunkSize:         100,
		ChunkOverlap:      100,
		DocServiceTimeout: time.Second,
		EmbedTimeout:      time.Second,
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHUNK_OVERLAP")
}

func TestValidateReportsMissingRequired(t *testing.T) {
	cfg := &Config{ChunkSize: 10, ChunkOverlap: 1, DocServiceTimeout: time.Second, EmbedTimeout: time.Second}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestValidateMemoryStoreSkipsDatabase(t *testing.T) {
	t.Setenv("MEMORY_STORE", "true")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.MemoryStore)
}
