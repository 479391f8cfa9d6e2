package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("BACKEND", "")
	t.Setenv("ITEMS_PER_PAGE", "")
	t.Setenv("DRAFT_TTL", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Backend)
	assert.Equal(t, 10, cfg.ItemsPerPage)
	assert.Equal(t, 24*time.Hour, cfg.DraftTTL)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, "course-content", cfg.StorageBucket)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("BACKEND", "REST")
	t.Setenv("SUPABASE_URL", "https://p.supabase.co")
	t.Setenv("SUPABASE_KEY", "key")
	t.Setenv("ITEMS_PER_PAGE", "25")
	t.Setenv("DRAFT_TTL", "90m")
	t.Setenv("CORS_ORIGINS", "https://a.io, https://b.io ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendREST, cfg.Backend)
	assert.Equal(t, 25, cfg.ItemsPerPage)
	assert.Equal(t, 90*time.Minute, cfg.DraftTTL)
	assert.Equal(t, []string{"https://a.io", "https://b.io"}, cfg.CORSOrigins)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("BACKEND", "rest")
	t.Setenv("SUPABASE_URL", "")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("BACKEND", "mongo")
	_, err = Load()
	assert.Error(t, err)
}
