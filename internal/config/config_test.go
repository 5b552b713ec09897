package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	cfg := FromViper(New())

	assert.Equal(t, ":8602", cfg.API.Addr)
	assert.Equal(t, int64(20<<20), cfg.API.MaxUploadBytes)
	assert.Equal(t, []string{"http://localhost:4200"}, cfg.API.AllowedOrigins)
	assert.Equal(t, "standard", cfg.Model.Alignment)
	assert.Equal(t, "bilinear", cfg.Model.Resampler)
	assert.Equal(t, int64(1)<<30, cfg.Model.MaxPixels)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.False(t, cfg.Archive.Enabled)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("MODEL_ALIGNMENT", "fine")
	t.Setenv("STYLIZER_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("ARCHIVE_ENABLED", "true")
	t.Setenv("MODEL_MAX_PIXELS", "4096")

	cfg := FromViper(New())

	assert.Equal(t, "fine", cfg.Model.Alignment)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, int64(4096), cfg.Model.MaxPixels)
}
