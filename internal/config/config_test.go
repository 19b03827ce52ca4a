package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "BACKEND_URL", "SERVE_BACKEND", "REQUEST_TIMEOUT", "RESPONSE_ORDER", "TILE_URL", "TILE_SUBDOMAINS", "VIEWPORT_WIDTH"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.BackendURL)
	assert.Equal(t, "/tos2/geojson/multipolygon", cfg.SimplifyPath)
	assert.Equal(t, "/v1/counts/multipolygon", cfg.CountPath)
	assert.Equal(t, "last-arrival", cfg.ResponseOrder)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.ServeBackend)

	opts := cfg.MapOptions()
	assert.Equal(t, 1024, opts.Width)
	assert.Equal(t, "mapbox.light", opts.Tiles.ID)
	assert.Nil(t, opts.Tiles.Subdomains)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SERVE_BACKEND", "false")
	t.Setenv("REQUEST_TIMEOUT", "3")
	t.Setenv("VIEWPORT_WIDTH", "not-a-number")
	t.Setenv("VIEWPORT_HEIGHT", "400")
	t.Setenv("TILE_URL", "https://tiles.example/{z}/{x}/{y}.png")
	t.Setenv("TILE_TOKEN", "secret")
	t.Setenv("TILE_SUBDOMAINS", "a, b,,c")

	cfg := Load()
	assert.Equal(t, "http://localhost:9000", cfg.BackendURL)
	assert.False(t, cfg.ServeBackend)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 1024, cfg.ViewportWidth, "bad ints fall back to the default")

	opts := cfg.MapOptions()
	assert.Equal(t, 400, opts.Height)
	assert.Equal(t, "https://tiles.example/{z}/{x}/{y}.png", opts.Tiles.URLTemplate)
	assert.Equal(t, "secret", opts.Tiles.AccessToken)
	assert.Equal(t, []string{"a", "b", "c"}, opts.Tiles.Subdomains)
}
