package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/globo/viewer/internal/geomap"
)

// Config holds everything read from the environment
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	LogLevel    string

	// viewer pipeline
	BackendURL     string
	SimplifyPath   string
	CountPath      string
	ResponseOrder  string
	RequestTimeout time.Duration

	// embedded counting backend
	ServeBackend bool
	MaxCells     int

	// map
	TileURL        string
	TileID         string
	TileToken      string
	TileSubdomains []string
	ViewportWidth  int
	ViewportHeight int
}

// Load reads configuration from environment variables
func Load() *Config {
	port := getEnv("PORT", "8080")
	return &Config{
		Port:           port,
		Env:            getEnv("GO_ENV", "development"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		BackendURL:     getEnv("BACKEND_URL", "http://localhost:"+port),
		SimplifyPath:   getEnv("SIMPLIFY_PATH", "/tos2/geojson/multipolygon"),
		CountPath:      getEnv("COUNT_PATH", "/v1/counts/multipolygon"),
		ResponseOrder:  getEnv("RESPONSE_ORDER", "last-arrival"),
		RequestTimeout: time.Duration(getEnvAsInt("REQUEST_TIMEOUT", 30)) * time.Second,
		ServeBackend:   getEnvAsBool("SERVE_BACKEND", true),
		MaxCells:       getEnvAsInt("MAX_CELLS", 512),
		TileURL:        getEnv("TILE_URL", ""),
		TileID:         getEnv("TILE_ID", "mapbox.light"),
		TileToken:      getEnv("TILE_TOKEN", ""),
		TileSubdomains: getEnvAsList("TILE_SUBDOMAINS"),
		ViewportWidth:  getEnvAsInt("VIEWPORT_WIDTH", 1024),
		ViewportHeight: getEnvAsInt("VIEWPORT_HEIGHT", 768),
	}
}

// MapOptions builds the map engine options from the tile and viewport
// settings
func (c *Config) MapOptions() geomap.Options {
	opts := geomap.DefaultOptions()
	tiles := geomap.DefaultTileLayer()
	if c.TileURL != "" {
		tiles.URLTemplate = c.TileURL
	}
	tiles.ID = c.TileID
	tiles.AccessToken = c.TileToken
	tiles.Subdomains = c.TileSubdomains
	opts.Tiles = tiles
	if c.ViewportWidth > 0 {
		opts.Width = c.ViewportWidth
	}
	if c.ViewportHeight > 0 {
		opts.Height = c.ViewportHeight
	}
	return opts
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
