package geomap

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
)

// TileLayer is the raster background; the map only needs it to produce
// tile URLs.
type TileLayer struct {
	// URLTemplate uses {z}/{x}/{y} placeholders plus optional {s}, {id}
	// and {token}
	URLTemplate string
	// Subdomains fill {s}, picked per tile
	Subdomains  []string
	ID          string
	AccessToken string
	MaxZoom     int
	Attribution string
}

const defaultTileURL = "https://api.tiles.mapbox.com/v4/{id}/{z}/{x}/{y}.png?access_token={token}"

// DefaultTileLayer is the light mapbox style
func DefaultTileLayer() *TileLayer {
	return &TileLayer{
		URLTemplate: defaultTileURL,
		ID:          "mapbox.light",
		MaxZoom:     15,
		Attribution: "mapbox",
	}
}

// URL expands the template for one tile
func (t *TileLayer) URL(tile maptile.Tile) string {
	sub := ""
	if n := len(t.Subdomains); n > 0 {
		sub = t.Subdomains[(uint64(tile.X)+uint64(tile.Y))%uint64(n)]
	}
	r := strings.NewReplacer(
		"{s}", sub,
		"{z}", strconv.Itoa(int(tile.Z)),
		"{x}", strconv.FormatUint(uint64(tile.X), 10),
		"{y}", strconv.FormatUint(uint64(tile.Y), 10),
		"{id}", t.ID,
		"{token}", t.AccessToken,
	)
	return r.Replace(t.URLTemplate)
}
