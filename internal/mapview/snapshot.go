package mapview

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/globo/viewer/internal/choropleth"
	"github.com/globo/viewer/internal/domain"
	"github.com/globo/viewer/internal/geomap"
	"github.com/globo/viewer/pkg/utils"
)

// Snapshot is a paintable picture of the map
type Snapshot struct {
	State    string                   `json:"state"`
	Viewport geomap.Viewport          `json:"viewport"`
	MinZoom  int                      `json:"minZoom"`
	MaxZoom  int                      `json:"maxZoom"`
	Tiles    []string                 `json:"tiles"`
	Overlays []OverlaySnapshot        `json:"overlays"`
	Legend   []choropleth.LegendEntry `json:"legend"`
	Error    string                   `json:"error,omitempty"`
}

// OverlaySnapshot is one attached overlay with resolved styles
type OverlaySnapshot struct {
	ID       string            `json:"id"`
	Role     string            `json:"role"`
	Bounds   [4]float64        `json:"bounds"`
	Features []FeatureSnapshot `json:"features"`
}

// FeatureSnapshot pairs a feature with its resolved style
type FeatureSnapshot struct {
	Index   int              `json:"index"`
	Style   domain.Style     `json:"style"`
	Feature *geojson.Feature `json:"feature"`
}

const coordPlaces = 6

// Snapshot renders the current map; an unmounted controller reports
// only its state.
func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{State: c.State().String(), Legend: choropleth.Legend()}
	if c.lastErr != nil {
		snap.Error = c.lastErr.Error()
	}
	if !c.mounted {
		return snap
	}

	v := c.m.View()
	v.Center = orb.Point{utils.RoundTo(v.Center.X(), coordPlaces), utils.RoundTo(v.Center.Y(), coordPlaces)}
	snap.Viewport = v
	snap.MinZoom = c.opts.Map.MinZoom
	snap.MaxZoom = c.opts.Map.MaxZoom
	snap.Tiles = c.m.VisibleTiles()

	for _, o := range c.m.Layers() {
		role := domain.RoleBase
		if o == c.result {
			role = domain.RoleResult
		}
		entry := OverlaySnapshot{ID: o.ID, Role: role.String()}
		if b, err := o.Bounds(); err == nil {
			entry.Bounds = [4]float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}
		}
		for _, f := range o.Features() {
			entry.Features = append(entry.Features, FeatureSnapshot{Index: f.Index, Style: f.Style, Feature: f.GeoJSON})
		}
		snap.Overlays = append(snap.Overlays, entry)
	}
	return snap
}
