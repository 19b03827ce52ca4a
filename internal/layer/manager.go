// Package layer owns the lifecycle of GeoJSON overlays on a map:
// construction, styling, attachment, bounds fitting and teardown.
package layer

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/globo/viewer/internal/domain"
	"github.com/globo/viewer/internal/geomap"
	"github.com/globo/viewer/internal/metrics"
)

// Map is the part of a map the manager drives
type Map interface {
	Released() bool
	AddLayer(*geomap.Overlay) error
	RemoveLayer(*geomap.Overlay) bool
	FitBounds(orb.Bound)
}

// FeatureHandler receives the GeoJSON feature an event fired on
type FeatureHandler func(f *geojson.Feature)

// Manager creates and removes overlays
type Manager struct {
	logger *zap.Logger
}

// NewManager creates a new layer manager
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger}
}

// Create builds an overlay for doc and attaches it to target.
// A nil document or an absent map is a no-op returning (nil, nil).
// The hover handler is bound as each feature is constructed, before the
// document is loaded; a nil handler leaves features non-interactive.
// On a malformed document nothing is attached and the viewport is kept.
func (m *Manager) Create(target Map, doc *domain.Document, style domain.StyleFunc, onHover FeatureHandler) (*geomap.Overlay, error) {
	if doc == nil || target == nil || target.Released() {
		return nil, nil
	}

	overlay := geomap.NewOverlay(func(f *geomap.Feature) {
		if onHover == nil {
			return
		}
		f.On(geomap.EventMouseOver, func(e geomap.Event) {
			onHover(e.Feature.GeoJSON)
		})
	})
	if err := overlay.AddData(doc); err != nil {
		overlay.Release()
		metrics.LayerErrorsTotal.Inc()
		return nil, fmt.Errorf("layer: failed to load document: %w", err)
	}
	overlay.SetStyle(style)

	bounds, err := overlay.Bounds()
	if err != nil {
		overlay.Release()
		metrics.LayerErrorsTotal.Inc()
		return nil, fmt.Errorf("layer: %w: %v", domain.ErrMalformedDocument, err)
	}
	if err := target.AddLayer(overlay); err != nil {
		overlay.Release()
		return nil, fmt.Errorf("layer: failed to attach overlay: %w", err)
	}
	target.FitBounds(bounds)

	metrics.LayersCreatedTotal.Inc()
	m.logger.Debug("Overlay created",
		zap.String("id", overlay.ID),
		zap.Int("features", len(overlay.Features())))
	return overlay, nil
}

// Remove detaches overlay from target and releases its handlers.
// Absent overlays and repeated removals are no-ops.
func (m *Manager) Remove(target Map, overlay *geomap.Overlay) {
	if overlay == nil {
		return
	}
	if target != nil && target.RemoveLayer(overlay) {
		metrics.LayersRemovedTotal.Inc()
		m.logger.Debug("Overlay removed", zap.String("id", overlay.ID))
	}
	overlay.Release()
}

// OnFeatureHover extracts the hovered feature's count. It has no side
// effects; propagating the value is the caller's job.
func OnFeatureHover(f *geojson.Feature) (float64, bool) {
	return domain.CountOf(f)
}
