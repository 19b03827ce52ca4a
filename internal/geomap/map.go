// Package geomap is an in-memory slippy map: a tile background, overlay
// layers, a viewport and event listeners. A Map is not safe for
// concurrent use; its owner serialises access.
package geomap

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/globo/viewer/pkg/utils"
)

// ErrReleased is returned by operations on a released map
var ErrReleased = errors.New("geomap: map released")

const tileSize = 256

// Options configures a map
type Options struct {
	MinZoom int
	MaxZoom int
	Tiles   *TileLayer
	// Width and Height are the viewport size in pixels
	Width  int
	Height int
}

// DefaultOptions matches the viewer: zoom range [2,20], 1024x768
func DefaultOptions() Options {
	return Options{
		MinZoom: 2,
		MaxZoom: 20,
		Tiles:   DefaultTileLayer(),
		Width:   1024,
		Height:  768,
	}
}

// Viewport is the visible part of the map
type Viewport struct {
	Center orb.Point `json:"center"`
	Zoom   int       `json:"zoom"`
}

// ListenerID identifies a map-level listener for Off
type ListenerID int

// Map holds overlays in attachment order
type Map struct {
	opts      Options
	overlays  []*Overlay
	view      Viewport
	listeners map[string]map[ListenerID]Handler
	nextID    ListenerID
	released  bool
}

// New creates a map centred on 0,0 at the minimum zoom
func New(opts Options) *Map {
	if opts.MaxZoom < opts.MinZoom {
		opts.MaxZoom = opts.MinZoom
	}
	if opts.Width <= 0 {
		opts.Width = 1024
	}
	if opts.Height <= 0 {
		opts.Height = 768
	}
	return &Map{
		opts:      opts,
		view:      Viewport{Zoom: opts.MinZoom},
		listeners: make(map[string]map[ListenerID]Handler),
	}
}

// Options returns the construction options
func (m *Map) Options() Options { return m.opts }

// Released reports whether the map is absent; a nil map counts as released
func (m *Map) Released() bool { return m == nil || m.released }

// AddLayer attaches an overlay; attaching twice is a no-op
func (m *Map) AddLayer(o *Overlay) error {
	if m.Released() {
		return ErrReleased
	}
	if o == nil || m.HasLayer(o) {
		return nil
	}
	m.overlays = append(m.overlays, o)
	return nil
}

// RemoveLayer detaches an overlay and reports whether it was attached
func (m *Map) RemoveLayer(o *Overlay) bool {
	if m == nil || o == nil {
		return false
	}
	for i, cur := range m.overlays {
		if cur == o {
			m.overlays = append(m.overlays[:i], m.overlays[i+1:]...)
			return true
		}
	}
	return false
}

// HasLayer reports whether o is attached
func (m *Map) HasLayer(o *Overlay) bool {
	if m == nil {
		return false
	}
	for _, cur := range m.overlays {
		if cur == o {
			return true
		}
	}
	return false
}

// Layers returns the attached overlays in attachment order
func (m *Map) Layers() []*Overlay {
	if m == nil {
		return nil
	}
	out := make([]*Overlay, len(m.overlays))
	copy(out, m.overlays)
	return out
}

// View returns the current viewport
func (m *Map) View() Viewport { return m.view }

// FitBounds centres on b and picks the highest zoom in range at which b
// fits inside the viewport.
func (m *Map) FitBounds(b orb.Bound) {
	if m.Released() {
		return
	}
	zoom := m.opts.MinZoom
	for z := m.opts.MaxZoom; z >= m.opts.MinZoom; z-- {
		w, h := pixelExtent(b, z)
		if w <= float64(m.opts.Width) && h <= float64(m.opts.Height) {
			zoom = z
			break
		}
	}
	m.view = Viewport{Center: b.Center(), Zoom: zoom}
}

func pixelExtent(b orb.Bound, z int) (float64, float64) {
	nw := maptile.Fraction(orb.Point{b.Min.X(), b.Max.Y()}, maptile.Zoom(z))
	se := maptile.Fraction(orb.Point{b.Max.X(), b.Min.Y()}, maptile.Zoom(z))
	return math.Abs(se.X()-nw.X()) * tileSize, math.Abs(se.Y()-nw.Y()) * tileSize
}

// On registers a map-level listener
func (m *Map) On(event string, h Handler) ListenerID {
	if m.Released() {
		return 0
	}
	m.nextID++
	if m.listeners[event] == nil {
		m.listeners[event] = make(map[ListenerID]Handler)
	}
	m.listeners[event][m.nextID] = h
	return m.nextID
}

// Off removes a map-level listener
func (m *Map) Off(event string, id ListenerID) {
	if m == nil {
		return
	}
	delete(m.listeners[event], id)
}

// Listeners counts map-level listeners for event
func (m *Map) Listeners(event string) int {
	if m == nil {
		return 0
	}
	return len(m.listeners[event])
}

// Fire dispatches a map-level event
func (m *Map) Fire(event string) error {
	if m.Released() {
		return ErrReleased
	}
	for _, h := range m.listeners[event] {
		h(Event{Type: event})
	}
	return nil
}

// HoverFeature dispatches mouseover to one feature of an attached overlay
func (m *Map) HoverFeature(overlayID string, index int) error {
	if m.Released() {
		return ErrReleased
	}
	for _, o := range m.overlays {
		if o.ID == overlayID {
			return o.fire(index, EventMouseOver)
		}
	}
	return ErrNoSuchFeature
}

// VisibleTiles lists the background tile URLs covering the viewport
func (m *Map) VisibleTiles() []string {
	if m.Released() || m.opts.Tiles == nil {
		return nil
	}
	z := int(utils.Clamp(float64(m.view.Zoom), 0, float64(m.opts.Tiles.MaxZoom)))
	c := maptile.Fraction(m.view.Center, maptile.Zoom(z))
	// latitudes past the poles project to NaN
	if math.IsNaN(c.X()) || math.IsNaN(c.Y()) {
		return nil
	}
	halfW := float64(m.opts.Width) / 2 / tileSize
	halfH := float64(m.opts.Height) / 2 / tileSize
	last := float64(int(1)<<uint(z) - 1)

	minX := int(utils.Clamp(math.Floor(c.X()-halfW), 0, last))
	maxX := int(utils.Clamp(math.Floor(c.X()+halfW), 0, last))
	minY := int(utils.Clamp(math.Floor(c.Y()-halfH), 0, last))
	maxY := int(utils.Clamp(math.Floor(c.Y()+halfH), 0, last))

	urls := make([]string, 0, (maxX-minX+1)*(maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			urls = append(urls, m.opts.Tiles.URL(maptile.New(uint32(x), uint32(y), maptile.Zoom(z))))
		}
	}
	return urls
}

// Release detaches every overlay and listener
func (m *Map) Release() {
	if m.Released() {
		return
	}
	for _, o := range m.overlays {
		o.Release()
	}
	m.overlays = nil
	m.listeners = make(map[string]map[ListenerID]Handler)
	m.released = true
}
