package geomap

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/globo/viewer/internal/domain"
)

// Event names dispatched to features and to the map
const (
	EventMouseOver = "mouseover"
	EventClick     = "click"
)

var (
	ErrNoSuchFeature = errors.New("geomap: no such feature")
	ErrEmptyBounds   = errors.New("geomap: overlay has no bounds")
)

// Event is delivered to feature and map handlers
type Event struct {
	Type    string
	Overlay *Overlay
	Feature *Feature
}

// Handler reacts to an event
type Handler func(Event)

// Feature is one rendered GeoJSON feature of an overlay
type Feature struct {
	Index    int
	GeoJSON  *geojson.Feature
	Style    domain.Style
	bound    orb.Bound
	handlers map[string][]Handler
}

// On binds a handler for an event on this feature
func (f *Feature) On(event string, h Handler) {
	if f.handlers == nil {
		f.handlers = make(map[string][]Handler)
	}
	f.handlers[event] = append(f.handlers[event], h)
}

// Listens reports whether any handler is bound for event
func (f *Feature) Listens(event string) bool {
	return len(f.handlers[event]) > 0
}

// Bound is the feature geometry's bounding box
func (f *Feature) Bound() orb.Bound { return f.bound }

// Overlay is a group of GeoJSON features rendered above the tiles.
// onEach runs for every feature as it is constructed, so features added
// by a bulk load are bound the same way as single ones.
type Overlay struct {
	ID       string
	onEach   func(*Feature)
	features []*Feature
	style    domain.StyleFunc
	released bool
}

// NewOverlay creates an empty overlay
func NewOverlay(onEach func(*Feature)) *Overlay {
	return &Overlay{ID: uuid.NewString(), onEach: onEach}
}

// AddData constructs features from doc. Every feature must carry a
// Polygon or MultiPolygon; on failure no feature of doc is kept.
func (o *Overlay) AddData(doc *domain.Document) error {
	if o.released {
		return fmt.Errorf("geomap: overlay %s released", o.ID)
	}
	built := make([]*Feature, 0, doc.Len())
	for i, gf := range doc.Features() {
		if _, err := domain.Polygons(gf); err != nil {
			return fmt.Errorf("geomap: feature %d: %w", i, err)
		}
		f := &Feature{
			Index:   len(o.features) + i,
			GeoJSON: gf,
			bound:   gf.Geometry.Bound(),
		}
		if o.style != nil {
			f.Style = o.style(gf)
		}
		if o.onEach != nil {
			o.onEach(f)
		}
		built = append(built, f)
	}
	o.features = append(o.features, built...)
	return nil
}

// SetStyle applies fn to every feature, present and future
func (o *Overlay) SetStyle(fn domain.StyleFunc) {
	o.style = fn
	if fn == nil {
		return
	}
	for _, f := range o.features {
		f.Style = fn(f.GeoJSON)
	}
}

// Features returns the constructed features
func (o *Overlay) Features() []*Feature { return o.features }

// Feature returns the feature at index i
func (o *Overlay) Feature(i int) (*Feature, error) {
	if i < 0 || i >= len(o.features) {
		return nil, fmt.Errorf("%w: overlay %s index %d", ErrNoSuchFeature, o.ID, i)
	}
	return o.features[i], nil
}

// Bounds is the union of every feature's bound
func (o *Overlay) Bounds() (orb.Bound, error) {
	if len(o.features) == 0 {
		return orb.Bound{}, ErrEmptyBounds
	}
	b := o.features[0].bound
	for _, f := range o.features[1:] {
		b = b.Union(f.bound)
	}
	return b, nil
}

// Release drops every feature handler. Safe to call repeatedly.
func (o *Overlay) Release() {
	if o.released {
		return
	}
	for _, f := range o.features {
		f.handlers = nil
	}
	o.onEach = nil
	o.released = true
}

// Released reports whether Release ran
func (o *Overlay) Released() bool { return o.released }

func (o *Overlay) fire(index int, event string) error {
	f, err := o.Feature(index)
	if err != nil {
		return err
	}
	ev := Event{Type: event, Overlay: o, Feature: f}
	for _, h := range f.handlers[event] {
		h(ev)
	}
	return nil
}
