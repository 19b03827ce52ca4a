// Package mapview owns the map instance and keeps its overlays in step
// with the (input, result) document pair.
package mapview

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/globo/viewer/internal/choropleth"
	"github.com/globo/viewer/internal/domain"
	"github.com/globo/viewer/internal/geomap"
	"github.com/globo/viewer/internal/layer"
)

// ErrUnmounted is returned by operations on a controller without a map
var ErrUnmounted = errors.New("mapview: controller not mounted")

// State of the controller's lifecycle
type State int

const (
	Unmounted State = iota
	MountedEmpty
	MountedPopulated
)

func (s State) String() string {
	switch s {
	case MountedEmpty:
		return "mounted-empty"
	case MountedPopulated:
		return "mounted-populated"
	default:
		return "unmounted"
	}
}

// HoverCountFunc receives the count of a hovered result feature;
// ok is false when the feature carries no numeric count.
type HoverCountFunc func(count float64, ok bool)

// Options configures a controller
type Options struct {
	Map          geomap.Options
	OnHoverCount HoverCountFunc
	Logger       *zap.Logger
}

// Controller is the map view. It exclusively owns the map and both
// overlays while mounted. Not safe for concurrent use.
type Controller struct {
	opts    Options
	layers  *layer.Manager
	logger  *zap.Logger
	m       *geomap.Map
	props   Props
	base    *geomap.Overlay
	result  *geomap.Overlay
	clickID geomap.ListenerID
	lastErr error
	mounted bool
}

// New creates an unmounted controller
func New(layers *layer.Manager, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{opts: opts, layers: layers, logger: logger}
}

// State reports the lifecycle state
func (c *Controller) State() State {
	switch {
	case !c.mounted:
		return Unmounted
	case c.base != nil || c.result != nil:
		return MountedPopulated
	default:
		return MountedEmpty
	}
}

// Props returns the last props received
func (c *Controller) Props() Props { return c.props }

// Err returns the last layer construction error, if any
func (c *Controller) Err() error { return c.lastErr }

// Mount builds the map, binds the diagnostic click listener and renders
// whatever documents props carries.
func (c *Controller) Mount(props Props) error {
	if c.mounted {
		return fmt.Errorf("mapview: already mounted")
	}
	c.m = geomap.New(c.opts.Map)
	c.clickID = c.m.On(geomap.EventClick, c.onMapClick)
	c.mounted = true
	c.props = props
	c.logger.Debug("Map mounted",
		zap.Int("min_zoom", c.opts.Map.MinZoom),
		zap.Int("max_zoom", c.opts.Map.MaxZoom))
	return c.apply(Reconcile(Props{}, props))
}

// Update stores next and, when the result reference changed, removes
// both overlays and recreates them. It reports whether it re-rendered.
func (c *Controller) Update(next Props) (bool, error) {
	if !c.mounted {
		return false, ErrUnmounted
	}
	prev := c.props
	c.props = next
	if !ShouldUpdate(prev, next) {
		return false, nil
	}
	return true, c.apply(Reconcile(prev, next))
}

// Unmount unbinds the click listener and releases the map
func (c *Controller) Unmount() {
	if !c.mounted {
		return
	}
	c.m.Off(geomap.EventClick, c.clickID)
	c.m.Release()
	c.m = nil
	c.base, c.result = nil, nil
	c.mounted = false
	c.logger.Debug("Map unmounted")
}

func (c *Controller) apply(ops []domain.LayerOp) error {
	c.lastErr = nil
	var errs []error
	for _, op := range ops {
		switch op.Kind {
		case domain.OpRemove:
			c.layers.Remove(c.m, c.overlay(op.Role))
			c.setOverlay(op.Role, nil)
		case domain.OpCreate:
			var onHover layer.FeatureHandler
			if op.Role == domain.RoleResult {
				onHover = hoverForwarder(c.opts.OnHoverCount)
			}
			o, err := c.layers.Create(c.m, op.Document, choropleth.StyleFunc(op.Mode), onHover)
			if err != nil {
				c.logger.Warn("Overlay construction failed",
					zap.Stringer("role", op.Role), zap.Error(err))
				errs = append(errs, fmt.Errorf("mapview: %s layer: %w", op.Role, err))
				continue
			}
			c.setOverlay(op.Role, o)
		}
	}
	c.lastErr = errors.Join(errs...)
	return c.lastErr
}

// hoverForwarder captures only the outward callback
func hoverForwarder(cb HoverCountFunc) layer.FeatureHandler {
	if cb == nil {
		return nil
	}
	return func(f *geojson.Feature) {
		cb(layer.OnFeatureHover(f))
	}
}

func (c *Controller) overlay(role domain.Role) *geomap.Overlay {
	if role == domain.RoleResult {
		return c.result
	}
	return c.base
}

func (c *Controller) setOverlay(role domain.Role, o *geomap.Overlay) {
	if role == domain.RoleResult {
		c.result = o
		return
	}
	c.base = o
}

func (c *Controller) onMapClick(geomap.Event) {
	c.logger.Debug("Map clicked",
		zap.Int("input_features", c.props.Input.Len()),
		zap.Int("result_features", c.props.Result.Len()))
}

// Hover dispatches a mouseover to feature index of the role's overlay
func (c *Controller) Hover(role domain.Role, index int) error {
	if !c.mounted {
		return ErrUnmounted
	}
	o := c.overlay(role)
	if o == nil {
		return fmt.Errorf("%w: no %s layer", geomap.ErrNoSuchFeature, role)
	}
	return c.m.HoverFeature(o.ID, index)
}

// Click fires the map-level click
func (c *Controller) Click() error {
	if !c.mounted {
		return ErrUnmounted
	}
	return c.m.Fire(geomap.EventClick)
}

// Layers returns the overlays attached to the map
func (c *Controller) Layers() []*geomap.Overlay {
	if !c.mounted {
		return nil
	}
	return c.m.Layers()
}
