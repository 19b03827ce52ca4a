// Package counts is the embedded counting backend: it turns polygons
// into S2 cell coverings and sums the events recorded inside them.
package counts

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"

	"github.com/globo/viewer/internal/domain"
)

const (
	// MaxPrecision is the leaf cell level, used when no precision is given
	MaxPrecision = 30
	// DefaultMaxCells bounds the size of each covering
	DefaultMaxCells = 512
)

var (
	ErrBadPrecision = errors.New("bad precision")
	ErrMissingStart = errors.New("Missing start date")
	ErrMissingEnd   = errors.New("Missing end date")
	ErrBadDate      = errors.New("bad date")
)

// ParsePrecision reads the precision query value; empty means leaf level
func ParsePrecision(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MaxPrecision, nil
	}
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrBadPrecision, s)
	}
	if p < 1 || p > MaxPrecision {
		return 0, fmt.Errorf("%w: %d is outside 1..%d", ErrBadPrecision, p, MaxPrecision)
	}
	return p, nil
}

// ParseDates checks the inclusive [start, end] day range
func ParseDates(start, end string) error {
	if start == "" {
		return ErrMissingStart
	}
	if end == "" {
		return ErrMissingEnd
	}
	from, err := time.Parse(domain.DateLayout, start)
	if err != nil {
		return fmt.Errorf("%w: start %q", ErrBadDate, start)
	}
	to, err := time.Parse(domain.DateLayout, end)
	if err != nil {
		return fmt.Errorf("%w: end %q", ErrBadDate, end)
	}
	if to.Before(from) {
		return fmt.Errorf("%w: end %s is before start %s", ErrBadDate, end, start)
	}
	return nil
}

// Covering is one polygon's outer ring as an S2 loop plus the cells
// covering it
type Covering struct {
	Loop  *s2.Loop
	Bound s2.Rect
	Cells s2.CellUnion
}

// MinCell is the smallest leaf id under the covering
func (c Covering) MinCell() uint64 {
	if len(c.Cells) == 0 {
		return 0
	}
	return uint64(c.Cells[0].RangeMin())
}

// MaxCell is the largest leaf id under the covering
func (c Covering) MaxCell() uint64 {
	if len(c.Cells) == 0 {
		return 0
	}
	return uint64(c.Cells[len(c.Cells)-1].RangeMax())
}

// Contains reports whether the leaf cell's center lies in the loop.
// Cells outside the loop's bounding rect are rejected first.
func (c Covering) Contains(cellID uint64) bool {
	id := s2.CellID(cellID)
	if !id.IsValid() {
		return false
	}
	if !c.Bound.Contains(s2.CellFromCellID(id).RectBound()) {
		return false
	}
	return c.Loop.ContainsPoint(id.Point())
}

// Cover builds the covering of a polygon's outer ring at level
// precision. Holes are ignored.
func Cover(p orb.Polygon, precision, maxCells int) (Covering, error) {
	if len(p) == 0 {
		return Covering{}, fmt.Errorf("%w: polygon without rings", domain.ErrMalformedDocument)
	}
	ring := p[0]
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	if len(ring) < 3 {
		return Covering{}, fmt.Errorf("%w: ring needs at least 3 distinct vertices", domain.ErrMalformedDocument)
	}

	pts := make([]s2.Point, 0, len(ring))
	for _, pt := range ring {
		pts = append(pts, s2.PointFromLatLng(s2.LatLngFromDegrees(pt.Lat(), pt.Lon())))
	}
	loop := s2.LoopFromPoints(pts)
	// rings of either orientation cover the smaller side
	loop.Normalize()

	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}
	rc := &s2.RegionCoverer{MaxLevel: precision, MaxCells: maxCells}
	cells := rc.Covering(loop)

	return Covering{Loop: loop, Bound: loop.RectBound(), Cells: cells}, nil
}

// cellPolygon is the quad of a cell as a closed lon/lat ring
func cellPolygon(id s2.CellID) orb.Polygon {
	cell := s2.CellFromCellID(id)
	ring := make(orb.Ring, 0, 5)
	for k := 0; k < 4; k++ {
		ll := s2.LatLngFromPoint(cell.Vertex(k))
		ring = append(ring, orb.Point{ll.Lng.Degrees(), ll.Lat.Degrees()})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}
