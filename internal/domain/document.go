package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrMalformedDocument is returned when a payload is not usable GeoJSON
var ErrMalformedDocument = errors.New("malformed geojson document")

// Document is a parsed GeoJSON document.
// Documents are compared by pointer: every parse yields a new *Document,
// so a changed response is always a changed reference.
type Document struct {
	Collection *geojson.FeatureCollection
	raw        []byte
}

// ParseDocument accepts a FeatureCollection, a single Feature or a bare
// geometry and normalises it into a FeatureCollection.
func ParseDocument(data []byte) (*Document, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	fc := geojson.NewFeatureCollection()
	switch strings.ToLower(head.Type) {
	case "featurecollection":
		parsed, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		fc = parsed
	case "feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		fc.Append(f)
	case "polygon", "multipolygon", "point", "multipoint", "linestring", "multilinestring", "geometrycollection":
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		fc.Append(geojson.NewFeature(g.Geometry()))
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedDocument)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedDocument, head.Type)
	}

	raw := make([]byte, len(data))
	copy(raw, data)
	return &Document{Collection: fc, raw: raw}, nil
}

// NewDocument wraps an already built collection
func NewDocument(fc *geojson.FeatureCollection) *Document {
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	return &Document{Collection: fc}
}

// Features returns the document's features; nil-safe.
func (d *Document) Features() []*geojson.Feature {
	if d == nil || d.Collection == nil {
		return nil
	}
	return d.Collection.Features
}

// Len returns the number of features
func (d *Document) Len() int {
	return len(d.Features())
}

// Bytes returns the payload to forward upstream: the original bytes when
// the document was parsed, otherwise its canonical encoding.
func (d *Document) Bytes() ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	if d.raw != nil {
		return d.raw, nil
	}
	return d.MarshalJSON()
}

// MarshalJSON encodes the normalised FeatureCollection
func (d *Document) MarshalJSON() ([]byte, error) {
	if d == nil || d.Collection == nil {
		return []byte("null"), nil
	}
	return d.Collection.MarshalJSON()
}

// Polygons flattens a feature's geometry into polygons.
// Only Polygon and MultiPolygon geometries are accepted.
func Polygons(f *geojson.Feature) ([]orb.Polygon, error) {
	if f == nil || f.Geometry == nil {
		return nil, fmt.Errorf("%w: feature without geometry", ErrMalformedDocument)
	}
	switch g := f.Geometry.(type) {
	case orb.Polygon:
		return []orb.Polygon{g}, nil
	case orb.MultiPolygon:
		return []orb.Polygon(g), nil
	default:
		return nil, fmt.Errorf("%w: unsupported geometry %s", ErrMalformedDocument, f.Geometry.GeoJSONType())
	}
}
