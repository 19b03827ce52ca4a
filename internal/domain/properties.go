package domain

import (
	"encoding/json"
	"math"

	"github.com/paulmach/orb/geojson"
)

// CountProperty is the only feature property the viewer interprets
const CountProperty = "count"

// ValueKind tags a property value
type ValueKind int

const (
	KindNull ValueKind = iota
	KindNumber
	KindString
	KindBool
	KindNested
)

// Value is a GeoJSON property value: number, string, bool, null, or a
// nested object/array kept opaque.
type Value struct {
	kind   ValueKind
	num    float64
	str    string
	flag   bool
	nested any
}

// ValueOf tags a decoded JSON value
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Value{kind: KindNull}
	case float64:
		return Value{kind: KindNumber, num: x}
	case float32:
		return Value{kind: KindNumber, num: float64(x)}
	case int:
		return Value{kind: KindNumber, num: float64(x)}
	case int64:
		return Value{kind: KindNumber, num: float64(x)}
	case uint64:
		return Value{kind: KindNumber, num: float64(x)}
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{kind: KindString, str: x.String()}
		}
		return Value{kind: KindNumber, num: f}
	case string:
		return Value{kind: KindString, str: x}
	case bool:
		return Value{kind: KindBool, flag: x}
	default:
		return Value{kind: KindNested, nested: x}
	}
}

// Kind reports the tag
func (v Value) Kind() ValueKind { return v.kind }

// Number returns the numeric payload; ok is false for every other kind
// and for NaN.
func (v Value) Number() (float64, bool) {
	if v.kind != KindNumber || math.IsNaN(v.num) {
		return 0, false
	}
	return v.num, true
}

// Text returns the string payload
func (v Value) Text() (string, bool) {
	return v.str, v.kind == KindString
}

// Interface returns the untagged value for re-encoding
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBool:
		return v.flag
	case KindNested:
		return v.nested
	default:
		return nil
	}
}

// Properties is a tagged view over a feature's property bag
type Properties map[string]Value

// PropertiesOf tags every property of f
func PropertiesOf(f *geojson.Feature) Properties {
	if f == nil {
		return Properties{}
	}
	props := make(Properties, len(f.Properties))
	for k, v := range f.Properties {
		props[k] = ValueOf(v)
	}
	return props
}

// Count returns the count property when it holds a number
func (p Properties) Count() (float64, bool) {
	v, ok := p[CountProperty]
	if !ok {
		return 0, false
	}
	return v.Number()
}

// CountOf reads a feature's count without tagging the whole bag.
// Missing, non-numeric and NaN counts report ok=false.
func CountOf(f *geojson.Feature) (float64, bool) {
	if f == nil || f.Properties == nil {
		return 0, false
	}
	raw, ok := f.Properties[CountProperty]
	if !ok {
		return 0, false
	}
	return ValueOf(raw).Number()
}
