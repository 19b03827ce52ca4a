package choropleth

import (
	"github.com/paulmach/orb/geojson"

	"github.com/globo/viewer/internal/domain"
)

// BaseStyle outlines the original input boundary
var BaseStyle = domain.Style{
	Color:       "#607d8b",
	Weight:      1,
	Opacity:     0.5,
	FillColor:   "#607d8b",
	FillOpacity: 0,
}

// resultFillOpacity is the default polygon fill; with a zero stroke the
// fill is what carries the bucket color.
const resultFillOpacity = 0.2

// StyleFor resolves a feature's style. Result mode never fails: a
// missing or malformed count is classified as the lowest bucket.
func StyleFor(mode domain.StyleMode, f *geojson.Feature) domain.Style {
	if mode != domain.StyleResult {
		return BaseStyle
	}
	color := BucketOf(f).Color()
	return domain.Style{
		Color:       color,
		Weight:      0,
		Opacity:     1,
		FillColor:   color,
		FillOpacity: resultFillOpacity,
	}
}

// BucketOf classifies a feature by its count property
func BucketOf(f *geojson.Feature) Bucket {
	count, ok := domain.CountOf(f)
	if !ok {
		return Lowest
	}
	return Classify(count)
}

// StyleFunc binds a mode into a layer style function
func StyleFunc(mode domain.StyleMode) domain.StyleFunc {
	return func(f *geojson.Feature) domain.Style {
		return StyleFor(mode, f)
	}
}
