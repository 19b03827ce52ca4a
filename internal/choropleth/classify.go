// Package choropleth classifies event counts into color buckets and
// derives the per-feature style of the two overlays.
package choropleth

import "fmt"

// Bucket is a color tier; 0 is the lowest
type Bucket int

// thresholds are the strict lower bounds of buckets 1..7
var thresholds = [...]float64{100, 200, 500, 1000, 2000, 3000, 10000}

// palette runs from lightest (lowest bucket) to darkest
var palette = [...]string{
	"#F48FB1",
	"#F06292",
	"#EC407A",
	"#E91E63",
	"#D81B60",
	"#C2185B",
	"#AD1457",
	"#880E4F",
}

// Lowest and Highest bound the bucket range
const (
	Lowest  Bucket = 0
	Highest Bucket = Bucket(len(thresholds))
)

// Classify maps a count to its bucket. Thresholds are compared with a
// strict greater-than from the top down, so 1000 lands in "> 500".
// NaN and negative counts exceed nothing and fall into the lowest bucket.
func Classify(count float64) Bucket {
	for i := len(thresholds) - 1; i >= 0; i-- {
		if count > thresholds[i] {
			return Bucket(i + 1)
		}
	}
	return Lowest
}

// Color returns the bucket's fill color
func (b Bucket) Color() string {
	if b < Lowest || b > Highest {
		return palette[Lowest]
	}
	return palette[b]
}

// Label is the legend text of a bucket
func (b Bucket) Label() string {
	if b <= Lowest || b > Highest {
		return fmt.Sprintf("≤ %g", thresholds[0])
	}
	return fmt.Sprintf("> %g", thresholds[b-1])
}

// LegendEntry describes one bucket for display
type LegendEntry struct {
	Bucket int    `json:"bucket"`
	Label  string `json:"label"`
	Color  string `json:"color"`
}

// Legend lists every bucket from lowest to highest
func Legend() []LegendEntry {
	entries := make([]LegendEntry, 0, len(palette))
	for b := Lowest; b <= Highest; b++ {
		entries = append(entries, LegendEntry{Bucket: int(b), Label: b.Label(), Color: b.Color()})
	}
	return entries
}
