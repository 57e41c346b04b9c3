// Package screen implements the screen-context cache: window identities,
// spatial region indexing, the snapshot cache, and the background actor that
// owns it.
package screen

import (
	"strings"

	"github.com/normanking/glance/pkg/types"
)

// Region is one of the nine spatial buckets of the viewport.
type Region string

const (
	RegionUpperLeft   Region = "upper left"
	RegionUpperCenter Region = "upper center"
	RegionUpperRight  Region = "upper right"
	RegionMiddleLeft  Region = "middle left"
	RegionCenter      Region = "center" // middle band × center band collapses to one label
	RegionMiddleRight Region = "middle right"
	RegionLowerLeft   Region = "lower left"
	RegionLowerCenter Region = "lower center"
	RegionLowerRight  Region = "lower right"
)

// Regions lists all nine buckets.
var Regions = []Region{
	RegionUpperLeft, RegionUpperCenter, RegionUpperRight,
	RegionMiddleLeft, RegionCenter, RegionMiddleRight,
	RegionLowerLeft, RegionLowerCenter, RegionLowerRight,
}

// RegionFor buckets a point into one of the nine regions by dividing the
// viewport into three equal bands on each axis. Points outside the viewport
// clamp to the nearest band.
func RegionFor(x, y float64, vp types.Viewport) Region {
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = types.DefaultViewport
	}

	col := band(x, vp.Width)  // 0=left 1=center 2=right
	row := band(y, vp.Height) // 0=upper 1=middle 2=lower

	if row == 1 && col == 1 {
		return RegionCenter
	}

	vertical := [3]string{"upper", "middle", "lower"}[row]
	horizontal := [3]string{"left", "center", "right"}[col]
	return Region(vertical + " " + horizontal)
}

// band maps a coordinate to one of three equal bands, clamping out-of-range
// values.
func band(v, extent float64) int {
	switch {
	case v < extent/3:
		return 0
	case v < 2*extent/3:
		return 1
	default:
		return 2
	}
}

// RegionForBounds buckets an element's bounding box by its center point.
func RegionForBounds(b types.BoundingBox, vp types.Viewport) Region {
	cx, cy := b.Center()
	return RegionFor(cx, cy, vp)
}

// BuildIndex partitions elements into the nine region buckets. Elements
// without bounds are excluded from the index but remain in the caller's flat
// list.
func BuildIndex(elements []types.Element, vp types.Viewport) map[Region][]types.Element {
	index := make(map[Region][]types.Element)
	for _, el := range elements {
		if el.Bounds == nil {
			continue
		}
		r := RegionForBounds(*el.Bounds, vp)
		index[r] = append(index[r], el)
	}
	return index
}

// spatial phrases recognized in queries, longest first so "upper left"
// wins over a lone "left".
var regionPhrases = []struct {
	phrase string
	region Region
}{
	{"upper left", RegionUpperLeft},
	{"top left", RegionUpperLeft},
	{"upper right", RegionUpperRight},
	{"top right", RegionUpperRight},
	{"lower left", RegionLowerLeft},
	{"bottom left", RegionLowerLeft},
	{"lower right", RegionLowerRight},
	{"bottom right", RegionLowerRight},
	{"upper center", RegionUpperCenter},
	{"lower center", RegionLowerCenter},
	{"middle left", RegionMiddleLeft},
	{"middle right", RegionMiddleRight},
	{"top", RegionUpperCenter},
	{"upper", RegionUpperCenter},
	{"bottom", RegionLowerCenter},
	{"lower", RegionLowerCenter},
	{"left", RegionMiddleLeft},
	{"right", RegionMiddleRight},
	{"center", RegionCenter},
	{"middle", RegionCenter},
}

// ParseRegion extracts a target region from a query, or "" when the query
// names no screen location.
func ParseRegion(query string) Region {
	q := strings.ToLower(query)
	for _, rp := range regionPhrases {
		if strings.Contains(q, rp.phrase) {
			return rp.region
		}
	}
	return ""
}
