package screen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/normanking/glance/pkg/types"
)

func box(x, y, w, h float64) *types.BoundingBox {
	return &types.BoundingBox{X: x, Y: y, Width: w, Height: h}
}

func TestRegionForCorners(t *testing.T) {
	vp := types.Viewport{Width: 900, Height: 900}

	cases := []struct {
		name string
		x, y float64
		want Region
	}{
		{"upper left", 100, 100, RegionUpperLeft},
		{"upper center", 450, 100, RegionUpperCenter},
		{"upper right", 800, 100, RegionUpperRight},
		{"middle left", 100, 450, RegionMiddleLeft},
		{"center collapses", 450, 450, RegionCenter},
		{"middle right", 800, 450, RegionMiddleRight},
		{"lower left", 100, 800, RegionLowerLeft},
		{"lower center", 450, 800, RegionLowerCenter},
		{"lower right", 800, 800, RegionLowerRight},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RegionFor(tc.x, tc.y, vp))
		})
	}
}

func TestRegionForClampsOutOfRange(t *testing.T) {
	vp := types.Viewport{Width: 900, Height: 900}

	assert.Equal(t, RegionUpperLeft, RegionFor(-50, -50, vp))
	assert.Equal(t, RegionLowerRight, RegionFor(5000, 5000, vp))
}

func TestBuildIndexSkipsUnboundedElements(t *testing.T) {
	vp := types.Viewport{Width: 900, Height: 900}
	elements := []types.Element{
		{Type: types.ElementButton, Text: "OK", Bounds: box(50, 50, 100, 40)},
		{Type: types.ElementText, Text: "floating text"}, // no bounds
		{Type: types.ElementLink, Text: "Details", Bounds: box(700, 700, 120, 20)},
	}

	index := BuildIndex(elements, vp)

	assert.Len(t, index[RegionUpperLeft], 1)
	assert.Len(t, index[RegionLowerRight], 1)

	total := 0
	for _, els := range index {
		total += len(els)
	}
	assert.Equal(t, 2, total, "unbounded element must appear in no bucket")
}

// Every element with bounds lands in exactly one of the nine buckets,
// regardless of geometry.
func TestRegionBucketingIsTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		vp := types.Viewport{
			Width:  rapid.Float64Range(1, 10000).Draw(t, "vpw"),
			Height: rapid.Float64Range(1, 10000).Draw(t, "vph"),
		}
		b := types.BoundingBox{
			X:      rapid.Float64Range(-1000, 20000).Draw(t, "x"),
			Y:      rapid.Float64Range(-1000, 20000).Draw(t, "y"),
			Width:  rapid.Float64Range(0, 5000).Draw(t, "w"),
			Height: rapid.Float64Range(0, 5000).Draw(t, "h"),
		}

		got := RegionForBounds(b, vp)

		found := false
		for _, r := range Regions {
			if r == got {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("RegionForBounds returned unknown region %q", got)
		}

		// Determinism: same inputs, same bucket.
		if again := RegionForBounds(b, vp); again != got {
			t.Fatalf("bucketing not deterministic: %q then %q", got, again)
		}
	})
}

func TestParseRegion(t *testing.T) {
	cases := []struct {
		query string
		want  Region
	}{
		{"what's in the lower right corner", RegionLowerRight},
		{"click the button in the top left", RegionUpperLeft},
		{"what is at the bottom of the page", RegionLowerCenter},
		{"read the text in the center", RegionCenter},
		{"summarize this page", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseRegion(tc.query), "query: %s", tc.query)
	}
}
