package transform

import "servicegraph/internal/domain"

// Default stroke widths for the lightest and heaviest edge
const (
	DefaultMinWidth = 1.0
	DefaultMaxWidth = 6.0
)

// EdgeWidths maps every edge to a width linearly interpolated between
// minWidth and maxWidth by its volume relative to the observed range.
// When all volumes are equal every edge gets minWidth.
func EdgeWidths(edges map[domain.EdgeKey]domain.RenderEdge, minWidth, maxWidth float64) map[domain.EdgeKey]float64 {
	widths := make(map[domain.EdgeKey]float64, len(edges))
	if len(edges) == 0 {
		return widths
	}

	first := true
	var lo, hi int
	for _, e := range edges {
		if first || e.Volume < lo {
			lo = e.Volume
		}
		if first || e.Volume > hi {
			hi = e.Volume
		}
		first = false
	}

	span := float64(hi - lo)
	for k, e := range edges {
		t := 0.0
		if span > 0 {
			t = float64(e.Volume-lo) / span
		}
		widths[k] = Lerp(minWidth, maxWidth, t)
	}
	return widths
}

// Lerp interpolates between a and b
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
