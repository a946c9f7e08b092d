package entity

import (
	"math"
	"sort"
)

// Point is a pixel coordinate in the source image.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TextRegion is one recognized text fragment as returned by an engine.
type TextRegion struct {
	Text        string   `json:"text"`
	BoundingBox [4]Point `json:"box"`
	Confidence  float64  `json:"confidence"`
}

// Rect returns the axis-aligned bounds of the region's quadrilateral.
func (r TextRegion) Rect() (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range r.BoundingBox {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return minX, minY, maxX, maxY
}

// BoxFromRect builds a clockwise quadrilateral starting at the top-left corner.
func BoxFromRect(x, y, w, h float64) [4]Point {
	return [4]Point{{X: x, Y: y}, {X: x + w, Y: y}, {X: x + w, Y: y + h}, {X: x, Y: y + h}}
}

// ReadingOrder returns region indexes top-to-bottom, then left-to-right.
// A region joins the current line when its vertical center lies within half
// a line height of the line's first region. Regions without geometry keep
// their input order.
func ReadingOrder(regions []TextRegion) []int {
	idx := make([]int, len(regions))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		_, ya, _, _ := regions[idx[a]].Rect()
		_, yb, _, _ := regions[idx[b]].Rect()
		return ya < yb
	})

	var lines [][]int
	var center, height float64
	for _, i := range idx {
		_, y0, _, y1 := regions[i].Rect()
		c, h := (y0+y1)/2, y1-y0
		if len(lines) > 0 && math.Abs(c-center) <= math.Max(height, h)/2 {
			lines[len(lines)-1] = append(lines[len(lines)-1], i)
			continue
		}
		lines = append(lines, []int{i})
		center, height = c, h
	}

	out := make([]int, 0, len(regions))
	for _, line := range lines {
		sort.SliceStable(line, func(a, b int) bool {
			xa, _, _, _ := regions[line[a]].Rect()
			xb, _, _, _ := regions[line[b]].Rect()
			return xa < xb
		})
		out = append(out, line...)
	}
	return out
}
