package tidy

import "math"

// Valid reports whether the box is finite with x1<x2 and y1<y2.
func (b BBox) Valid() bool {
	for _, v := range [4]float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X2 > b.X1 && b.Y2 > b.Y1
}

// Width returns x2-x1.
func (b BBox) Width() float64 { return b.X2 - b.X1 }

// Height returns y2-y1.
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Area returns the box area, or 0 for a malformed box.
func (b BBox) Area() float64 {
	if !b.Valid() {
		return 0
	}
	return b.Width() * b.Height()
}

// Center returns the box centre.
func (b BBox) Center() (cx, cy float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Union returns the smallest box containing both boxes.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		X1: math.Min(b.X1, o.X1),
		Y1: math.Min(b.Y1, o.Y1),
		X2: math.Max(b.X2, o.X2),
		Y2: math.Max(b.Y2, o.Y2),
	}
}

// IntersectionArea returns the overlapping area of two boxes (0 if disjoint).
func IntersectionArea(a, b BBox) float64 {
	w := math.Min(a.X2, b.X2) - math.Max(a.X1, b.X1)
	h := math.Min(a.Y2, b.Y2) - math.Max(a.Y1, b.Y1)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU is intersection area over union area. It is 0 when either box is
// malformed or the union is empty.
func IoU(a, b BBox) float64 {
	if !a.Valid() || !b.Valid() {
		return 0
	}
	inter := IntersectionArea(a, b)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// OverlapRatio is intersection area over the smaller box area. Unlike IoU it
// reaches 1 when one box lies fully inside the other.
func OverlapRatio(a, b BBox) float64 {
	minArea := math.Min(a.Area(), b.Area())
	if minArea <= 0 {
		return 0
	}
	return IntersectionArea(a, b) / minArea
}

// UnionAll returns the union of the given boxes; the zero box for none.
func UnionAll(boxes []BBox) BBox {
	if len(boxes) == 0 {
		return BBox{}
	}
	u := boxes[0]
	for _, b := range boxes[1:] {
		u = u.Union(b)
	}
	return u
}
