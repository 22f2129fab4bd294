// Package geom provides 2-D point helpers in logical screen units.
package geom

import "math"

// Point is a position in logical screen units.
type Point struct {
	X, Y float64
}

// Add returns the vector sum of p and o.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// Sub returns the vector difference of p and o.
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// Mul scales p by f.
func (p Point) Mul(f float64) Point {
	return Point{X: p.X * f, Y: p.Y * f}
}

// Dist returns the Euclidean distance between p and o.
func (p Point) Dist(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// Within reports whether p lies inside the closed disc of radius r around c.
func (p Point) Within(c Point, r float64) bool {
	return p.Dist(c) <= r
}

// PathLength sums the segment lengths between consecutive points.
// A path with fewer than two points has length 0.
func PathLength(path []Point) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += path[i].Dist(path[i-1])
	}
	return total
}
