package tui

import (
	"math"

	"github.com/verte-zerg/fitts/internal/geom"
)

// Layout maps terminal cells to logical screen units. The middle cell of the
// play area maps to Center, and every cell stands for the logical point at its
// own center.
type Layout struct {
	Center geom.Point
	CellW  float64
	CellH  float64
	Cols   int
	Rows   int
}

func (l Layout) midCol() int { return l.Cols / 2 }
func (l Layout) midRow() int { return l.Rows / 2 }

// ToLogical converts a cell coordinate to logical units.
func (l Layout) ToLogical(col, row int) geom.Point {
	return geom.Point{
		X: l.Center.X + float64(col-l.midCol())*l.CellW,
		Y: l.Center.Y + float64(row-l.midRow())*l.CellH,
	}
}

// ToCell returns the cell whose center is nearest to p.
func (l Layout) ToCell(p geom.Point) (col, row int) {
	col = l.midCol() + int(math.Round((p.X-l.Center.X)/l.CellW))
	row = l.midRow() + int(math.Round((p.Y-l.Center.Y)/l.CellH))
	return col, row
}

// Contains reports whether the cell lies in the play area.
func (l Layout) Contains(col, row int) bool {
	return col >= 0 && row >= 0 && col < l.Cols && row < l.Rows
}

// Fits reports whether a disc of radius r at p lies fully inside the play area.
func (l Layout) Fits(p geom.Point, r float64) bool {
	minCol, minRow := l.ToCell(geom.Point{X: p.X - r, Y: p.Y - r})
	maxCol, maxRow := l.ToCell(geom.Point{X: p.X + r, Y: p.Y + r})
	return l.Contains(minCol, minRow) && l.Contains(maxCol, maxRow)
}

// Disc returns the cells whose logical centers lie within r of p; clicking
// any of them registers inside the disc.
func (l Layout) Disc(p geom.Point, r float64) map[[2]int]struct{} {
	cells := make(map[[2]int]struct{})
	c0, r0 := l.ToCell(p)
	spanC := int(math.Ceil(r/l.CellW)) + 1
	spanR := int(math.Ceil(r/l.CellH)) + 1
	for row := r0 - spanR; row <= r0+spanR; row++ {
		for col := c0 - spanC; col <= c0+spanC; col++ {
			if !l.Contains(col, row) {
				continue
			}
			if l.ToLogical(col, row).Within(p, r) {
				cells[[2]int{col, row}] = struct{}{}
			}
		}
	}
	if len(cells) == 0 && l.Contains(c0, r0) {
		// Targets smaller than a cell still need one clickable cell; a click
		// there may land outside the disc and counts as a miss.
		cells[[2]int{c0, r0}] = struct{}{}
	}
	return cells
}
