// Package spatial provides a uniform grid for broad-phase hit queries on the
// arena floor plane.
//
// The grid stores integer indices (not pointers) in preallocated cells to keep
// per-tick rebuilds allocation free.
package spatial

import (
	"math"
)

// Grid buckets points on the XZ plane into fixed-size cells centred on the
// origin. Points outside the covered square are clamped into the border
// cells, so queries stay correct for any position.
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col])
type Grid struct {
	cellSize    float64
	invCellSize float64 // 1/cellSize for faster division
	halfExtent  float64
	cols, rows  int
	cells       [][]uint32
	scratch     []uint32 // reusable buffer for query results
}

// NewGrid creates a grid covering [-halfExtent, halfExtent] on both axes.
// cellSize should be close to the largest query radius.
func NewGrid(halfExtent, cellSize float64, maxItems int) *Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	if halfExtent <= 0 {
		halfExtent = cellSize
	}
	cols := int(math.Ceil(2 * halfExtent / cellSize))
	if cols < 1 {
		cols = 1
	}
	rows := cols

	cells := make([][]uint32, cols*rows)
	avgPerCell := maxItems / len(cells)
	if avgPerCell < 4 {
		avgPerCell = 4
	}
	for i := range cells {
		cells[i] = make([]uint32, 0, avgPerCell)
	}

	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		halfExtent:  halfExtent,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 64),
	}
}

// Clear resets all cells without releasing their memory
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

func (g *Grid) col(x float64) int {
	c := int(math.Floor((x + g.halfExtent) * g.invCellSize))
	if c < 0 {
		return 0
	}
	if c >= g.cols {
		return g.cols - 1
	}
	return c
}

func (g *Grid) row(z float64) int {
	r := int(math.Floor((z + g.halfExtent) * g.invCellSize))
	if r < 0 {
		return 0
	}
	if r >= g.rows {
		return g.rows - 1
	}
	return r
}

// Insert adds an item index at (x, z)
func (g *Grid) Insert(id uint32, x, z float64) {
	idx := g.row(z)*g.cols + g.col(x)
	g.cells[idx] = append(g.cells[idx], id)
}

// QueryRadius returns every index whose cell overlaps the square around
// (x, z). Candidates may lie outside the radius; callers do the exact test.
//
// The returned slice is reused by the next call.
func (g *Grid) QueryRadius(x, z, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	minCol, maxCol := g.col(x-radius), g.col(x+radius)
	minRow, maxRow := g.row(z-radius), g.row(z+radius)

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}
	return g.scratch
}

// Stats returns occupancy figures for debugging
func (g *Grid) Stats() GridStats {
	var total, maxInCell, nonEmpty int
	for _, cell := range g.cells {
		n := len(cell)
		total += n
		if n > maxInCell {
			maxInCell = n
		}
		if n > 0 {
			nonEmpty++
		}
	}
	return GridStats{
		TotalCells:    len(g.cells),
		NonEmptyCells: nonEmpty,
		TotalItems:    total,
		MaxInCell:     maxInCell,
	}
}

// GridStats contains grid statistics for debugging
type GridStats struct {
	TotalCells    int
	NonEmptyCells int
	TotalItems    int
	MaxInCell     int
}

// Dimensions returns the grid dimensions
func (g *Grid) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}
