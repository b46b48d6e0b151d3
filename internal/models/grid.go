package models

import (
	"math"
)

// MissingValue marks an observation or grid node without a defined value
const MissingValue = 99999.0

// Point represents a scattered observation in the plane
type Point struct {
	X, Y float64

	// Z is the observed value at (X, Y)
	Z float64
}

// Grid2D represents a regular 2D array of values
type Grid2D struct {
	// Data holds the values with i running fastest (index = i + j*NI)
	Data []float64

	// NI and NJ are the number of nodes along the first and second axis
	NI int
	NJ int
}

// NewGrid2D creates a grid of ni x nj nodes with every node set to fill
func NewGrid2D(ni, nj int, fill float64) *Grid2D {
	g := &Grid2D{
		Data: make([]float64, ni*nj),
		NI:   ni,
		NJ:   nj,
	}
	if fill != 0 {
		g.Fill(fill)
	}
	return g
}

// Index returns the position of node (i, j) in Data
func (g *Grid2D) Index(i, j int) int { return i + j*g.NI }

// At returns the value at node (i, j)
func (g *Grid2D) At(i, j int) float64 { return g.Data[i+j*g.NI] }

// Set assigns the value at node (i, j)
func (g *Grid2D) Set(i, j int, v float64) { g.Data[i+j*g.NI] = v }

// InBounds reports whether (i, j) addresses a node of the grid
func (g *Grid2D) InBounds(i, j int) bool {
	return i >= 0 && j >= 0 && i < g.NI && j < g.NJ
}

// Fill sets every node to v
func (g *Grid2D) Fill(v float64) {
	for k := range g.Data {
		g.Data[k] = v
	}
}

// Clone returns a deep copy of the grid
func (g *Grid2D) Clone() *Grid2D {
	c := &Grid2D{
		Data: make([]float64, len(g.Data)),
		NI:   g.NI,
		NJ:   g.NJ,
	}
	copy(c.Data, g.Data)
	return c
}

// Surface is a grid placed in the plane with a regular node spacing.
// Node (i, j) sits at (XMin + i*DX, YMin + j*DY).
type Surface struct {
	Grid2D

	// XMin and YMin locate node (0, 0)
	XMin float64
	YMin float64

	// DX and DY are the node spacings
	DX float64
	DY float64
}

// NewSurface creates a surface of ni x nj nodes with every node set to fill
func NewSurface(ni, nj int, xmin, ymin, dx, dy, fill float64) *Surface {
	return &Surface{
		Grid2D: *NewGrid2D(ni, nj, fill),
		XMin:   xmin,
		YMin:   ymin,
		DX:     dx,
		DY:     dy,
	}
}

// Clone returns a deep copy of the surface
func (s *Surface) Clone() *Surface {
	return &Surface{
		Grid2D: *s.Grid2D.Clone(),
		XMin:   s.XMin,
		YMin:   s.YMin,
		DX:     s.DX,
		DY:     s.DY,
	}
}

// XAt returns the x coordinate of column i
func (s *Surface) XAt(i int) float64 { return s.XMin + float64(i)*s.DX }

// YAt returns the y coordinate of row j
func (s *Surface) YAt(j int) float64 { return s.YMin + float64(j)*s.DY }

// XMax returns the x coordinate of the last column
func (s *Surface) XMax() float64 { return s.XAt(s.NI - 1) }

// YMax returns the y coordinate of the last row
func (s *Surface) YMax() float64 { return s.YAt(s.NJ - 1) }

// IsInside reports whether (x, y) lies within the node extent of the surface
func (s *Surface) IsInside(x, y float64) bool {
	return x >= s.XMin && x <= s.XMax() && y >= s.YMin && y <= s.YMax()
}

// FindIndex returns the node nearest to (x, y). ok is false when the
// nearest node is outside the grid.
func (s *Surface) FindIndex(x, y float64) (i, j int, ok bool) {
	i = int(math.Floor((x-s.XMin)/s.DX + 0.5))
	j = int(math.Floor((y-s.YMin)/s.DY + 0.5))
	return i, j, s.InBounds(i, j)
}

// GetZ returns the bilinear interpolation of the surface at (x, y).
// Points outside the grid take the value of the nearest edge.
func (s *Surface) GetZ(x, y float64) float64 {
	i0, tx := cellPosition((x-s.XMin)/s.DX, s.NI)
	j0, ty := cellPosition((y-s.YMin)/s.DY, s.NJ)

	i1, j1 := i0, j0
	if s.NI > 1 {
		i1 = i0 + 1
	}
	if s.NJ > 1 {
		j1 = j0 + 1
	}

	z00 := s.At(i0, j0)
	z10 := s.At(i1, j0)
	z01 := s.At(i0, j1)
	z11 := s.At(i1, j1)

	return (1-tx)*(1-ty)*z00 + tx*(1-ty)*z10 + (1-tx)*ty*z01 + tx*ty*z11
}

// cellPosition splits a fractional node coordinate into the lower node of
// its cell and the weight of the upper node, clamped to the grid.
func cellPosition(f float64, n int) (int, float64) {
	if n < 2 || f <= 0 {
		return 0, 0
	}
	if f >= float64(n-1) {
		return n - 2, 1
	}
	k := int(math.Floor(f))
	return k, f - float64(k)
}
