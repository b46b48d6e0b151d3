package kriging

import (
	"io"
	"math"

	"trendkrig/internal/models"
)

// ContinuousData holds observations at arbitrary coordinates. Observations
// are never merged. The grid geometry maps index boxes to coordinates:
// box [IMin, IMax) covers x in [XMin+IMin*DX, XMin+IMax*DX). When the grid
// size is known, box sides on the grid boundary are open ended so points
// beyond the grid edge belong to the boxes along that edge.
type ContinuousData struct {
	xs     []float64
	ys     []float64
	values []float64

	xmin, ymin float64
	dx, dy     float64

	// ni, nj is the grid size, zero when unknown
	ni, nj int

	index siteIndex
}

// NewContinuousData creates an empty store on the grid with origin
// (xmin, ymin) and spacing dx, dy
func NewContinuousData(xmin, ymin, dx, dy float64) *ContinuousData {
	return &ContinuousData{xmin: xmin, ymin: ymin, dx: dx, dy: dy}
}

// NewContinuousDataFromPoints creates a store on the grid of s holding
// every point with a defined value
func NewContinuousDataFromPoints(points []models.Point, s *models.Surface) *ContinuousData {
	d := NewContinuousData(s.XMin, s.YMin, s.DX, s.DY)
	for _, p := range points {
		d.Add(p.X, p.Y, p.Z)
	}
	return d
}

// Add adds an observation at (x, y). Missing values are ignored.
func (d *ContinuousData) Add(x, y, v float64) {
	if v == models.MissingValue {
		return
	}
	d.xs = append(d.xs, x)
	d.ys = append(d.ys, y)
	d.values = append(d.values, v)
	d.index.reset()
}

// Finalize is a no-op since continuous observations are never merged
func (d *ContinuousData) Finalize() {}

// Len returns the number of observations
func (d *ContinuousData) Len() int { return len(d.values) }

// Observation returns the location and value of observation k
func (d *ContinuousData) Observation(k int) (x, y, v float64) {
	return d.xs[k], d.ys[k], d.values[k]
}

// Geometry returns the grid origin and spacing of the store
func (d *ContinuousData) Geometry() (xmin, ymin, dx, dy float64) {
	return d.xmin, d.ymin, d.dx, d.dy
}

// Clone returns a deep copy of the store
func (d *ContinuousData) Clone() *ContinuousData {
	return &ContinuousData{
		xs:     append([]float64(nil), d.xs...),
		ys:     append([]float64(nil), d.ys...),
		values: append([]float64(nil), d.values...),
		xmin:   d.xmin,
		ymin:   d.ymin,
		dx:     d.dx,
		dy:     d.dy,
		ni:     d.ni,
		nj:     d.nj,
	}
}

// onGrid returns a view of the store on an ni x nj grid. The view shares
// the observations and must not be modified.
func (d *ContinuousData) onGrid(ni, nj int) *ContinuousData {
	return &ContinuousData{
		xs:     d.xs,
		ys:     d.ys,
		values: d.values,
		xmin:   d.xmin,
		ymin:   d.ymin,
		dx:     d.dx,
		dy:     d.dy,
		ni:     ni,
		nj:     nj,
	}
}

// NewInstance returns an empty store on the same grid
func (d *ContinuousData) NewInstance() *ContinuousData {
	c := NewContinuousData(d.xmin, d.ymin, d.dx, d.dy)
	c.ni, c.nj = d.ni, d.nj
	return c
}

// CountInBox returns the number of observations inside b
func (d *ContinuousData) CountInBox(b Box) int {
	n := 0
	d.inBox(b, func(int) { n++ })
	return n
}

// AddToBlock copies the observations inside b into dst
func (d *ContinuousData) AddToBlock(dst *ContinuousData, b Box) {
	d.inBox(b, func(k int) {
		dst.Add(d.xs[k], d.ys[k], d.values[k])
	})
}

func (d *ContinuousData) inBox(b Box, fn func(k int)) {
	if b.Empty() || len(d.values) == 0 {
		return
	}
	x0 := d.xmin + float64(b.IMin)*d.dx
	x1 := d.xmin + float64(b.IMax)*d.dx
	y0 := d.ymin + float64(b.JMin)*d.dy
	y1 := d.ymin + float64(b.JMax)*d.dy
	if d.ni > 0 && d.nj > 0 {
		if b.IMin <= 0 {
			x0 = math.Inf(-1)
		}
		if b.IMax >= d.ni {
			x1 = math.Inf(1)
		}
		if b.JMin <= 0 {
			y0 = math.Inf(-1)
		}
		if b.JMax >= d.nj {
			y1 = math.Inf(1)
		}
	}
	d.index.inRect(d.sites, x0, x1, y0, y1, fn)
}

func (d *ContinuousData) sites() sites {
	s := make(sites, len(d.values))
	for k := range s {
		s[k] = site{X: d.xs[k], Y: d.ys[k], id: k}
	}
	return s
}

// WriteTo writes the observations as an x, y, value table
func (d *ContinuousData) WriteTo(w io.Writer) (int64, error) {
	tw := newTableWriter(w)
	for k := range d.values {
		tw.printf("%5.2f %5.2f %10.2f\n", d.xs[k], d.ys[k], d.values[k])
	}
	return tw.flush()
}
