package kriging

import (
	"io"

	"github.com/sirupsen/logrus"

	"trendkrig/internal/models"
)

type node struct{ i, j int }

// NodalData holds observations located at grid nodes. Observations added
// at the same node are summed and averaged by Finalize.
type NodalData struct {
	is     []int
	js     []int
	values []float64
	counts []int

	// lookup maps a node to its observation
	lookup map[node]int

	// pending counts observations with unmerged contributions
	pending int

	index siteIndex
}

// NewNodalData creates an empty nodal store
func NewNodalData() *NodalData {
	return &NodalData{lookup: make(map[node]int)}
}

// NewNodalDataFromPoints snaps scattered points to the nearest node of s
// and returns a finalized store. Points outside the surface and missing
// values are skipped.
func NewNodalDataFromPoints(points []models.Point, s *models.Surface) *NodalData {
	d := NewNodalData()
	skipped := 0
	for _, p := range points {
		i, j, ok := s.FindIndex(p.X, p.Y)
		if !ok {
			skipped++
			continue
		}
		d.Add(i, j, p.Z)
	}
	if skipped > 0 {
		logrus.Debugf("Skipped %d observations outside the grid", skipped)
	}
	d.Finalize()
	return d
}

// Add adds an observation at node (i, j). Missing values are ignored.
func (d *NodalData) Add(i, j int, v float64) {
	if v == models.MissingValue {
		return
	}
	if k, ok := d.lookup[node{i, j}]; ok {
		d.values[k] += v
		d.counts[k]++
		if d.counts[k] == 2 {
			d.pending++
		}
		return
	}
	d.lookup[node{i, j}] = len(d.values)
	d.is = append(d.is, i)
	d.js = append(d.js, j)
	d.values = append(d.values, v)
	d.counts = append(d.counts, 1)
	d.index.reset()
}

// Finalize divides merged sums by their counts
func (d *NodalData) Finalize() {
	if d.pending == 0 {
		return
	}
	for k, c := range d.counts {
		if c > 1 {
			d.values[k] /= float64(c)
			d.counts[k] = 1
		}
	}
	d.pending = 0
}

// Finalized reports whether every observation has been merged
func (d *NodalData) Finalized() bool { return d.pending == 0 }

// Len returns the number of observed nodes
func (d *NodalData) Len() int { return len(d.values) }

// Observation returns the node and value of observation k
func (d *NodalData) Observation(k int) (i, j int, v float64) {
	return d.is[k], d.js[k], d.values[k]
}

// Count returns the number of contributions merged into observation k
func (d *NodalData) Count(k int) int { return d.counts[k] }

// Value returns the observation at node (i, j)
func (d *NodalData) Value(i, j int) (float64, bool) {
	k, ok := d.lookup[node{i, j}]
	if !ok {
		return 0, false
	}
	return d.values[k], true
}

// Clone returns a deep copy of the store
func (d *NodalData) Clone() *NodalData {
	c := &NodalData{
		is:      append([]int(nil), d.is...),
		js:      append([]int(nil), d.js...),
		values:  append([]float64(nil), d.values...),
		counts:  append([]int(nil), d.counts...),
		lookup:  make(map[node]int, len(d.lookup)),
		pending: d.pending,
	}
	for n, k := range d.lookup {
		c.lookup[n] = k
	}
	return c
}

// NewInstance returns an empty nodal store
func (d *NodalData) NewInstance() *NodalData { return NewNodalData() }

// CountInBox returns the number of observed nodes inside b
func (d *NodalData) CountInBox(b Box) int {
	n := 0
	d.inBox(b, func(int) { n++ })
	return n
}

// AddToBlock copies the observations inside b into dst
func (d *NodalData) AddToBlock(dst *NodalData, b Box) {
	d.inBox(b, func(k int) {
		for c := 0; c < d.counts[k]; c++ {
			dst.Add(d.is[k], d.js[k], d.values[k]/float64(d.counts[k]))
		}
	})
}

func (d *NodalData) inBox(b Box, fn func(k int)) {
	if b.Empty() || len(d.values) == 0 {
		return
	}
	d.index.inRect(d.sites, float64(b.IMin), float64(b.IMax), float64(b.JMin), float64(b.JMax), fn)
}

func (d *NodalData) sites() sites {
	s := make(sites, len(d.values))
	for k := range s {
		s[k] = site{X: float64(d.is[k]), Y: float64(d.js[k]), id: k}
	}
	return s
}

// WriteTo writes the observations as an i, j, value table
func (d *NodalData) WriteTo(w io.Writer) (int64, error) {
	tw := newTableWriter(w)
	for k := range d.values {
		tw.printf("%5d %5d %10.2f\n", d.is[k], d.js[k], d.values[k])
	}
	return tw.flush()
}
