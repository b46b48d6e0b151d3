package kriging

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// site is an observation location in the k-d tree. id is the position of
// the observation in its store.
type site struct {
	X, Y float64
	id   int
}

// Compare implements the kdtree.Comparable interface
func (p site) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(site)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p site) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two sites
func (p site) Distance(c kdtree.Comparable) float64 {
	q := c.(site)
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// sites is a collection of site that satisfies kdtree.Interface
type sites []site

func (p sites) Index(i int) kdtree.Comparable         { return p[i] }
func (p sites) Len() int                              { return len(p) }
func (p sites) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p sites) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(sitePlane{sites: p, Dim: d}, kdtree.MedianOfRandoms(sitePlane{sites: p, Dim: d}, 100))
}

// sitePlane implements sort.Interface and kdtree.SortSlicer for sites
type sitePlane struct {
	sites
	kdtree.Dim
}

func (p sitePlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.sites[i].X < p.sites[j].X
	case 1:
		return p.sites[i].Y < p.sites[j].Y
	default:
		panic("illegal dimension")
	}
}

func (p sitePlane) Slice(start, end int) kdtree.SortSlicer {
	return sitePlane{sites: p.sites[start:end], Dim: p.Dim}
}

func (p sitePlane) Swap(i, j int) {
	p.sites[i], p.sites[j] = p.sites[j], p.sites[i]
}

// siteIndex answers rectangle queries over observation locations. The tree
// is built on first use and dropped whenever the store changes, so
// concurrent readers of an unchanged store share one tree.
type siteIndex struct {
	mu   sync.Mutex
	tree *kdtree.Tree
}

// reset drops the tree after the store has been modified
func (x *siteIndex) reset() {
	x.mu.Lock()
	x.tree = nil
	x.mu.Unlock()
}

// get returns the tree, building it from load when necessary
func (x *siteIndex) get(load func() sites) *kdtree.Tree {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.tree == nil {
		x.tree = kdtree.New(load(), false)
	}
	return x.tree
}

// inRect calls fn with the id of every site in [x0, x1) x [y0, y1).
// The tree query uses inclusive bounds and skips subtrees on strict
// comparisons, so it runs on a slightly larger rectangle and the
// half-open test is applied to every hit.
func (x *siteIndex) inRect(load func() sites, x0, x1, y0, y1 float64, fn func(id int)) {
	if !(x1 > x0) || !(y1 > y0) {
		return
	}
	tree := x.get(load)

	mx := margin(x0, x1)
	my := margin(y0, y1)
	bounds := &kdtree.Bounding{
		Min: site{X: x0 - mx, Y: y0 - my},
		Max: site{X: x1 + mx, Y: y1 + my},
	}
	tree.DoBounded(bounds, func(c kdtree.Comparable, _ *kdtree.Bounding, _ int) bool {
		s := c.(site)
		if s.X >= x0 && s.X < x1 && s.Y >= y0 && s.Y < y1 {
			fn(s.id)
		}
		return false
	})
}

func margin(lo, hi float64) float64 {
	m := 1e-6 * math.Max(math.Abs(lo), math.Abs(hi))
	return math.Max(m, 0.5*(hi-lo)*1e-6+1e-9)
}
