package kriging

import (
	"math"
)

// Layout splits an NX x NY grid into BlocksX x BlocksY rectangular blocks
type Layout struct {
	NX, NY           int
	BlocksX, BlocksY int
}

// BlockSize returns the nominal block size in grid cells along each axis
func (l Layout) BlockSize() (nxb, nyb int) {
	return blockSize(l.NX, l.BlocksX), blockSize(l.NY, l.BlocksY)
}

func blockSize(n, blocks int) int {
	s := int(math.Floor(float64(n)/float64(blocks) + 0.5))
	if s < 1 {
		return 1
	}
	return s
}

// Interiors returns the interiors of all non-empty blocks. Interiors are
// disjoint and cover the grid: block k spans [k*nxb, (k+1)*nxb) and the
// last block along an axis extends to the grid edge.
func (l Layout) Interiors() []Box {
	nxb, nyb := l.BlockSize()
	boxes := make([]Box, 0, l.BlocksX*l.BlocksY)
	for bx := 0; bx < l.BlocksX; bx++ {
		imin, imax := span(bx, nxb, l.BlocksX, l.NX)
		for by := 0; by < l.BlocksY; by++ {
			jmin, jmax := span(by, nyb, l.BlocksY, l.NY)
			b := Box{IMin: imin, IMax: imax, JMin: jmin, JMax: jmax}
			if !b.Empty() {
				boxes = append(boxes, b)
			}
		}
	}
	return boxes
}

func span(k, size, blocks, n int) (int, int) {
	lo := min(k*size, n)
	if k == blocks-1 {
		return lo, n
	}
	return lo, min((k+1)*size, n)
}
