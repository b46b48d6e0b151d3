package kriging

import (
	"math"
)

// haloTolerance is the resolution of the halo search on P
const haloTolerance = 0.05

// BoxCounter counts observations in a grid box
type BoxCounter interface {
	CountInBox(b Box) int
}

// HaloParams controls the search for the halo size of a block
type HaloParams struct {
	// PMin and PMax bound the halo size in units of the range
	PMin, PMax float64

	// RX and RY are the covariance ranges in grid cells
	RX, RY int

	// NX and NY are the grid dimensions
	NX, NY int

	// Target is the wanted number of observations in the expanded box
	Target int

	// Tol stops the search once the interval on P is narrower than Tol
	Tol float64
}

// ExpandBox grows b by p*rx cells along i and p*ry cells along j on every
// side, clamped to the grid
func ExpandBox(b Box, p float64, rx, ry, nx, ny int) Box {
	return Box{
		IMin: max(int(math.Floor(float64(b.IMin)-p*float64(rx))), 0),
		IMax: min(int(math.Ceil(float64(b.IMax)+p*float64(rx))), nx),
		JMin: max(int(math.Floor(float64(b.JMin)-p*float64(ry))), 0),
		JMax: min(int(math.Ceil(float64(b.JMax)+p*float64(ry))), ny),
	}
}

// SizeHalo binary searches P in [PMin, PMax] for the halo that holds
// Target observations around interior. The search returns the first trial P
// that hits the target exactly, or the midpoint of the final interval.
// A larger target never gives a smaller P.
func SizeHalo(c BoxCounter, interior Box, hp HaloParams) float64 {
	tol := hp.Tol
	if tol <= 0 {
		tol = haloTolerance
	}

	lo, hi := hp.PMin, hp.PMax
	for {
		p := (lo + hi) / 2
		if hi-lo < tol {
			return p
		}
		n := c.CountInBox(ExpandBox(interior, p, hp.RX, hp.RY, hp.NX, hp.NY))
		switch {
		case n < hp.Target:
			lo = p
		case n > hp.Target:
			hi = p
		default:
			return p
		}
	}
}
