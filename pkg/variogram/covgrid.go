package variogram

import (
	"fmt"
)

// rangeThreshold is the correlation below which a lag is considered
// outside the range of a covariance grid
const rangeThreshold = 0.05

// CovGrid2D is a precomputed correlation table for integer grid lags.
// It covers lags di in [0, nx) and dj in [-ny, ny).
type CovGrid2D struct {
	cov []float32

	nx, ny int
	dx, dy float64
}

// NewCovGrid2D tabulates the correlation of v on an nx x ny grid with
// spacing dx, dy
func NewCovGrid2D(v *Variogram, nx, ny int, dx, dy float64) (*CovGrid2D, error) {
	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("covariance grid size must be positive, got %dx%d", nx, ny)
	}
	if dx <= 0 || dy <= 0 {
		return nil, fmt.Errorf("covariance grid spacing must be positive, got %g, %g", dx, dy)
	}

	c := &CovGrid2D{
		cov: make([]float32, 2*nx*ny),
		nx:  nx,
		ny:  ny,
		dx:  dx,
		dy:  dy,
	}
	for i := 0; i < nx; i++ {
		for j := -ny; j < ny; j++ {
			c.cov[i*2*ny+ny+j] = float32(v.Corr(float64(i)*dx, float64(j)*dy))
		}
	}
	return c, nil
}

// Cov returns the correlation at lag (di, dj). The table is symmetric
// under (di, dj) -> (-di, -dj).
func (c *CovGrid2D) Cov(di, dj int) float64 {
	if di < 0 {
		di = -di
		dj = -dj
	}
	return float64(c.cov[di*2*c.ny+dj+c.ny])
}

// NX returns the number of tabulated lags along the first axis
func (c *CovGrid2D) NX() int { return c.nx }

// NY returns the number of tabulated lags along the second axis
func (c *CovGrid2D) NY() int { return c.ny }

// DX returns the grid spacing along the first axis
func (c *CovGrid2D) DX() float64 { return c.dx }

// DY returns the grid spacing along the second axis
func (c *CovGrid2D) DY() float64 { return c.dy }

// RangeX returns the largest x lag with correlation of at least 0.05
func (c *CovGrid2D) RangeX() float64 {
	rx := 0.0
	for i := 0; i < c.nx; i++ {
		for j := -c.ny; j < c.ny; j++ {
			if c.cov[i*2*c.ny+c.ny+j] >= rangeThreshold && float64(i)*c.dx > rx {
				rx = float64(i) * c.dx
			}
		}
	}
	return rx
}

// RangeY returns the largest y lag with correlation of at least 0.05
func (c *CovGrid2D) RangeY() float64 {
	ry := 0.0
	for i := 0; i < c.nx; i++ {
		for j := -c.ny; j < c.ny; j++ {
			if c.cov[i*2*c.ny+c.ny+j] >= rangeThreshold && float64(j)*c.dy > ry {
				ry = float64(j) * c.dy
			}
		}
	}
	return ry
}
