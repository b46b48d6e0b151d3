package kriging

import (
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"trendkrig/internal/models"
	"trendkrig/pkg/variogram"
)

// Both solvers return z(x) = m(x) + k(x) K^-1 (d - m) on the interior of a
// block, where m is the snapshot of the trend taken before kriging. In
// residual mode only k(x) K^-1 (d - m) is written.

// nodalSolver kriges blocks of grid node observations
type nodalSolver struct {
	snapshot  *models.Grid2D
	out       *models.Grid2D
	cov       *variogram.CovGrid2D
	residuals bool
}

func (s *nodalSolver) solve(b *Block[*NodalData]) error {
	d := b.Data
	md := d.Len()
	if md == 0 {
		logrus.Debugf("Block %s has no observations, keeping trend", b.Interior)
		return nil
	}

	is := make([]int, md)
	js := make([]int, md)
	residual := mat.NewVecDense(md, nil)
	for k := 0; k < md; k++ {
		i, j, v := d.Observation(k)
		is[k], js[k] = i, j
		residual.SetVec(k, v-s.snapshot.At(i, j))
	}

	K := mat.NewSymDense(md, nil)
	for a := 0; a < md; a++ {
		for c := 0; c <= a; c++ {
			K.SetSym(c, a, s.cov.Cov(is[a]-is[c], js[a]-js[c]))
		}
	}

	w, err := solveSPD(K, residual)
	if err != nil {
		return &BlockError{Box: b.Interior, NumData: md, Err: err}
	}

	in := b.Interior
	ni := in.IMax - in.IMin
	filled := make([]bool, in.Cells())
	for k := 0; k < md; k++ {
		if !in.Contains(is[k], js[k]) {
			continue
		}
		r := residual.AtVec(k)
		if s.residuals {
			s.out.Set(is[k], js[k], r)
		} else {
			s.out.Set(is[k], js[k], s.snapshot.At(is[k], js[k])+r)
		}
		filled[(is[k]-in.IMin)+(js[k]-in.JMin)*ni] = true
	}

	kv := mat.NewVecDense(md, nil)
	for j := in.JMin; j < in.JMax; j++ {
		for i := in.IMin; i < in.IMax; i++ {
			if filled[(i-in.IMin)+(j-in.JMin)*ni] {
				continue
			}
			for k := 0; k < md; k++ {
				kv.SetVec(k, s.cov.Cov(is[k]-i, js[k]-j))
			}
			inc := mat.Dot(kv, w)
			if s.residuals {
				s.out.Set(i, j, inc)
			} else {
				s.out.Set(i, j, s.snapshot.At(i, j)+inc)
			}
		}
	}
	return nil
}

// continuousSolver kriges blocks of scattered observations
type continuousSolver struct {
	snapshot  *models.Surface
	out       *models.Surface
	vario     *variogram.Variogram
	residuals bool
}

func (s *continuousSolver) solve(b *Block[*ContinuousData]) error {
	d := b.Data
	md := d.Len()
	if md == 0 {
		logrus.Debugf("Block %s has no observations, keeping trend", b.Interior)
		return nil
	}

	xs := make([]float64, md)
	ys := make([]float64, md)
	residual := mat.NewVecDense(md, nil)
	for k := 0; k < md; k++ {
		x, y, v := d.Observation(k)
		xs[k], ys[k] = x, y
		residual.SetVec(k, v-s.snapshot.GetZ(x, y))
	}

	K := mat.NewSymDense(md, nil)
	for a := 0; a < md; a++ {
		for c := 0; c <= a; c++ {
			K.SetSym(c, a, s.vario.Cov(xs[a]-xs[c], ys[a]-ys[c]))
		}
	}

	w, err := solveSPD(K, residual)
	if err != nil {
		return &BlockError{Box: b.Interior, NumData: md, Err: err}
	}

	in := b.Interior
	kv := mat.NewVecDense(md, nil)
	for j := in.JMin; j < in.JMax; j++ {
		y := s.snapshot.YAt(j)
		for i := in.IMin; i < in.IMax; i++ {
			x := s.snapshot.XAt(i)
			for k := 0; k < md; k++ {
				kv.SetVec(k, s.vario.Cov(xs[k]-x, ys[k]-y))
			}
			inc := mat.Dot(kv, w)
			if s.residuals {
				s.out.Set(i, j, inc)
			} else {
				s.out.Set(i, j, s.snapshot.At(i, j)+inc)
			}
		}
	}
	return nil
}
