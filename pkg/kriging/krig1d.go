package kriging

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"trendkrig/pkg/variogram"
)

// Krig1D kriges field in place along one axis with spacing dx. known marks
// the positions of the observations obs, in order. Known positions are set
// to their observation and the others get the kriged residual added.
func Krig1D(field []float64, known []bool, obs []float64, dx float64, v *variogram.Variogram) error {
	if len(field) != len(known) {
		return fmt.Errorf("%w: %d field values and %d known flags", ErrSizeMismatch, len(field), len(known))
	}
	if v == nil {
		return fmt.Errorf("%w: nil variogram", ErrInvalidInput)
	}

	xKnown := make([]float64, 0, len(obs))
	for i, k := range known {
		if k {
			xKnown = append(xKnown, float64(i)*dx)
		}
	}
	if len(xKnown) != len(obs) {
		return fmt.Errorf("%w: %d known positions and %d observations", ErrSizeMismatch, len(xKnown), len(obs))
	}
	n := len(obs)
	if n == 0 {
		return nil
	}

	residual := mat.NewVecDense(n, nil)
	j := 0
	for i, k := range known {
		if k {
			residual.SetVec(j, obs[j]-field[i])
			j++
		}
	}

	K := mat.NewSymDense(n, nil)
	for a := 0; a < n; a++ {
		for c := 0; c <= a; c++ {
			K.SetSym(c, a, v.Corr1D(xKnown[a]-xKnown[c]))
		}
	}

	w, err := solveSPD(K, residual)
	if err != nil {
		return err
	}

	kv := mat.NewVecDense(n, nil)
	j = 0
	for i, k := range known {
		if k {
			field[i] = obs[j]
			j++
			continue
		}
		x := float64(i) * dx
		for a := 0; a < n; a++ {
			kv.SetVec(a, v.Corr1D(xKnown[a]-x))
		}
		field[i] += mat.Dot(kv, w)
	}
	return nil
}
