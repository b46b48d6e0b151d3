package kriging

import (
	"errors"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// solveSPD solves K w = r by Cholesky factorization. An ill-conditioned
// but factorizable K is reported and its solution used.
func solveSPD(k *mat.SymDense, r *mat.VecDense) (*mat.VecDense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(k); !ok {
		return nil, ErrNotPositiveDefinite
	}

	w := mat.NewVecDense(r.Len(), nil)
	if err := chol.SolveVecTo(w, r); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, err
		}
		logrus.Warnf("Kriging system of %d observations is ill-conditioned (condition number %.3g)", r.Len(), float64(cond))
	}
	return w, nil
}
