package kriging

// Relative time constants of the block solve. The factorization is cubic in
// the number of observations per block while assembly and grid evaluation
// are quadratic and linear.
const (
	costCholesky = 0.00032
	costAssemble = 0.75088
	costSolve    = 0.12702
	costEvaluate = 1.0
)

// OverallTime estimates the total kriging time for ns blocks holding n
// observations each, evaluated on an nx x ny grid
func OverallTime(n, ns, nx, ny int) float64 {
	fn := float64(n)
	fns := float64(ns)
	return costCholesky*fns*fn*fn*fn +
		costAssemble*fns*fn*fn +
		costSolve*fns*fn*fn +
		costEvaluate*float64(nx)*float64(ny)*fn
}
