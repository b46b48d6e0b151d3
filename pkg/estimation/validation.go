package estimation

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"trendkrig/internal/models"
	"trendkrig/pkg/kriging"
	"trendkrig/pkg/variogram"
)

// ValidationMetrics holds the cross-validation quality metrics of a kriging
// setup. Every observation is predicted once from a surface kriged without
// it, and the predictions are compared with the observed values.
type ValidationMetrics struct {
	// N is the number of observations that received a prediction. Points
	// outside the grid are not counted.
	N int

	// RMSE (Root Mean Square Error) measures the average squared difference
	// between observed and predicted values. Lower values indicate a better
	// fit of the variogram and trend.
	RMSE float64

	// MAE (Mean Absolute Error) is the average absolute prediction error,
	// less sensitive to single outliers than RMSE.
	MAE float64

	// Bias is the mean of predicted minus observed values. A value far from
	// zero points to a trend that is systematically too high or too low.
	Bias float64

	// Correlation is the Pearson correlation between observed and predicted
	// values, ranging from -1 to 1.
	Correlation float64
}

// CrossValidate runs k-fold cross-validation. Points are shuffled with a
// fixed seed, split into folds, and each fold is predicted from a copy of
// prior kriged with the remaining points. Folds run concurrently, each
// kriging on a single worker.
func CrossValidate(ctx context.Context, prior *models.Surface, points []models.Point, v *variogram.Variogram, opts kriging.Options, folds int) (ValidationMetrics, error) {
	var inside []models.Point
	for _, p := range points {
		if p.Z != models.MissingValue && prior.IsInside(p.X, p.Y) {
			inside = append(inside, p)
		}
	}
	if folds < 2 || folds > len(inside) {
		return ValidationMetrics{}, fmt.Errorf("%w: %d folds for %d observations", kriging.ErrInvalidInput, folds, len(inside))
	}

	order := rand.New(rand.NewSource(1)).Perm(len(inside))
	predicted := make([]float64, len(inside))

	foldWorkers := opts.Workers
	if foldWorkers <= 0 {
		foldWorkers = kriging.DefaultOptions().Workers
	}
	opts.Workers = 1
	opts.GetResiduals = false
	opts.Progress = nil

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(foldWorkers)
	for f := 0; f < folds; f++ {
		eg.Go(func() error {
			var train []models.Point
			var test []int
			for k, idx := range order {
				if k%folds == f {
					test = append(test, idx)
				} else {
					train = append(train, inside[idx])
				}
			}

			s := prior.Clone()
			if _, err := kriging.KrigPoints(egCtx, s, train, v, opts); err != nil {
				return fmt.Errorf("fold %d: %w", f, err)
			}
			for _, idx := range test {
				predicted[idx] = s.GetZ(inside[idx].X, inside[idx].Y)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return ValidationMetrics{}, err
	}

	observed := make([]float64, len(inside))
	for k, p := range inside {
		observed[k] = p.Z
	}
	return calculateMetrics(observed, predicted), nil
}

// calculateMetrics compares observed and predicted values
func calculateMetrics(observed, predicted []float64) ValidationMetrics {
	n := len(observed)
	if n != len(predicted) || n == 0 {
		return ValidationMetrics{}
	}

	diff := make([]float64, n)
	var mse, mae float64
	for k := range observed {
		d := predicted[k] - observed[k]
		diff[k] = d
		mse += d * d
		mae += math.Abs(d)
	}

	m := ValidationMetrics{
		N:    n,
		RMSE: math.Sqrt(mse / float64(n)),
		MAE:  mae / float64(n),
		Bias: stat.Mean(diff, nil),
	}
	if n > 1 {
		m.Correlation = stat.Correlation(observed, predicted, nil)
	}
	return m
}
