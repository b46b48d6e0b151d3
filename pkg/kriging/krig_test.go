package kriging

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendkrig/internal/models"
	"trendkrig/pkg/variogram"
)

func mustCovGrid(t testing.TB, typ variogram.Type, rng float64, nx, ny int) *variogram.CovGrid2D {
	t.Helper()
	v, err := variogram.Isotropic(typ, rng)
	require.NoError(t, err)
	cg, err := variogram.NewCovGrid2D(v, nx, ny, 1, 1)
	require.NoError(t, err)
	return cg
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Workers = 4
	return opts
}

// TestConstantCovarianceBroadcast kriges a single observation with a constant covariance
func TestConstantCovarianceBroadcast(t *testing.T) {
	trend := models.NewGrid2D(4, 4, 0)
	data := NewNodalData()
	data.Add(0, 0, 5.0)
	data.Finalize()
	cov := mustCovGrid(t, variogram.Constant, 1, 4, 4)

	report, err := KrigNodal(context.Background(), trend, data, cov, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 16, report.Blocks)

	for j := 0; j < 4; j++ {
		for i := 0; i < 4; i++ {
			assert.InDelta(t, 5.0, trend.At(i, j), 1e-9, "cell (%d, %d)", i, j)
		}
	}
}

// TestTwoCornerScenario kriges two observations at opposite corners around their mean
func TestTwoCornerScenario(t *testing.T) {
	trend := models.NewGrid2D(10, 10, 15)
	data := NewNodalData()
	data.Add(0, 0, 10)
	data.Add(9, 9, 20)
	data.Finalize()
	cov := mustCovGrid(t, variogram.Exponential, 10, 10, 10)

	_, err := KrigNodal(context.Background(), trend, data, cov, testOptions())
	require.NoError(t, err)

	assert.Equal(t, 10.0, trend.At(0, 0))
	assert.Equal(t, 20.0, trend.At(9, 9))

	for k := 1; k < 10; k++ {
		assert.Greater(t, trend.At(k, k), trend.At(k-1, k-1), "diagonal must increase at %d", k)
	}
	for k := 0; k < 5; k++ {
		lo := trend.At(k, k) - 15
		hi := trend.At(9-k, 9-k) - 15
		assert.InDelta(t, -lo, hi, 1e-6, "diagonal must be antisymmetric around the mean")
		if k > 0 {
			assert.Less(t, math.Abs(lo), math.Abs(trend.At(k-1, k-1)-15), "values approach the mean toward the centre")
		}
	}

	// Neighbouring cells differ by less than the data contrast
	for j := 0; j < 10; j++ {
		for i := 1; i < 10; i++ {
			assert.Less(t, math.Abs(trend.At(i, j)-trend.At(i-1, j)), 5.0)
		}
	}
}

// TestExactness verifies that observed cells hold the observation or the residual
func TestExactness(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	nx, ny := 30, 25
	prior := models.NewGrid2D(nx, ny, 0)
	for k := range prior.Data {
		prior.Data[k] = rng.Float64()
	}
	data := randomNodal(rng, 60, nx, ny)
	cov := mustCovGrid(t, variogram.Spherical, 8, nx, ny)

	for _, residuals := range []bool{false, true} {
		trend := prior.Clone()
		opts := testOptions()
		opts.GetResiduals = residuals

		_, err := KrigNodal(context.Background(), trend, data, cov, opts)
		require.NoError(t, err)

		for k := 0; k < data.Len(); k++ {
			i, j, v := data.Observation(k)
			want := v
			if residuals {
				want = v - prior.At(i, j)
			}
			assert.InDelta(t, want, trend.At(i, j), 1e-12, "residuals=%v node (%d, %d)", residuals, i, j)
		}
	}
}

// TestBlockIndependence compares blocked kriging with a single global solve
// when every halo reaches all observations
func TestBlockIndependence(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	nx, ny := 20, 20
	data := randomNodal(rng, 30, nx, ny)
	cov := mustCovGrid(t, variogram.Exponential, 12, nx, ny)

	global := models.NewGrid2D(nx, ny, 1)
	opts := testOptions()
	opts.KrigAll = true
	report, err := KrigNodal(context.Background(), global, data, cov, opts)
	require.NoError(t, err)
	require.Equal(t, 1, report.Blocks)

	blocked := models.NewGrid2D(nx, ny, 1)
	opts = testOptions()
	opts.P = 4
	report, err = KrigNodal(context.Background(), blocked, data, cov, opts)
	require.NoError(t, err)
	require.Greater(t, report.Blocks, 1)
	require.Equal(t, data.Len(), report.AvgData)

	for k := range global.Data {
		assert.InDelta(t, global.Data[k], blocked.Data[k], 1e-8, "cell %d", k)
	}
}

// TestContinuousBlockIndependence repeats the block comparison for scattered data
func TestContinuousBlockIndependence(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	v, err := variogram.New(variogram.Exponential, variogram.Params{RangeX: 6, RangeY: 4, StdDev: 1, Azimuth: 0.4})
	require.NoError(t, err)

	newData := func() *ContinuousData {
		d := NewContinuousData(0, 0, 0.5, 0.5)
		r := rand.New(rand.NewSource(99))
		for k := 0; k < 25; k++ {
			d.Add(r.Float64()*9.5, r.Float64()*9.5, r.NormFloat64())
		}
		// Observations just outside every edge of the grid
		d.Add(-0.2, 4, 1.3)
		d.Add(10.4, 2, -0.7)
		d.Add(3, -0.6, 0.5)
		d.Add(6, 10.2, 2.1)
		return d
	}
	prior := models.NewSurface(20, 20, 0, 0, 0.5, 0.5, 0)
	for k := range prior.Data {
		prior.Data[k] = rng.Float64()
	}

	global := prior.Clone()
	opts := testOptions()
	opts.KrigAll = true
	_, err = KrigContinuous(context.Background(), global, newData(), v, opts)
	require.NoError(t, err)

	blocked := prior.Clone()
	opts = testOptions()
	opts.P = 4
	report, err := KrigContinuous(context.Background(), blocked, newData(), v, opts)
	require.NoError(t, err)
	require.Greater(t, report.Blocks, 1)
	require.Equal(t, 29, report.AvgData)

	for k := range global.Data {
		assert.InDelta(t, global.Data[k], blocked.Data[k], 1e-6, "cell %d", k)
	}
}

// TestContinuousResiduals verifies that residual mode writes the kriged
// residual without the prior
func TestContinuousResiduals(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	v, err := variogram.Isotropic(variogram.Exponential, 4)
	require.NoError(t, err)

	prior := models.NewSurface(15, 12, 10, 20, 1, 1, 0)
	for k := range prior.Data {
		prior.Data[k] = 3 + rng.Float64()
	}
	points := []models.Point{
		{X: 12, Y: 23, Z: 9},
		{X: 17.4, Y: 25.1, Z: 1},
		{X: 21.2, Y: 29.6, Z: 6},
	}

	full := prior.Clone()
	_, err = KrigPoints(context.Background(), full, points, v, testOptions())
	require.NoError(t, err)

	residual := prior.Clone()
	opts := testOptions()
	opts.GetResiduals = true
	_, err = KrigPoints(context.Background(), residual, points, v, opts)
	require.NoError(t, err)

	for k := range prior.Data {
		assert.InDelta(t, full.Data[k]-prior.Data[k], residual.Data[k], 1e-9, "cell %d", k)
	}
	// The node observation holds its residual against the prior
	assert.InDelta(t, 9-prior.At(2, 3), residual.At(2, 3), 1e-6)
	assert.Greater(t, residual.At(2, 3), 4.0)
}

// TestContinuousExactAtNodes verifies that observations on grid nodes are reproduced
func TestContinuousExactAtNodes(t *testing.T) {
	v, err := variogram.Isotropic(variogram.Exponential, 5)
	require.NoError(t, err)

	trend := models.NewSurface(10, 10, 100, 50, 2, 2, 3)
	points := []models.Point{
		{X: 104, Y: 54, Z: 7},
		{X: 110, Y: 60, Z: -1},
		{X: 116, Y: 52, Z: 4},
	}

	opts := testOptions()
	_, err = KrigPoints(context.Background(), trend, points, v, opts)
	require.NoError(t, err)

	for _, p := range points {
		i, j, ok := trend.FindIndex(p.X, p.Y)
		require.True(t, ok)
		assert.InDelta(t, p.Z, trend.At(i, j), 1e-6)
	}
}

// TestKrigPointsIndexGrid verifies the snapped variant against explicit nodal kriging
func TestKrigPointsIndexGrid(t *testing.T) {
	v, err := variogram.Isotropic(variogram.Matern52, 6)
	require.NoError(t, err)

	points := []models.Point{
		{X: 2.2, Y: 3.1, Z: 1},
		{X: 7.9, Y: 1.2, Z: 2},
		{X: 5.0, Y: 8.4, Z: -1},
	}
	viaPoints := models.NewSurface(12, 10, 0, 0, 1, 1, 0.5)
	opts := testOptions()
	opts.UseIndexGrid = true
	_, err = KrigPoints(context.Background(), viaPoints, points, v, opts)
	require.NoError(t, err)

	direct := models.NewGrid2D(12, 10, 0.5)
	data := NewNodalDataFromPoints(points, viaPoints)
	cov, err := variogram.NewCovGrid2D(v, 12, 10, 1, 1)
	require.NoError(t, err)
	_, err = KrigNodal(context.Background(), direct, data, cov, testOptions())
	require.NoError(t, err)

	assert.Equal(t, 1.0, viaPoints.At(2, 3))
	assert.Equal(t, 2.0, viaPoints.At(8, 1))
	assert.Equal(t, -1.0, viaPoints.At(5, 8))
	for k := range direct.Data {
		assert.InDelta(t, direct.Data[k], viaPoints.Data[k], 1e-12)
	}
}

// TestNotPositiveDefinite verifies that a singular system is reported with its block
func TestNotPositiveDefinite(t *testing.T) {
	v, err := variogram.Isotropic(variogram.Exponential, 5)
	require.NoError(t, err)

	trend := models.NewSurface(5, 5, 0, 0, 1, 1, 0)
	data := NewContinuousData(0, 0, 1, 1)
	data.Add(2.5, 2.5, 1)
	data.Add(2.5, 2.5, 3)

	opts := testOptions()
	opts.KrigAll = true
	_, err = KrigContinuous(context.Background(), trend, data, v, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotPositiveDefinite))

	var be *BlockError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, Box{0, 5, 0, 5}, be.Box)
	assert.Equal(t, 2, be.NumData)
}

// TestBlockErrorsAggregated verifies that every failing block is reported
func TestBlockErrorsAggregated(t *testing.T) {
	v, err := variogram.Isotropic(variogram.Exponential, 50)
	require.NoError(t, err)

	trend := models.NewSurface(4, 4, 0, 0, 1, 1, 0)
	data := NewContinuousData(0, 0, 1, 1)
	data.Add(1, 1, 1)
	data.Add(1, 1, 2)

	report, err := KrigContinuous(context.Background(), trend, data, v, testOptions())
	require.Error(t, err)

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	failures := 0
	for _, e := range joined.Unwrap() {
		var be *BlockError
		if errors.As(e, &be) {
			failures++
		}
	}
	assert.Equal(t, report.Blocks, failures)
	assert.Equal(t, 16, failures)
}

// TestInputValidation verifies that inconsistent input fails before solving
func TestInputValidation(t *testing.T) {
	cov := mustCovGrid(t, variogram.Exponential, 5, 10, 10)
	ctx := context.Background()

	pending := NewNodalData()
	pending.Add(1, 1, 1)
	pending.Add(1, 1, 2)
	_, err := KrigNodal(ctx, models.NewGrid2D(10, 10, 0), pending, cov, testOptions())
	assert.True(t, errors.Is(err, ErrNotFinalized))

	outside := NewNodalData()
	outside.Add(10, 0, 1)
	_, err = KrigNodal(ctx, models.NewGrid2D(10, 10, 0), outside, cov, testOptions())
	assert.True(t, errors.Is(err, ErrInvalidInput))

	small := mustCovGrid(t, variogram.Exponential, 5, 5, 5)
	_, err = KrigNodal(ctx, models.NewGrid2D(10, 10, 0), NewNodalData(), small, testOptions())
	assert.True(t, errors.Is(err, ErrSizeMismatch))

	v, _ := variogram.Isotropic(variogram.Exponential, 5)
	_, err = KrigContinuous(ctx, models.NewSurface(10, 10, 0, 0, 1, 1, 0), NewContinuousData(0, 0, 2, 1), v, testOptions())
	assert.True(t, errors.Is(err, ErrSizeMismatch))

	opts := testOptions()
	opts.P = -1
	one := NewNodalData()
	one.Add(1, 1, 1)
	_, err = KrigNodal(ctx, models.NewGrid2D(10, 10, 0), one, cov, opts)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

// TestEmptyDataKeepsTrend verifies the no-op run
func TestEmptyDataKeepsTrend(t *testing.T) {
	trend := models.NewGrid2D(6, 6, 2)
	cov := mustCovGrid(t, variogram.Exponential, 5, 6, 6)

	report, err := KrigNodal(context.Background(), trend, NewNodalData(), cov, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Blocks)
	for _, v := range trend.Data {
		assert.Equal(t, 2.0, v)
	}
}

// TestEmptyBlocksKeepTrend verifies that blocks without observations leave the prior in place
func TestEmptyBlocksKeepTrend(t *testing.T) {
	trend := models.NewGrid2D(40, 40, 2)
	data := NewNodalData()
	data.Add(1, 1, 5)
	data.Finalize()
	cov := mustCovGrid(t, variogram.Spherical, 2, 40, 40)

	_, err := KrigNodal(context.Background(), trend, data, cov, testOptions())
	require.NoError(t, err)

	assert.Equal(t, 5.0, trend.At(1, 1))
	assert.Equal(t, 2.0, trend.At(39, 39))
}

// TestCancelledRun verifies that no block starts after cancellation
func TestCancelledRun(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	nx, ny := 20, 20
	prior := models.NewGrid2D(nx, ny, 0)
	trend := prior.Clone()
	data := randomNodal(rng, 30, nx, ny)
	cov := mustCovGrid(t, variogram.Exponential, 5, nx, ny)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := KrigNodal(ctx, trend, data, cov, testOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, prior.Data, trend.Data)
}

// TestProgressCallback verifies that every block reports completion once
func TestProgressCallback(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	data := randomNodal(rng, 40, 30, 30)
	cov := mustCovGrid(t, variogram.Exponential, 6, 30, 30)

	var mu sync.Mutex
	seen := map[int]bool{}
	var messages []string
	total := 0
	opts := testOptions()
	opts.Progress = func(completed, n int, message string) {
		mu.Lock()
		defer mu.Unlock()
		seen[completed] = true
		messages = append(messages, message)
		total = n
	}

	report, err := KrigNodal(context.Background(), models.NewGrid2D(30, 30, 0), data, cov, opts)
	require.NoError(t, err)
	assert.Equal(t, report.Blocks, total)
	assert.Len(t, seen, report.Blocks)
	for _, m := range messages {
		assert.Regexp(t, `^block \[\d+,\d+\)x\[\d+,\d+\)$`, m)
	}
}

// TestSingleWorker verifies that one worker gives the same field as many
func TestSingleWorker(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	data := randomNodal(rng, 80, 25, 25)
	cov := mustCovGrid(t, variogram.Exponential, 7, 25, 25)

	a := models.NewGrid2D(25, 25, 0)
	opts := testOptions()
	opts.Workers = 1
	_, err := KrigNodal(context.Background(), a, data, cov, opts)
	require.NoError(t, err)

	b := models.NewGrid2D(25, 25, 0)
	opts.Workers = 8
	_, err = KrigNodal(context.Background(), b, data, cov, opts)
	require.NoError(t, err)

	assert.InDeltaSlice(t, a.Data, b.Data, 1e-12)
}

// TestKrig1D follows the one dimensional reference cases
func TestKrig1D(t *testing.T) {
	vario, err := variogram.Isotropic(variogram.Exponential, 50)
	require.NoError(t, err)

	t.Run("one observation", func(t *testing.T) {
		field := []float64{-1, -1, -1}
		known := []bool{false, true, false}
		require.NoError(t, Krig1D(field, known, []float64{1}, 1, vario))

		assert.InDelta(t, 1.0, field[0], 0.14)
		assert.Equal(t, 1.0, field[1])
		assert.InDelta(t, 1.0, field[2], 0.14)
		assert.InDelta(t, -1+2*math.Exp(-0.06), field[0], 1e-12)
	})

	t.Run("two observations", func(t *testing.T) {
		field := []float64{-1, -1, -1}
		known := []bool{true, false, true}
		require.NoError(t, Krig1D(field, known, []float64{1, 1}, 1, vario))

		assert.Equal(t, 1.0, field[0])
		assert.InDelta(t, 1.0, field[1], 0.14)
		assert.Equal(t, 1.0, field[2])
	})

	t.Run("more observations", func(t *testing.T) {
		field := make([]float64, 10)
		for k := range field {
			field[k] = -1
		}
		known := make([]bool, 10)
		known[0], known[2], known[7], known[8] = true, true, true, true
		require.NoError(t, Krig1D(field, known, []float64{1, 1, 1, 1}, 1, vario))

		for k, v := range field {
			assert.InDelta(t, 1.0, v, 0.15, "position %d", k)
		}
	})
}

// TestKrig1DInvalid verifies the size checks
func TestKrig1DInvalid(t *testing.T) {
	vario, _ := variogram.Isotropic(variogram.Exponential, 50)

	err := Krig1D(make([]float64, 3), make([]bool, 2), nil, 1, vario)
	assert.True(t, errors.Is(err, ErrSizeMismatch))

	err = Krig1D(make([]float64, 3), []bool{true, false, false}, []float64{1, 2}, 1, vario)
	assert.True(t, errors.Is(err, ErrSizeMismatch))

	field := []float64{4, 4}
	require.NoError(t, Krig1D(field, []bool{false, false}, nil, 1, vario))
	assert.Equal(t, []float64{4, 4}, field)
}

// BenchmarkKrigNodal measures a blocked run on a moderately sized grid
func BenchmarkKrigNodal(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	nx, ny := 120, 120
	data := randomNodal(rng, 800, nx, ny)
	cov := mustCovGrid(b, variogram.Exponential, 15, nx, ny)
	trend := models.NewGrid2D(nx, ny, 0)

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		if _, err := KrigNodal(context.Background(), trend.Clone(), data, cov, DefaultOptions()); err != nil {
			b.Fatal(err)
		}
	}
}
