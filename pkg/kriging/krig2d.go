// Package kriging estimates a trend surface from observations by simple
// kriging. The grid is split into blocks sized from a cost model, each
// block is solved with the observations in a halo around it, and blocks
// are solved in parallel into disjoint parts of the output grid.
package kriging

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"trendkrig/internal/models"
	"trendkrig/pkg/variogram"
)

// DefaultP is the default halo size in units of the covariance range
const DefaultP = 2.0

// ProgressCallback is a function that reports progress during kriging.
// Calls are serialized.
type ProgressCallback func(completed, total int, message string)

// Options control a kriging run
type Options struct {
	// GetResiduals writes the kriged residual instead of trend plus residual
	GetResiduals bool

	// KrigAll solves the whole grid as a single block
	KrigAll bool

	// UseIndexGrid snaps scattered points to grid nodes and uses a
	// covariance grid (KrigPoints only)
	UseIndexGrid bool

	// P is the nominal halo size in units of the covariance range
	P float64

	// Workers is the number of blocks solved concurrently
	Workers int

	// Progress is called after each solved block
	Progress ProgressCallback
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{
		P:       DefaultP,
		Workers: runtime.NumCPU(),
	}
}

func (o Options) withDefaults() Options {
	if o.P == 0 {
		o.P = DefaultP
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	return o
}

// Report describes a finished kriging run
type Report struct {
	// BlocksX and BlocksY are the planned number of blocks per axis
	BlocksX, BlocksY int

	// Blocks is the number of non-empty blocks solved
	Blocks int

	// NumData is the number of observations kriged
	NumData int

	// TargetData is the planned number of observations per block
	TargetData int

	// AvgData is the realized average number of observations per block
	AvgData int

	// MeanP is the average halo size of the blocks
	MeanP float64

	// Fallback is set when the planner could not give every worker a block
	Fallback bool

	// Elapsed is the wall time of the run
	Elapsed time.Duration
}

// gridGeometry is the part of the target grid the planner needs
type gridGeometry struct {
	nx, ny         int
	dx, dy         float64
	rangeX, rangeY float64
}

// KrigNodal kriges trend in place from observations at grid nodes. cov
// must cover the grid of trend and data must be finalized.
func KrigNodal(ctx context.Context, trend *models.Grid2D, data *NodalData, cov *variogram.CovGrid2D, opts Options) (*Report, error) {
	if trend == nil || data == nil || cov == nil {
		return nil, fmt.Errorf("%w: nil argument", ErrInvalidInput)
	}
	if trend.NI <= 0 || trend.NJ <= 0 || len(trend.Data) != trend.NI*trend.NJ {
		return nil, fmt.Errorf("%w: grid %dx%d with %d values", ErrInvalidInput, trend.NI, trend.NJ, len(trend.Data))
	}
	if !data.Finalized() {
		return nil, ErrNotFinalized
	}
	if cov.NX() < trend.NI || cov.NY() < trend.NJ {
		return nil, fmt.Errorf("%w: covariance grid %dx%d does not cover grid %dx%d",
			ErrSizeMismatch, cov.NX(), cov.NY(), trend.NI, trend.NJ)
	}
	for k := 0; k < data.Len(); k++ {
		if i, j, _ := data.Observation(k); !trend.InBounds(i, j) {
			return nil, fmt.Errorf("%w: observation at node (%d, %d) outside grid", ErrInvalidInput, i, j)
		}
	}

	geom := gridGeometry{
		nx:     trend.NI,
		ny:     trend.NJ,
		dx:     cov.DX(),
		dy:     cov.DY(),
		rangeX: math.Max(cov.RangeX(), cov.DX()),
		rangeY: math.Max(cov.RangeY(), cov.DY()),
	}
	s := &nodalSolver{
		snapshot:  trend.Clone(),
		out:       trend,
		cov:       cov,
		residuals: opts.GetResiduals,
	}
	return run(ctx, data, geom, opts, s.solve)
}

// KrigContinuous kriges trend in place from observations at arbitrary
// coordinates. data must be on the grid of trend.
func KrigContinuous(ctx context.Context, trend *models.Surface, data *ContinuousData, v *variogram.Variogram, opts Options) (*Report, error) {
	if trend == nil || data == nil || v == nil {
		return nil, fmt.Errorf("%w: nil argument", ErrInvalidInput)
	}
	if trend.NI <= 0 || trend.NJ <= 0 || len(trend.Data) != trend.NI*trend.NJ {
		return nil, fmt.Errorf("%w: grid %dx%d with %d values", ErrInvalidInput, trend.NI, trend.NJ, len(trend.Data))
	}
	if !(trend.DX > 0) || !(trend.DY > 0) {
		return nil, fmt.Errorf("%w: grid spacing %g, %g", ErrInvalidInput, trend.DX, trend.DY)
	}
	if xmin, ymin, dx, dy := data.Geometry(); xmin != trend.XMin || ymin != trend.YMin || dx != trend.DX || dy != trend.DY {
		return nil, fmt.Errorf("%w: observation grid does not match surface", ErrSizeMismatch)
	}
	if !(v.StdDev() > 0) {
		return nil, fmt.Errorf("%w: variogram standard deviation must be positive", ErrInvalidInput)
	}

	geom := gridGeometry{
		nx:     trend.NI,
		ny:     trend.NJ,
		dx:     trend.DX,
		dy:     trend.DY,
		rangeX: v.RangeX(),
		rangeY: v.RangeY(),
	}
	s := &continuousSolver{
		snapshot:  trend.Clone(),
		out:       trend,
		vario:     v,
		residuals: opts.GetResiduals,
	}
	return run(ctx, data.onGrid(trend.NI, trend.NJ), geom, opts, s.solve)
}

// KrigPoints kriges trend in place from scattered points. With
// opts.UseIndexGrid the points are snapped to grid nodes and kriged with
// a covariance grid built from v.
func KrigPoints(ctx context.Context, trend *models.Surface, points []models.Point, v *variogram.Variogram, opts Options) (*Report, error) {
	if trend == nil || v == nil {
		return nil, fmt.Errorf("%w: nil argument", ErrInvalidInput)
	}
	if !opts.UseIndexGrid {
		return KrigContinuous(ctx, trend, NewContinuousDataFromPoints(points, trend), v, opts)
	}

	cov, err := variogram.NewCovGrid2D(v, trend.NI, trend.NJ, trend.DX, trend.DY)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return KrigNodal(ctx, &trend.Grid2D, NewNodalDataFromPoints(points, trend), cov, opts)
}

// run plans the blocks, builds them and solves them in parallel
func run[S Data[S]](ctx context.Context, data S, geom gridGeometry, opts Options, solve func(*Block[S]) error) (*Report, error) {
	start := time.Now()
	opts = opts.withDefaults()
	if !(opts.P > 0) {
		return nil, fmt.Errorf("%w: halo size %g", ErrInvalidInput, opts.P)
	}

	report := &Report{NumData: data.Len()}
	if data.Len() == 0 {
		logrus.Infof("No observations, trend left unchanged")
		report.Elapsed = time.Since(start)
		return report, nil
	}

	plan := Plan{BlocksX: 1, BlocksY: 1, TargetData: data.Len()}
	if !opts.KrigAll {
		var err error
		plan, err = PlanBlocks(PlanInput{
			NX:      geom.nx,
			NY:      geom.ny,
			DX:      geom.dx,
			DY:      geom.dy,
			RangeX:  geom.rangeX,
			RangeY:  geom.rangeY,
			NumData: data.Len(),
			Workers: opts.Workers,
			P:       opts.P,
		})
		if err != nil {
			return nil, err
		}
	}
	report.BlocksX, report.BlocksY = plan.BlocksX, plan.BlocksY
	report.TargetData = plan.TargetData
	report.Fallback = plan.Fallback

	blocks, stats, err := BuildBlocks(ctx, data, BuildParams{
		Layout:     Layout{NX: geom.nx, NY: geom.ny, BlocksX: plan.BlocksX, BlocksY: plan.BlocksY},
		DX:         geom.dx,
		DY:         geom.dy,
		RangeX:     geom.rangeX,
		RangeY:     geom.rangeY,
		P:          opts.P,
		TargetData: plan.TargetData,
		Workers:    opts.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("building blocks: %w", err)
	}
	report.Blocks = len(blocks)
	report.AvgData = stats.AvgData
	report.MeanP = stats.MeanP

	logrus.Infof("Kriging %d observations on %dx%d grid in %dx%d blocks (target %d, average %d per block)",
		data.Len(), geom.nx, geom.ny, plan.BlocksX, plan.BlocksY, plan.TargetData, stats.AvgData)

	blockErrs := make([]error, len(blocks))
	var skipped, completed atomic.Int64
	var progressMu sync.Mutex

	// Blocks fail independently, so no shared cancellation
	var eg errgroup.Group
	eg.SetLimit(opts.Workers)
	for k, b := range blocks {
		eg.Go(func() error {
			if ctx.Err() != nil {
				skipped.Add(1)
				return nil
			}
			blockErrs[k] = solve(b)
			n := int(completed.Add(1))
			if opts.Progress != nil {
				progressMu.Lock()
				opts.Progress(n, len(blocks), "block "+b.Interior.String())
				progressMu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()

	report.Elapsed = time.Since(start)

	errs := blockErrs
	if skipped.Load() > 0 {
		errs = append([]error{fmt.Errorf("%d of %d blocks not solved: %w", skipped.Load(), len(blocks), ctx.Err())}, errs...)
	}
	if err := errors.Join(errs...); err != nil {
		return report, err
	}

	logrus.Infof("Kriging finished in %.2f seconds", report.Elapsed.Seconds())
	return report, nil
}
