package kriging

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

const (
	// maxUnblockedData is the observation count below which the default
	// block layout is used without consulting the cost model
	maxUnblockedData = 200

	// defaultBlocks is the number of blocks per axis of the default layout
	defaultBlocks = 10

	// minBlockCells is the minimum block edge in grid cells
	minBlockCells = 5

	// minBlocksPerAxis is the minimum number of blocks along each axis
	minBlocksPerAxis = 5

	// planSteps is the number of intervals the block edge range is split into
	planSteps = 200
)

// PlanInput describes the grid, the covariance ranges and the data volume
// a block layout is chosen for
type PlanInput struct {
	// NX and NY are the grid dimensions
	NX, NY int

	// DX and DY are the grid spacings
	DX, DY float64

	// RangeX and RangeY are the covariance ranges
	RangeX, RangeY float64

	// NumData is the total number of observations
	NumData int

	// Workers is the number of parallel workers to keep busy
	Workers int

	// P is the halo size in units of the range
	P float64
}

// Plan is a block layout and the target number of observations per block
type Plan struct {
	BlocksX int
	BlocksY int

	// TargetData is the number of observations each block should hold
	// including its halo
	TargetData int

	// S is the chosen block edge in units of the range, zero for the
	// default layout
	S float64

	// Fallback is set when no layout provided enough blocks for every
	// worker and the cheapest layout was used instead
	Fallback bool
}

func (in PlanInput) validate() error {
	if in.NX <= 0 || in.NY <= 0 {
		return fmt.Errorf("%w: grid size %dx%d", ErrInvalidInput, in.NX, in.NY)
	}
	if !(in.DX > 0) || !(in.DY > 0) {
		return fmt.Errorf("%w: grid spacing %g, %g", ErrInvalidInput, in.DX, in.DY)
	}
	if !(in.RangeX > 0) || !(in.RangeY > 0) {
		return fmt.Errorf("%w: covariance ranges %g, %g", ErrInvalidInput, in.RangeX, in.RangeY)
	}
	if !(in.P > 0) {
		return fmt.Errorf("%w: halo size %g", ErrInvalidInput, in.P)
	}
	if in.NumData < 0 {
		return fmt.Errorf("%w: negative observation count", ErrInvalidInput)
	}
	return nil
}

// PlanBlocks chooses the number of blocks along each axis by minimizing
// OverallTime over candidate block edges S in [Smin, Smax], measured in
// units of the range. Candidates that produce fewer blocks than workers
// are rejected unless no candidate qualifies.
func PlanBlocks(in PlanInput) (Plan, error) {
	if err := in.validate(); err != nil {
		return Plan{}, err
	}

	plan := Plan{
		BlocksX:    defaultBlocks,
		BlocksY:    defaultBlocks,
		TargetData: in.NumData,
	}

	if in.NumData > maxUnblockedData {
		plan = scanBlockEdges(in)
	}

	plan.BlocksX = clampInt(plan.BlocksX, 1, in.NX)
	plan.BlocksY = clampInt(plan.BlocksY, 1, in.NY)
	return plan, nil
}

func scanBlockEdges(in PlanInput) Plan {
	xlength := float64(in.NX) * in.DX
	ylength := float64(in.NY) * in.DY
	vcell := in.DX * in.DY
	volume := xlength * ylength
	r := in.RangeX * in.RangeY

	smin := math.Max(minBlockCells*in.DX/in.RangeX, minBlockCells*in.DY/in.RangeY)
	smax := math.Min(xlength/(minBlocksPerAxis*in.RangeX), ylength/(minBlocksPerAxis*in.RangeY))

	blocksAt := func(s float64) (int, int) {
		bx := int(math.Max(1, xlength/(s*in.RangeX)))
		by := int(math.Max(1, ylength/(s*in.RangeY)))
		return bx, by
	}

	var best, cheapest Plan
	minTime := math.Inf(1)
	minTimeAny := math.Inf(1)
	found := false

	for k := 0; k <= planSteps; k++ {
		s := smin + float64(k)*(smax-smin)/planSteps
		v := math.Max(r*s*s, vcell)
		vd := r * (2*in.P + s) * (2*in.P + s)
		ns := int(volume / v)
		nd := int(float64(in.NumData) * (vd / volume))
		t := OverallTime(nd, ns, in.NX, in.NY)
		bx, by := blocksAt(s)

		candidate := Plan{BlocksX: bx, BlocksY: by, TargetData: nd, S: s}
		if t <= minTimeAny {
			minTimeAny = t
			cheapest = candidate
		}
		if t <= minTime && bx*by >= in.Workers {
			minTime = t
			best = candidate
			found = true
		}
	}

	if !found {
		logrus.Warnf("No block layout gives at least %d blocks, using cheapest layout %dx%d",
			in.Workers, cheapest.BlocksX, cheapest.BlocksY)
		cheapest.Fallback = true
		return cheapest
	}
	return best
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
