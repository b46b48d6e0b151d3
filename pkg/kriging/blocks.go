package kriging

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Block is a region of the output grid together with the observations
// needed to krige it
type Block[S any] struct {
	// Interior is the part of the grid the block writes
	Interior Box

	// Halo is the interior expanded by P ranges, the region the block
	// observations were taken from
	Halo Box

	// P is the halo size in units of the range
	P float64

	// Data holds the observations inside Halo
	Data S
}

// BuildParams controls how blocks are cut from an observation store
type BuildParams struct {
	Layout Layout

	// DX and DY are the grid spacings
	DX, DY float64

	// RangeX and RangeY are the covariance ranges
	RangeX, RangeY float64

	// P is the nominal halo size in units of the range. The halo search
	// runs over [P/2, 2P].
	P float64

	// TargetData is the wanted number of observations per block
	TargetData int

	// Workers limits the number of blocks sized concurrently
	Workers int
}

// BuildStats summarizes a set of blocks
type BuildStats struct {
	// AvgData is the average number of observations per block, rounded down
	AvgData int

	// MeanP, MinP and MaxP describe the halo sizes chosen for the blocks
	MeanP float64
	MinP  float64
	MaxP  float64
}

// BuildBlocks cuts data into the blocks of bp.Layout and returns them
// ordered by descending observation count. A 1x1 layout holds a clone of
// the whole store.
func BuildBlocks[S Data[S]](ctx context.Context, data S, bp BuildParams) ([]*Block[S], BuildStats, error) {
	l := bp.Layout
	whole := Box{IMin: 0, IMax: l.NX, JMin: 0, JMax: l.NY}

	if l.BlocksX == 1 && l.BlocksY == 1 {
		blocks := []*Block[S]{{Interior: whole, Halo: whole, Data: data.Clone()}}
		return blocks, BuildStats{AvgData: data.Len()}, nil
	}

	hp := HaloParams{
		PMin:   bp.P / 2,
		PMax:   2 * bp.P,
		RX:     max(int(bp.RangeX/bp.DX), 1),
		RY:     max(int(bp.RangeY/bp.DY), 1),
		NX:     l.NX,
		NY:     l.NY,
		Target: bp.TargetData,
		Tol:    haloTolerance,
	}

	interiors := l.Interiors()
	blocks := make([]*Block[S], len(interiors))

	workers := bp.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for k, interior := range interiors {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			p := SizeHalo(data, interior, hp)
			halo := ExpandBox(interior, p, hp.RX, hp.RY, hp.NX, hp.NY)

			local := data.NewInstance()
			data.AddToBlock(local, halo)
			local.Finalize()

			blocks[k] = &Block[S]{Interior: interior, Halo: halo, P: p, Data: local}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, BuildStats{}, err
	}

	sort.SliceStable(blocks, func(a, b int) bool {
		return blocks[a].Data.Len() > blocks[b].Data.Len()
	})

	return blocks, blockStats(blocks), nil
}

func blockStats[S Data[S]](blocks []*Block[S]) BuildStats {
	if len(blocks) == 0 {
		return BuildStats{}
	}
	st := BuildStats{MinP: math.Inf(1), MaxP: math.Inf(-1)}
	total := 0
	sumP := 0.0
	for _, b := range blocks {
		total += b.Data.Len()
		sumP += b.P
		st.MinP = math.Min(st.MinP, b.P)
		st.MaxP = math.Max(st.MaxP, b.P)
	}
	st.AvgData = total / len(blocks)
	st.MeanP = sumP / float64(len(blocks))
	return st
}
