package cmd

import (
	"fmt"
	"math"
	"time"

	"github.com/notargets/gopencils/InputParameters"
	"github.com/notargets/gopencils/pencil"
	"github.com/notargets/gopencils/pencilarray"
	"github.com/notargets/gopencils/topology"
	"github.com/notargets/gopencils/transport"
	"github.com/notargets/gopencils/transpose"
	"github.com/notargets/gopencils/utils"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Chain runs a transpose chain described by InputParameters in an in-process world.
type Chain struct {
	Params *InputParameters.InputParameters
	Method transpose.Method
	Verify bool
	Log    bool // parameters and report on the root rank
}

// ChainReport holds what rank 0 saw of a run.
type ChainReport struct {
	Elapsed  time.Duration
	Stats    transport.Stats
	Checksum float64 // Sum of the last stage, gathered
	Last     *pencilarray.GlobalArray[float64]
}

var positions = []pencilarray.Position{pencilarray.First, pencilarray.Second,
	pencilarray.Third, pencilarray.Fourth}

// initialValue is a smooth function of the global index, distinct at every point.
func initialValue(global []int) (v float64) {
	for i, x := range global {
		v += math.Sin(float64(x+1)*float64(i+1)*0.1) + float64(x)*math.Pow(10, float64(i))
	}
	return
}

func (ch *Chain) allocate(tp *topology.Topology) (arrays []*pencilarray.Array[float64], err error) {
	var (
		ip      = ch.Params
		pencils = make([]*pencil.Pencil, len(ip.Pencils))
	)
	for i, pp := range ip.Pencils {
		if pencils[i], err = pencil.NewPermuted(tp, ip.GlobalSize, pp.Decomposition, pp.Permutation); err != nil {
			return nil, errors.Wrapf(err, "pencil %d", i)
		}
	}
	arrays = make([]*pencilarray.Array[float64], len(pencils))
	if len(pencils) <= pencilarray.MaxBundle {
		var b *pencilarray.Bundle[float64]
		if b, err = pencilarray.NewBundle[float64](pencils, ip.ExtraDims...); err != nil {
			return
		}
		for i := range pencils {
			if arrays[i], err = b.At(positions[i]); err != nil {
				return
			}
		}
		return
	}
	for i, p := range pencils {
		if arrays[i], err = pencilarray.New[float64](p, ip.ExtraDims...); err != nil {
			return
		}
	}
	return
}

/*
Run transposes the first array forward along the chain and back, Iterations
times. With Verify set, every stage of the first pass is gathered on rank 0 and
compared with the initial array, and the final round trip must reproduce the
initial values exactly.
*/
func (ch *Chain) Run(np int) (rpt ChainReport, err error) {
	ip := ch.Params
	if err = ip.Validate(); err != nil {
		return
	}
	world := transport.NewWorld(np)
	err = world.Run(func(c transport.Comm) (err error) {
		var (
			tp     *topology.Topology
			arrays []*pencilarray.Array[float64]
		)
		if tp, err = topology.New(c, ip.ProcessGrid); err != nil {
			return
		}
		if ch.Log {
			ip.Print(c)
		}
		if arrays, err = ch.allocate(tp); err != nil {
			return
		}
		if ch.Verify {
			for _, a := range arrays {
				if err = pencil.CheckConsistent(a.Pencil()); err != nil {
					return
				}
			}
		}
		first, last := arrays[0], arrays[len(arrays)-1]
		first.Fill(initialValue)
		orig := append([]float64(nil), first.Data()...)
		var g0 *pencilarray.GlobalArray[float64]
		if ch.Verify {
			if g0, err = pencilarray.Gather(first, transport.Root); err != nil {
				return
			}
		}
		tp.Comm().Barrier()
		if c.Rank() == transport.Root {
			world.ResetStats()
		}
		tp.Comm().Barrier()
		start := time.Now()
		for it := 0; it < ip.Iterations; it++ {
			for i := 1; i < len(arrays); i++ {
				if err = transpose.Transpose(arrays[i], arrays[i-1], ch.Method); err != nil {
					return
				}
				if ch.Verify && it == 0 {
					if err = checkStage(arrays[i], g0, i); err != nil {
						return
					}
				}
			}
			for i := len(arrays) - 1; i > 0; i-- {
				if err = transpose.Transpose(arrays[i-1], arrays[i], ch.Method); err != nil {
					return
				}
			}
		}
		tp.Comm().Barrier()
		elapsed := time.Since(start)
		if ch.Verify && !floats.Equal(orig, first.Data()) {
			return fmt.Errorf("round trip changed the data on rank %d", c.Rank())
		}
		// The backward pass only reads the last stage, which still holds the forward result
		var gl *pencilarray.GlobalArray[float64]
		if gl, err = pencilarray.Gather(last, transport.Root); err != nil {
			return
		}
		if c.Rank() == transport.Root {
			rpt.Elapsed = elapsed
			rpt.Last = gl
			rpt.Checksum = floats.Sum(gl.Data)
			rpt.Stats = world.Stats()
			if ch.Log {
				rpt.Print(c, ch)
			}
		}
		return
	})
	rpt.Stats = world.Stats()
	return
}

func checkStage(a *pencilarray.Array[float64], g0 *pencilarray.GlobalArray[float64], stage int) error {
	g, err := pencilarray.Gather(a, transport.Root)
	if err != nil {
		return err
	}
	if a.Comm().Rank() != transport.Root || floats.Equal(g.Data, g0.Data) {
		return nil
	}
	idx := make([]int, len(g.Shape))
	for n := range g.Data {
		if g.Data[n] != g0.Data[n] {
			utils.LinearToCartesian(n, g.Shape, idx)
			break
		}
	}
	return fmt.Errorf("stage %d differs from the initial array at %v, held by rank %d",
		stage, idx, a.Pencil().OwnerOf(idx[:a.Pencil().Ndims()]))
}

// Print reports a run the way the solvers report their rate of execution, on
// the root rank of c.
func (rpt ChainReport) Print(c transport.Comm, ch *Chain) {
	var (
		ip        = ch.Params
		points    = 1
		transfers = 2 * (len(ip.Pencils) - 1) * ip.Iterations
	)
	for _, n := range append(append([]int{}, ip.GlobalSize...), ip.ExtraDims...) {
		points *= n
	}
	transport.Printf(c, "Method: %s, %d transposes\n", ch.Method, transfers)
	transport.Printf(c, "Messages = %d, Collectives = %d, Elements moved = %d\n",
		rpt.Stats.Messages, rpt.Stats.Collectives, rpt.Stats.Elements)
	if transfers > 0 {
		rate := float64(rpt.Elapsed.Microseconds()) / float64(points*transfers)
		transport.Printf(c, "Rate of execution = %8.5f us/(point*transpose) over %d transposes\n", rate, transfers)
	}
	transport.Printf(c, "Checksum = %.10g\n", rpt.Checksum)
}
