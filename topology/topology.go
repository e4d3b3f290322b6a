// Package topology builds the Cartesian process grid that pencils are
// decomposed over, with one sub-communicator per grid axis.
package topology

import (
	"fmt"
	"sort"

	"github.com/notargets/gopencils/transport"
	"github.com/notargets/gopencils/types"
	"github.com/notargets/gopencils/utils"
	"github.com/pkg/errors"
)

/*
Topology is a non-periodic D dimensional grid of processes. Ranks are laid out
row major over the grid (last axis fastest) without reordering, so the rank in
the Cartesian communicator equals the rank in the base communicator.

Subcomm(d) groups the processes sharing every coordinate except the one along
axis d; its rank order follows that coordinate, so the sub-communicator rank of
a process is Coords()[d].
*/
type Topology struct {
	comm     transport.Comm
	dims     utils.Index
	coords   utils.Index
	subcomms []transport.Comm
}

// New is collective over comm: every rank must call it with the same dims.
func New(comm transport.Comm, dims []int) (tp *Topology, err error) {
	if len(dims) == 0 {
		err = errors.Wrap(types.ErrArgument, "topology needs at least one dimension")
		return
	}
	for d, n := range dims {
		if n < 1 {
			err = errors.Wrapf(types.ErrArgument, "topology dimension %d has %d processes", d, n)
			return
		}
	}
	if p := utils.Index(dims).Prod(); p != comm.Size() {
		err = errors.Wrapf(types.ErrArgument, "topology %v holds %d processes, communicator has %d",
			dims, p, comm.Size())
		return
	}
	tp = &Topology{
		dims:     utils.Index(dims).Copy(),
		subcomms: make([]transport.Comm, len(dims)),
	}
	tp.comm = comm.Split(0, comm.Rank())
	tp.coords = tp.CoordsOf(tp.comm.Rank())
	for d := range dims {
		base := tp.coords.Copy()
		base[d] = 0
		tp.subcomms[d] = tp.comm.Split(tp.RankOf(base), tp.coords[d])
	}
	return
}

// Comm is the Cartesian communicator spanning the whole grid.
func (tp *Topology) Comm() transport.Comm { return tp.comm }

func (tp *Topology) Ndims() int { return len(tp.dims) }

func (tp *Topology) Dims() []int { return tp.dims.Copy() }

func (tp *Topology) Size() int { return tp.dims.Prod() }

// Coords of this process on the grid.
func (tp *Topology) Coords() []int { return tp.coords.Copy() }

func (tp *Topology) Subcomm(d int) transport.Comm {
	return tp.subcomms[d]
}

// CoordsOf returns the grid coordinates of a Cartesian rank.
func (tp *Topology) CoordsOf(rank int) (coords utils.Index) {
	if rank < 0 || rank >= tp.Size() {
		panic(fmt.Sprintf("rank %d out of range for topology %v", rank, tp.dims))
	}
	coords = utils.NewIndex(len(tp.dims))
	for d := len(tp.dims) - 1; d >= 0; d-- {
		coords[d] = rank % tp.dims[d]
		rank /= tp.dims[d]
	}
	return
}

// RankOf returns the Cartesian rank of the process at coords.
func (tp *Topology) RankOf(coords []int) (rank int) {
	utils.CheckBounds(coords, tp.dims)
	for d, c := range coords {
		rank = rank*tp.dims[d] + c
	}
	return
}

// SubcommRank is the rank, in Subcomm(d), of the process with coordinate coord along d.
func (tp *Topology) SubcommRank(d, coord int) int {
	if coord < 0 || coord >= tp.dims[d] {
		panic(fmt.Sprintf("coordinate %d out of range along topology axis %d", coord, d))
	}
	return coord
}

func (tp *Topology) String() string {
	return fmt.Sprintf("Topology%v at %v", tp.dims, tp.coords)
}

/*
DimsCreate proposes a balanced grid of ndims axes holding nprocs processes, in
non-increasing order, like MPI_Dims_create. Prime factors are handed out
largest first to the axis with the fewest processes so far.
*/
func DimsCreate(nprocs, ndims int) (dims []int, err error) {
	if nprocs < 1 || ndims < 1 {
		err = errors.Wrapf(types.ErrArgument, "cannot lay out %d processes on %d axes", nprocs, ndims)
		return
	}
	var factors []int
	for n, f := nprocs, 2; n > 1; {
		if f*f > n {
			factors = append(factors, n)
			break
		}
		if n%f == 0 {
			factors = append(factors, f)
			n /= f
		} else {
			f++
		}
	}
	dims = make([]int, ndims)
	for d := range dims {
		dims[d] = 1
	}
	for i := len(factors) - 1; i >= 0; i-- {
		smallest := 0
		for d := range dims {
			if dims[d] < dims[smallest] {
				smallest = d
			}
		}
		dims[smallest] *= factors[i]
	}
	sort.Sort(sort.Reverse(sort.IntSlice(dims)))
	return
}
