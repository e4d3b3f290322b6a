package pencilarray

import (
	"github.com/notargets/gopencils/types"
	"github.com/notargets/gopencils/utils"
	"github.com/pkg/errors"
)

const gatherTag = 17

/*
Gather collects a onto rank root of the Cartesian communicator. It is
collective: every rank sends its buffer, untouched, and root scatters each
block into the logical order of the result. Ranks other than root return nil.
*/
func Gather[T any](a *Array[T], root int) (g *GlobalArray[T], err error) {
	var (
		p    = a.pencil
		topo = p.Topology()
		c    = topo.Comm()
		nx   = a.extra.Prod()
	)
	if root < 0 || root >= c.Size() {
		err = errors.Wrapf(types.ErrArgument, "gather root %d outside communicator of size %d",
			root, c.Size())
		return
	}
	if c.Rank() != root {
		if len(a.data) != 0 {
			c.Isend(a.data, root, gatherTag).Wait()
		}
		return
	}
	g = NewGlobalArray[T](a.SizeGlobal(false))
	var (
		gStrides = utils.Strides(g.Shape)
		table    = p.RangeTable()
		N        = a.ndims
		rank     = len(a.shape)
	)
	for r, block := range table {
		n := block.Volume() * nx
		if n == 0 {
			continue
		}
		buf := a.data
		if r != root {
			buf = make([]T, n)
			c.Irecv(buf, r, gatherTag).Wait()
		}
		var (
			counts     = utils.NewIndex(rank)
			dstStrides = utils.NewIndex(rank)
			off        int
		)
		// The block arrives in the physical order of the pencil
		for i := 0; i < N; i++ {
			ax := a.perm.At(i)
			counts[i] = block[ax].Len()
			dstStrides[i] = gStrides[ax]
		}
		for i := N; i < rank; i++ {
			counts[i] = a.shape[i]
			dstStrides[i] = gStrides[i]
		}
		for ax := 0; ax < N; ax++ {
			off += block[ax].Lo * gStrides[ax]
		}
		utils.CopyBlock(g.Data, off, dstStrides, buf, 0, utils.Strides(counts), counts)
	}
	return
}
