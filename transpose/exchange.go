package transpose

import (
	"runtime"

	"github.com/notargets/gopencils/pencil"
	"github.com/notargets/gopencils/pencilarray"
	"github.com/notargets/gopencils/permutation"
	"github.com/notargets/gopencils/transport"
	"github.com/notargets/gopencils/types"
	"github.com/notargets/gopencils/utils"
	"golang.org/x/sync/errgroup"
)

const transposeTag = 23

/*
exchange holds the precomputed geometry of one transpose. Blocks are described
by their global logical ranges and always travel in the physical axis order of
the destination, so the receiver unpacks with a contiguous source.

Source strides are reordered once by the relative permutation between the two
pencils; packing then walks the source in destination order in a single pass.
*/
type exchange[T any] struct {
	dst, src *pencilarray.Array[T]
	ps, pd   *pencil.Pencil
	comm     transport.Comm // nil for a local repack
	me       int
	peers    []peer
	ndims    int
	extra    utils.Index

	srcStrides utils.Index // source strides in destination axis order, extras last
	srcLogical utils.Index // source strides by logical axis
	dstLogical utils.Index // destination strides by logical axis
	srcLo      []int       // local origin of each buffer, logical
	dstLo      []int
}

type peer struct {
	send, recv types.Ranges // global blocks sent to and received from the peer
	sendCounts utils.Index  // block shapes in destination order
	recvCounts utils.Index
	nSend      int
	nRecv      int
}

func newExchange[T any](dst, src *pencilarray.Array[T], d int) (x *exchange[T], err error) {
	var (
		ps = src.Pencil()
		pd = dst.Pencil()
		N  = ps.Ndims()
	)
	x = &exchange[T]{
		dst:   dst,
		src:   src,
		ps:    ps,
		pd:    pd,
		ndims: N,
		extra: src.Extra(),
	}
	var rel permutation.Permutation
	if rel, err = pencil.Relative(ps, pd); err != nil {
		return
	}
	var (
		ss = src.Strides()
		ds = dst.Strides()
	)
	x.srcStrides = utils.NewIndex(len(ss))
	rel.ApplyInts(x.srcStrides[:N], ss[:N])
	copy(x.srcStrides[N:], ss[N:])
	x.srcLogical, x.dstLogical = utils.NewIndex(N), utils.NewIndex(N)
	ps.Permutation().UnapplyInts(x.srcLogical, ss[:N])
	pd.Permutation().UnapplyInts(x.dstLogical, ds[:N])
	x.srcLo, x.dstLo = make([]int, N), make([]int, N)
	for a, r := range ps.RangeLocal() {
		x.srcLo[a] = r.Lo
	}
	for a, r := range pd.RangeLocal() {
		x.dstLo[a] = r.Lo
	}
	if d < 0 {
		return
	}
	var (
		topo   = ps.Topology()
		coords = topo.Coords()
		srcMe  = ps.RangeLocal()
		dstMe  = pd.RangeLocal()
	)
	x.comm = topo.Subcomm(d)
	x.me = x.comm.Rank()
	x.peers = make([]peer, x.comm.Size())
	for c := range x.peers {
		coords[d] = c
		pr := &x.peers[topo.SubcommRank(d, c)]
		pr.send = srcMe.Intersect(pd.RangeOf(coords))
		pr.recv = ps.RangeOf(coords).Intersect(dstMe)
		pr.sendCounts, pr.nSend = x.counts(pr.send)
		pr.recvCounts, pr.nRecv = x.counts(pr.recv)
	}
	return
}

// counts is the shape of block r in destination physical order.
func (x *exchange[T]) counts(r types.Ranges) (c utils.Index, n int) {
	c = utils.NewIndex(x.ndims + len(x.extra))
	perm := x.pd.Permutation()
	for i := 0; i < x.ndims; i++ {
		c[i] = r[perm.At(i)].Len()
	}
	copy(c[x.ndims:], x.extra)
	return c, c.Prod()
}

func offset(r types.Ranges, lo []int, strides utils.Index) (off int) {
	for a := range lo {
		off += (r[a].Lo - lo[a]) * strides[a]
	}
	return
}

// packInto copies block r of the source into buf at off, in destination order.
func (x *exchange[T]) packInto(buf []T, off int, r types.Ranges, counts utils.Index) {
	utils.CopyBlock(buf, off, utils.Strides(counts),
		x.src.Data(), offset(r, x.srcLo, x.srcLogical), x.srcStrides, counts)
}

// unpackFrom copies a packed block r from buf at off into the destination.
func (x *exchange[T]) unpackFrom(buf []T, off int, r types.Ranges, counts utils.Index) {
	utils.CopyBlock(x.dst.Data(), offset(r, x.dstLo, x.dstLogical), x.dst.Strides(),
		buf, off, utils.Strides(counts), counts)
}

// copySelf moves the block both held and wanted locally straight from source to destination.
func (x *exchange[T]) copySelf() {
	var (
		r         = x.ps.RangeLocal().Intersect(x.pd.RangeLocal())
		counts, n = x.counts(r)
	)
	if n == 0 {
		return
	}
	utils.CopyBlock(x.dst.Data(), offset(r, x.dstLo, x.dstLogical), x.dst.Strides(),
		x.src.Data(), offset(r, x.srcLo, x.srcLogical), x.srcStrides, counts)
}

func newGroup() *errgroup.Group {
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	return g
}

func (x *exchange[T]) pairwise() error {
	var (
		recvBufs = make([][]T, len(x.peers))
		sendBufs = make([][]T, len(x.peers))
		reqs     = make([]transport.Request, 0, 2*len(x.peers))
		g        = newGroup()
	)
	for c := range x.peers {
		if pr := &x.peers[c]; c != x.me && pr.nRecv > 0 {
			recvBufs[c] = make([]T, pr.nRecv)
			reqs = append(reqs, x.comm.Irecv(recvBufs[c], c, transposeTag))
		}
	}
	for c := range x.peers {
		if pr := &x.peers[c]; c != x.me && pr.nSend > 0 {
			g.Go(func() error {
				sendBufs[c] = make([]T, pr.nSend)
				x.packInto(sendBufs[c], 0, pr.send, pr.sendCounts)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for c, buf := range sendBufs {
		if buf != nil {
			reqs = append(reqs, x.comm.Isend(buf, c, transposeTag))
		}
	}
	x.copySelf()
	transport.Waitall(reqs)
	for c, buf := range recvBufs {
		if buf != nil {
			x.unpackFrom(buf, 0, x.peers[c].recv, x.peers[c].recvCounts)
		}
	}
	return nil
}

func (x *exchange[T]) collective() error {
	var (
		np                     = len(x.peers)
		sendCounts, sendDispls = make([]int, np), make([]int, np)
		recvCounts, recvDispls = make([]int, np), make([]int, np)
		nSend, nRecv           int
		g                      = newGroup()
	)
	for c := range x.peers {
		if c == x.me {
			continue
		}
		sendCounts[c], sendDispls[c] = x.peers[c].nSend, nSend
		recvCounts[c], recvDispls[c] = x.peers[c].nRecv, nRecv
		nSend += sendCounts[c]
		nRecv += recvCounts[c]
	}
	var (
		sendBuf = make([]T, nSend)
		recvBuf = make([]T, nRecv)
	)
	for c := range x.peers {
		if pr := &x.peers[c]; sendCounts[c] > 0 {
			g.Go(func() error {
				x.packInto(sendBuf, sendDispls[c], pr.send, pr.sendCounts)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	x.copySelf()
	x.comm.Alltoallv(sendBuf, sendCounts, sendDispls, recvBuf, recvCounts, recvDispls)
	for c := range x.peers {
		if recvCounts[c] > 0 {
			x.unpackFrom(recvBuf, recvDispls[c], x.peers[c].recv, x.peers[c].recvCounts)
		}
	}
	return nil
}
