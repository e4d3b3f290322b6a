// Package pencil describes how an N dimensional array is decomposed over a
// process topology and laid out in local memory.
package pencil

import (
	"fmt"

	"github.com/notargets/gopencils/permutation"
	"github.com/notargets/gopencils/topology"
	"github.com/notargets/gopencils/transport"
	"github.com/notargets/gopencils/types"
	"github.com/notargets/gopencils/utils"
	"github.com/pkg/errors"
)

/*
Pencil is an immutable decomposition descriptor. Axis Decomposition()[d] of the
global array is split across topology axis d in balanced contiguous blocks;
the other axes are held whole by every process. The local block is stored in
memory with its axes reordered by Permutation().

Block split: an extent E over G processes gives E/G elements to each process,
plus one more to the processes with coordinate below E%G.
*/
type Pencil struct {
	topo   *topology.Topology
	size   utils.Index // global extents, logical order
	decomp []int
	perm   permutation.Permutation
	axisOf []int                 // topology axis splitting each array axis, -1 if none
	splits []*utils.PartitionMap // block table of each decomposed axis
	local  types.Ranges
}

// New validates the decomposition and computes the block tables. decomp holds
// one distinct array axis per topology axis.
func New(topo *topology.Topology, size []int, decomp []int,
	perm permutation.Permutation) (p *Pencil, err error) {
	var (
		N = len(size)
		D = topo.Ndims()
	)
	switch {
	case N == 0 || N > permutation.MaxDims:
		err = errors.Wrapf(types.ErrArgument, "pencil rank %d not in 1..%d", N, permutation.MaxDims)
		return
	case len(decomp) != D:
		err = errors.Wrapf(types.ErrArgument, "decomposition %v must name %d axes, one per topology axis",
			decomp, D)
		return
	}
	for a, n := range size {
		if n < 1 {
			err = errors.Wrapf(types.ErrArgument, "global size %v: axis %d has extent %d", size, a, n)
			return
		}
	}
	if err = perm.CheckLen(N); err != nil {
		return
	}
	p = &Pencil{
		topo:   topo,
		size:   utils.Index(size).Copy(),
		decomp: make([]int, D),
		perm:   perm,
		axisOf: make([]int, N),
		splits: make([]*utils.PartitionMap, D),
	}
	for a := range p.axisOf {
		p.axisOf[a] = -1
	}
	dims := topo.Dims()
	for d, a := range decomp {
		switch {
		case a < 0 || a >= N:
			err = errors.Wrapf(types.ErrArgument, "decomposition %v: axis %d outside 0..%d", decomp, a, N-1)
			return nil, err
		case p.axisOf[a] != -1:
			err = errors.Wrapf(types.ErrArgument, "decomposition %v: axis %d repeated", decomp, a)
			return nil, err
		}
		p.axisOf[a] = d
		p.decomp[d] = a
		p.splits[d] = utils.NewPartitionMap(dims[d], size[a])
	}
	p.local = p.RangeOf(topo.Coords())
	return
}

// NewPermuted is New with the permutation given as raw values, as read from a
// run file. An empty perm is Identity.
func NewPermuted(topo *topology.Topology, size []int, decomp []int, perm []int) (p *Pencil, err error) {
	P := permutation.Identity
	if len(perm) != 0 {
		if P, err = permutation.New(perm...); err != nil {
			return
		}
	}
	return New(topo, size, decomp, P)
}

// Derive returns a pencil on the same topology and global size. A nil decomp
// keeps the current decomposition.
func (p *Pencil) Derive(decomp []int, perm permutation.Permutation) (*Pencil, error) {
	if decomp == nil {
		decomp = p.decomp
	}
	return New(p.topo, p.size, decomp, perm)
}

func (p *Pencil) Topology() *topology.Topology { return p.topo }

func (p *Pencil) Comm() transport.Comm { return p.topo.Comm() }

func (p *Pencil) Ndims() int { return len(p.size) }

func (p *Pencil) Decomposition() []int {
	d := make([]int, len(p.decomp))
	copy(d, p.decomp)
	return d
}

func (p *Pencil) Permutation() permutation.Permutation { return p.perm }

// DecomposedAlong returns the topology axis splitting array axis a, or -1.
func (p *Pencil) DecomposedAlong(a int) int { return p.axisOf[a] }

func (p *Pencil) permuted(x utils.Index, permute bool) utils.Index {
	if !permute {
		return x
	}
	y := utils.NewIndex(len(x))
	p.perm.ApplyInts(y, x)
	return y
}

// SizeGlobal is the global shape, in memory order if permute is set.
func (p *Pencil) SizeGlobal(permute bool) []int {
	return p.permuted(p.size.Copy(), permute)
}

// SizeLocal is the shape of this process's block, in memory order if permute is set.
func (p *Pencil) SizeLocal(permute bool) []int {
	return p.permuted(utils.Index(p.local.Lens()), permute)
}

func (p *Pencil) LengthLocal() int { return p.local.Volume() }

// RangeLocal is this process's block in global logical indices.
func (p *Pencil) RangeLocal() types.Ranges {
	r := make(types.Ranges, len(p.local))
	copy(r, p.local)
	return r
}

// RangeAlong is the block of the axis decomposed along topology axis d held
// by the processes with coordinate coord.
func (p *Pencil) RangeAlong(d, coord int) types.Range {
	return p.splits[d].GetBucketRange(coord)
}

// RangeOf is the block, in global logical indices, of the process at coords.
func (p *Pencil) RangeOf(coords []int) (r types.Ranges) {
	r = make(types.Ranges, len(p.size))
	for a, n := range p.size {
		if d := p.axisOf[a]; d >= 0 {
			r[a] = p.RangeAlong(d, coords[d])
		} else {
			r[a] = types.NewRange(0, n)
		}
	}
	return
}

// OwnerOf returns the Cartesian rank holding the element at global logical
// index idx, or -1 if idx is outside the array.
func (p *Pencil) OwnerOf(idx []int) (rank int) {
	if len(idx) != len(p.size) {
		return -1
	}
	coords := make([]int, p.topo.Ndims())
	for a, val := range idx {
		if val < 0 || val >= p.size[a] {
			return -1
		}
		if d := p.axisOf[a]; d >= 0 {
			coords[d], _ = p.splits[d].GetBucket(val)
		}
	}
	return p.topo.RankOf(coords)
}

// RangeTable lists the block of every process, indexed by Cartesian rank.
func (p *Pencil) RangeTable() (table []types.Ranges) {
	table = make([]types.Ranges, p.topo.Size())
	for rank := range table {
		table[rank] = p.RangeOf(p.topo.CoordsOf(rank))
	}
	return
}

// SameDecomposition reports whether a and b split the same axes along the same topology axes.
func SameDecomposition(a, b *Pencil) bool {
	if a.topo != b.topo || len(a.decomp) != len(b.decomp) || !a.size.Equal(b.size) {
		return false
	}
	for d := range a.decomp {
		if a.decomp[d] != b.decomp[d] {
			return false
		}
	}
	return true
}

// Relative returns the permutation taking a's memory order to b's.
func Relative(a, b *Pencil) (permutation.Permutation, error) {
	if a.Ndims() != b.Ndims() {
		return permutation.Identity, errors.Wrapf(types.ErrArgument,
			"relative permutation between pencils of rank %d and %d", a.Ndims(), b.Ndims())
	}
	return permutation.Relative(a.perm, b.perm)
}

func (p *Pencil) String() string {
	return fmt.Sprintf("Pencil{size: %v, decomposition: %v, permutation: %s, topology: %v}",
		p.size, p.decomp, p.perm, p.topo.Dims())
}

const fingerprintLen = 3 + 3*permutation.MaxDims

func (p *Pencil) fingerprint() (f []int) {
	f = make([]int, fingerprintLen)
	for i := range f {
		f[i] = -1
	}
	f[0], f[1], f[2] = len(p.size), len(p.decomp), 0
	for a, n := range p.size {
		f[3+a] = n
	}
	for d, a := range p.decomp {
		f[3+permutation.MaxDims+d] = a
		f[3+2*permutation.MaxDims+d] = p.topo.Dims()[d]
	}
	if p.perm.IsExplicit() && !p.perm.IsIdentity() {
		// identity permutations of any form are interchangeable
		code := 0
		for _, v := range p.perm.Values() {
			code = code*(permutation.MaxDims+1) + v + 1
		}
		f[2] = code
	}
	return
}

/*
CheckConsistent is a collective debugging aid: it compares the descriptor of p
across all ranks of the topology and fails with types.ErrInconsistent if any
rank disagrees. The transpose engine never calls it; it trusts its callers.
*/
func CheckConsistent(p *Pencil) error {
	var (
		c    = p.Comm()
		mine = p.fingerprint()
		all  = make([]int, fingerprintLen*c.Size())
	)
	c.Allgather(mine, all)
	for r := 0; r < c.Size(); r++ {
		theirs := all[r*fingerprintLen : (r+1)*fingerprintLen]
		if !utils.Index(theirs).Equal(mine) {
			return errors.Wrapf(types.ErrInconsistent, "rank %d disagrees with rank %d on %s",
				r, c.Rank(), p)
		}
	}
	return nil
}
