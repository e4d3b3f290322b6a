// Package pencilarray holds the local block of a distributed array described by
// a pencil, along with bundles of such arrays sharing one allocation and the
// gather of a distributed array onto one rank.
package pencilarray

import (
	"fmt"
	"iter"

	"github.com/notargets/gopencils/pencil"
	"github.com/notargets/gopencils/permutation"
	"github.com/notargets/gopencils/transport"
	"github.com/notargets/gopencils/types"
	"github.com/notargets/gopencils/utils"
	"github.com/pkg/errors"
)

/*
Array is the local block of a distributed array. The buffer is column major
with physical shape

	Apply(perm, SizeLocal(false)) ++ Extra()

so the extra dimensions are never permuted and never decomposed.

Logical indices (At, Set) are local to the block: N array indices in logical
axis order followed by one index per extra dimension. Permuted indices
(AtPermuted, SetPermuted) address the buffer in its physical axis order.
*/
type Array[T any] struct {
	pencil  *pencil.Pencil
	perm    permutation.Permutation
	data    []T
	ndims   int // logical array rank, extras excluded
	extra   utils.Index
	shape   utils.Index // Physical shape, extras included
	strides utils.Index
}

// New allocates a zeroed array on p with the given extra dimensions.
func New[T any](p *pencil.Pencil, extra ...int) (a *Array[T], err error) {
	for k, n := range extra {
		if n < 0 {
			err = errors.Wrapf(types.ErrArgument, "extra dimension %d has extent %d", k, n)
			return
		}
	}
	shape := append(utils.Index(p.SizeLocal(true)), extra...)
	return Wrap(p, make([]T, shape.Prod()), shape)
}

// Wrap binds an existing buffer of physical shape shape to p. The first
// p.Ndims() entries of shape must be the permuted local size of p, the rest are
// the extra dimensions.
func Wrap[T any](p *pencil.Pencil, data []T, shape []int) (a *Array[T], err error) {
	var (
		N     = p.Ndims()
		local = utils.Index(p.SizeLocal(true))
	)
	if len(shape) < N || !local.Equal(shape[:N]) {
		err = errors.Wrapf(types.ErrDimensionMismatch, "buffer shape %v does not start with local size %v of %s",
			shape, local, p)
		return
	}
	for k, n := range shape[N:] {
		if n < 0 {
			err = errors.Wrapf(types.ErrDimensionMismatch, "buffer shape %v: extra dimension %d has extent %d",
				shape, k, n)
			return
		}
	}
	if len(shape) > utils.MaxRank {
		err = errors.Wrapf(types.ErrArgument, "buffer shape %v has more than %d dimensions",
			shape, utils.MaxRank)
		return
	}
	if n := utils.Index(shape).Prod(); len(data) != n {
		err = errors.Wrapf(types.ErrDimensionMismatch, "buffer of length %d wrapped with shape %v (%d elements)",
			len(data), shape, n)
		return
	}
	a = &Array[T]{
		pencil: p,
		perm:   p.Permutation(),
		data:   data,
		ndims:  N,
		extra:  utils.Index(shape[N:]).Copy(),
		shape:  utils.Index(shape).Copy(),
	}
	a.strides = utils.Strides(a.shape)
	return
}

func (a *Array[T]) Pencil() *pencil.Pencil { return a.pencil }

func (a *Array[T]) Permutation() permutation.Permutation { return a.perm }

func (a *Array[T]) Comm() transport.Comm { return a.pencil.Comm() }

// Data is the local buffer in physical order.
func (a *Array[T]) Data() []T { return a.data }

func (a *Array[T]) Extra() []int { return a.extra.Copy() }

// Shape is the physical shape of the buffer.
func (a *Array[T]) Shape() []int { return a.shape.Copy() }

func (a *Array[T]) Strides() []int { return a.strides.Copy() }

func (a *Array[T]) Len() int { return len(a.data) }

// SizeGlobal is the global size followed by the extra dimensions.
func (a *Array[T]) SizeGlobal(permute bool) []int {
	return append(a.pencil.SizeGlobal(permute), a.extra...)
}

// SizeLocal is the local size followed by the extra dimensions.
func (a *Array[T]) SizeLocal(permute bool) []int {
	return append(a.pencil.SizeLocal(permute), a.extra...)
}

// Similar allocates a zeroed array with the same pencil and extra dimensions.
func (a *Array[T]) Similar() *Array[T] {
	b, err := New[T](a.pencil, a.extra...)
	if err != nil {
		panic(err)
	}
	return b
}

func (a *Array[T]) checkCount(idx []int) {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("wrong number of indices: have %d, need %d", len(idx), len(a.shape)))
	}
}

func (a *Array[T]) checkAxis(i, val int) {
	if val < 0 || val >= a.shape[i] {
		panic(fmt.Sprintf("index out of bounds: physical axis %d, index = %d, max_bounds = %d",
			i, val, a.shape[i]-1))
	}
}

// offset converts a local logical index into a buffer position.
func (a *Array[T]) offset(idx []int) (n int) {
	a.checkCount(idx)
	for i := 0; i < a.ndims; i++ {
		val := idx[a.perm.At(i)]
		a.checkAxis(i, val)
		n += val * a.strides[i]
	}
	for i := a.ndims; i < len(idx); i++ {
		a.checkAxis(i, idx[i])
		n += idx[i] * a.strides[i]
	}
	return
}

func (a *Array[T]) permutedOffset(idx []int) int {
	utils.CheckBounds(idx, a.shape)
	return utils.CartesianToLinear(idx, a.strides)
}

func (a *Array[T]) At(idx ...int) T { return a.data[a.offset(idx)] }

func (a *Array[T]) Set(v T, idx ...int) { a.data[a.offset(idx)] = v }

func (a *Array[T]) AtPermuted(idx ...int) T { return a.data[a.permutedOffset(idx)] }

func (a *Array[T]) SetPermuted(v T, idx ...int) { a.data[a.permutedOffset(idx)] = v }

func (a *Array[T]) AtLinear(n int) T { return a.data[n] }

func (a *Array[T]) SetLinear(n int, v T) { a.data[n] = v }

// PermutedIndex is the physical index of the element at buffer position n.
func (a *Array[T]) PermutedIndex(n int) (idx []int) {
	if n < 0 || n >= len(a.data) {
		panic(fmt.Sprintf("linear index %d out of range 0..%d", n, len(a.data)-1))
	}
	idx = make([]int, len(a.shape))
	utils.LinearToCartesian(n, a.shape, idx)
	return
}

// LogicalIndex is the local logical index of the element at buffer position n.
func (a *Array[T]) LogicalIndex(n int) (idx []int) {
	phys := a.PermutedIndex(n)
	idx = make([]int, len(phys))
	a.toLogical(idx, phys)
	return
}

func (a *Array[T]) toLogical(idx, phys []int) {
	a.perm.UnapplyInts(idx[:a.ndims], phys[:a.ndims])
	copy(idx[a.ndims:], phys[a.ndims:])
}

/*
All visits the buffer in storage order, yielding each buffer position with the
local logical index of its element. The index slice is reused between
iterations and must be copied to be retained.
*/
func (a *Array[T]) All() iter.Seq2[int, []int] {
	return func(yield func(int, []int) bool) {
		if len(a.data) == 0 {
			return
		}
		var (
			phys  = make([]int, len(a.shape))
			logic = make([]int, len(a.shape))
		)
		for n := range a.data {
			a.toLogical(logic, phys)
			if !yield(n, logic) {
				return
			}
			// odometer over the physical shape, first axis fastest
			for i := range phys {
				phys[i]++
				if phys[i] < a.shape[i] {
					break
				}
				phys[i] = 0
			}
		}
	}
}

// Fill sets every element from its global logical index, extras included.
func (a *Array[T]) Fill(f func(global []int) T) {
	var (
		lo     = a.pencil.RangeLocal()
		global = make([]int, len(a.shape))
	)
	for n, idx := range a.All() {
		for i := range global {
			global[i] = idx[i]
			if i < a.ndims {
				global[i] += lo[i].Lo
			}
		}
		a.data[n] = f(global)
	}
}

// Global views the local block through global logical indices.
func (a *Array[T]) Global() GlobalView[T] {
	return GlobalView[T]{a: a, ranges: a.pencil.RangeLocal()}
}

func (a *Array[T]) String() string {
	return fmt.Sprintf("Array{shape: %v, extra: %v, on %s}", a.shape, a.extra, a.pencil)
}
