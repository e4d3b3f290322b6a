package pencilarray

import (
	"fmt"
	"reflect"

	"github.com/notargets/gopencils/types"
	"github.com/notargets/gopencils/utils"
	"github.com/pkg/errors"
)

// GlobalView is a read only view of an Array addressed by global logical
// indices followed by the extra indices.
type GlobalView[T any] struct {
	a      *Array[T]
	ranges types.Ranges
}

// Ranges is the block of global indices held locally.
func (g GlobalView[T]) Ranges() types.Ranges {
	r := make(types.Ranges, len(g.ranges))
	copy(r, g.ranges)
	return r
}

// Contains reports whether the global index idx is held locally.
func (g GlobalView[T]) Contains(idx ...int) bool {
	if len(idx) != len(g.a.shape) {
		return false
	}
	for i, val := range idx {
		if i < len(g.ranges) {
			if !g.ranges[i].Contains(val) {
				return false
			}
		} else if val < 0 || val >= g.a.shape[i] {
			return false
		}
	}
	return true
}

func (g GlobalView[T]) At(idx ...int) T {
	if !g.Contains(idx...) {
		panic(fmt.Sprintf("global index %v outside local block %v", idx, g.ranges))
	}
	local := make([]int, len(idx))
	for i, val := range idx {
		local[i] = val
		if i < len(g.ranges) {
			local[i] -= g.ranges[i].Lo
		}
	}
	return g.a.At(local...)
}

// GlobalArray is a whole distributed array collected on one rank, in logical
// axis order with the extra dimensions last, column major.
type GlobalArray[T any] struct {
	Shape []int
	Data  []T
}

func NewGlobalArray[T any](shape []int) *GlobalArray[T] {
	return &GlobalArray[T]{
		Shape: utils.Index(shape).Copy(),
		Data:  make([]T, utils.Index(shape).Prod()),
	}
}

func (g *GlobalArray[T]) At(idx ...int) T {
	utils.CheckBounds(idx, g.Shape)
	return g.Data[utils.CartesianToLinear(idx, utils.Strides(g.Shape))]
}

// Block copies out the sub-array selected by one range per axis.
func (g *GlobalArray[T]) Block(r types.Ranges) (b *GlobalArray[T], err error) {
	if len(r) != len(g.Shape) {
		err = errors.Wrapf(types.ErrDimensionMismatch, "%d ranges for an array of rank %d", len(r), len(g.Shape))
		return
	}
	for i, rr := range r {
		if rr.Lo < 0 || rr.Hi > g.Shape[i] {
			err = errors.Wrapf(types.ErrBounds, "range %s outside axis %d of length %d", rr, i, g.Shape[i])
			return
		}
	}
	var (
		strides = utils.Strides(g.Shape)
		off     int
	)
	for i, rr := range r {
		off += rr.Lo * strides[i]
	}
	b = NewGlobalArray[T](r.Lens())
	utils.CopyBlock(b.Data, 0, utils.Strides(b.Shape), g.Data, off, strides, b.Shape)
	return
}

// Equal reports whether both arrays have the same shape and elements.
func (g *GlobalArray[T]) Equal(o *GlobalArray[T]) bool {
	if g == nil || o == nil {
		return g == o
	}
	return utils.Index(g.Shape).Equal(o.Shape) && reflect.DeepEqual(g.Data, o.Data)
}
