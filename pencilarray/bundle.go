package pencilarray

import (
	"github.com/notargets/gopencils/pencil"
	"github.com/notargets/gopencils/types"
	"github.com/notargets/gopencils/utils"
	"github.com/pkg/errors"
)

// MaxBundle is the largest number of arrays a Bundle holds.
const MaxBundle = 4

// Position selects an array of a Bundle. Only First, Second, Third and
// Fourth implement it.
type Position interface {
	index() int
}

type position int

func (p position) index() int { return int(p) }

const (
	First position = iota
	Second
	Third
	Fourth
)

/*
Bundle is a group of arrays, typically the stages of one transpose chain,
carved out of a single allocation. Each view is capacity limited so appending
to one can never spill into its neighbour.
*/
type Bundle[T any] struct {
	data   []T
	arrays []*Array[T]
}

func NewBundle[T any](pencils []*pencil.Pencil, extra ...int) (b *Bundle[T], err error) {
	M := len(pencils)
	if M < 1 || M > MaxBundle {
		err = errors.Wrapf(types.ErrArgument, "bundle of %d arrays, need 1..%d", M, MaxBundle)
		return
	}
	for k, n := range extra {
		if n < 0 {
			err = errors.Wrapf(types.ErrArgument, "extra dimension %d has extent %d", k, n)
			return
		}
	}
	var (
		nx    = utils.Index(extra).Prod()
		total int
	)
	for _, p := range pencils {
		total += p.LengthLocal() * nx
	}
	b = &Bundle[T]{
		data:   make([]T, total),
		arrays: make([]*Array[T], M),
	}
	var off int
	for i, p := range pencils {
		n := p.LengthLocal() * nx
		shape := append(utils.Index(p.SizeLocal(true)), extra...)
		if b.arrays[i], err = Wrap(p, b.data[off:off+n:off+n], shape); err != nil {
			return nil, err
		}
		off += n
	}
	return
}

func (b *Bundle[T]) At(pos Position) (*Array[T], error) {
	i := pos.index()
	if i < 0 || i >= len(b.arrays) {
		return nil, errors.Wrapf(types.ErrBounds, "position %d in a bundle of %d arrays", i+1, len(b.arrays))
	}
	return b.arrays[i], nil
}

func (b *Bundle[T]) Len() int { return len(b.arrays) }

// Data is the allocation shared by every array of the bundle.
func (b *Bundle[T]) Data() []T { return b.data }
