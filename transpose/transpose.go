// Package transpose redistributes pencil arrays between decompositions.
package transpose

import (
	"strings"

	"github.com/notargets/gopencils/pencil"
	"github.com/notargets/gopencils/pencilarray"
	"github.com/notargets/gopencils/types"
	"github.com/notargets/gopencils/utils"
	"github.com/pkg/errors"
)

// Method selects the communication strategy of a transpose.
type Method int

const (
	// Pairwise posts one non-blocking send and receive per peer
	Pairwise Method = iota
	// Collective concatenates all blocks and calls a single Alltoallv
	Collective
)

func (m Method) String() string {
	switch m {
	case Pairwise:
		return "pairwise"
	case Collective:
		return "collective"
	default:
		return "unknown"
	}
}

func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pairwise":
		return Pairwise, nil
	case "collective", "alltoallv":
		return Collective, nil
	}
	return Pairwise, errors.Wrapf(types.ErrArgument, "unknown transpose method %q", s)
}

/*
Transpose copies src into dst, whose pencils may differ in permutation and in
at most one decomposed axis. When the decompositions are equal the data is
repacked locally without any message. Otherwise the blocks travel over the
sub-communicator of the topology axis whose decomposition changes.

Transpose is collective over that sub-communicator. The pencils must be
consistent across ranks; no check is made.
*/
func Transpose[T any](dst, src *pencilarray.Array[T], method Method) (err error) {
	var (
		ps = src.Pencil()
		pd = dst.Pencil()
		d  int
	)
	if d, err = validate(dst, src); err != nil {
		return
	}
	if aliased(dst.Data(), src.Data()) {
		if ps == pd || (pencil.SameDecomposition(ps, pd) && ps.Permutation().Equal(pd.Permutation())) {
			return nil
		}
		return errors.Wrapf(types.ErrArgument, "transpose in place from %s to %s", ps, pd)
	}
	var x *exchange[T]
	if x, err = newExchange(dst, src, d); err != nil {
		return
	}
	if d < 0 {
		x.copySelf()
		return
	}
	switch method {
	case Pairwise:
		err = x.pairwise()
	case Collective:
		err = x.collective()
	default:
		err = errors.Wrapf(types.ErrArgument, "unknown transpose method %d", int(method))
	}
	return
}

// validate returns the topology axis along which the decompositions differ,
// -1 if they are equal.
func validate[T any](dst, src *pencilarray.Array[T]) (d int, err error) {
	var (
		ps = src.Pencil()
		pd = dst.Pencil()
	)
	d = -1
	switch {
	case ps.Topology() != pd.Topology():
		err = errors.Wrapf(types.ErrArgument, "transpose between topologies %s and %s",
			ps.Topology(), pd.Topology())
		return
	case !utils.Index(ps.SizeGlobal(false)).Equal(pd.SizeGlobal(false)):
		err = errors.Wrapf(types.ErrDimensionMismatch, "transpose between global sizes %v and %v",
			ps.SizeGlobal(false), pd.SizeGlobal(false))
		return
	case !utils.Index(src.Extra()).Equal(dst.Extra()):
		err = errors.Wrapf(types.ErrDimensionMismatch, "transpose between extra dimensions %v and %v",
			src.Extra(), dst.Extra())
		return
	}
	var (
		ds = ps.Decomposition()
		dd = pd.Decomposition()
	)
	for i := range ds {
		if ds[i] == dd[i] {
			continue
		}
		if d >= 0 {
			err = errors.Wrapf(types.ErrArgument, "decompositions %v and %v differ along more than one topology axis",
				ds, dd)
			return
		}
		d = i
	}
	return
}

func aliased[T any](a, b []T) bool {
	return len(a) != 0 && len(b) != 0 && &a[0] == &b[0]
}
