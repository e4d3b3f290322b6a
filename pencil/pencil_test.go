package pencil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/notargets/gopencils/permutation"
	"github.com/notargets/gopencils/topology"
	"github.com/notargets/gopencils/transport"
	"github.com/notargets/gopencils/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// onGrid runs fn on every rank of a topology with the given dims.
func onGrid(t *testing.T, dims []int, fn func(tp *topology.Topology) error) {
	np := 1
	for _, n := range dims {
		np *= n
	}
	err := transport.Launch(np, func(c transport.Comm) error {
		tp, err := topology.New(c, dims)
		if err != nil {
			return err
		}
		return fn(tp)
	})
	require.NoError(t, err)
}

func TestPencilGeometry(t *testing.T) {
	var (
		size = []int{16, 21, 41}
		lock = make(chan types.Ranges, 4)
	)
	onGrid(t, []int{2, 2}, func(tp *topology.Topology) error {
		p1, err := New(tp, size, []int{1, 2}, permutation.Identity)
		if err != nil {
			return err
		}
		p2, err := p1.Derive([]int{0, 2}, permutation.MustNew(1, 2, 0))
		if err != nil {
			return err
		}
		var (
			coords = tp.Coords()
			r1     = p1.RangeLocal()
			r2     = p2.RangeLocal()
		)
		// axis 1 (21) over 2: [0,11) [11,21); axis 2 (41) over 2: [0,21) [21,41)
		want1 := types.Ranges{{Lo: 0, Hi: 16}, {Lo: 11 * coords[0], Hi: 11 + 10*coords[0]}, {Lo: 21 * coords[1], Hi: 21 + 20*coords[1]}}
		if !r1.Equal(want1) {
			return fmt.Errorf("p1 at %v: %v, want %v", coords, r1, want1)
		}
		want2 := types.Ranges{{Lo: 8 * coords[0], Hi: 8 + 8*coords[0]}, {Lo: 0, Hi: 21}, {Lo: 21 * coords[1], Hi: 21 + 20*coords[1]}}
		if !r2.Equal(want2) {
			return fmt.Errorf("p2 at %v: %v, want %v", coords, r2, want2)
		}
		local := p2.SizeLocal(false)
		perm := p2.SizeLocal(true)
		if fmt.Sprint(perm) != fmt.Sprint([]int{local[1], local[2], local[0]}) {
			return fmt.Errorf("permuted local size %v of %v", perm, local)
		}
		if fmt.Sprint(p2.SizeGlobal(true)) != "[21 41 16]" || fmt.Sprint(p2.SizeGlobal(false)) != "[16 21 41]" {
			return fmt.Errorf("global size %v", p2.SizeGlobal(true))
		}
		if p2.LengthLocal() != r2.Volume() {
			return fmt.Errorf("local length %d", p2.LengthLocal())
		}
		if p2.DecomposedAlong(0) != 0 || p2.DecomposedAlong(1) != -1 || p2.DecomposedAlong(2) != 1 {
			return fmt.Errorf("decomposition lookup")
		}
		// Every rank can compute every other rank's block
		table := p1.RangeTable()
		if !table[tp.Comm().Rank()].Equal(r1) {
			return fmt.Errorf("range table disagrees with local range")
		}
		lock <- r1
		return nil
	})
	close(lock)
	{ // The blocks tile the global array
		total := 0
		for r := range lock {
			total += r.Volume()
		}
		assert.Equal(t, 16*21*41, total)
	}
}

func TestPencilRelative(t *testing.T) {
	onGrid(t, []int{2}, func(tp *topology.Topology) error {
		var (
			size   = []int{4, 5, 6}
			p1, _  = New(tp, size, []int{0}, permutation.MustNew(2, 0, 1))
			p2, _  = p1.Derive([]int{1}, permutation.MustNew(1, 2, 0))
			p3, _  = p1.Derive(nil, permutation.Identity)
			x      = []int{10, 20, 30}
			x1, _  = permutation.Apply(p1.Permutation(), x)
			x2, _  = permutation.Apply(p2.Permutation(), x)
			rel, _ = Relative(p1, p2)
			got, _ = permutation.Apply(rel, x1)
		)
		if fmt.Sprint(got) != fmt.Sprint(x2) {
			return fmt.Errorf("relative %s maps %v to %v, want %v", rel, x1, got, x2)
		}
		if !SameDecomposition(p1, p3) || SameDecomposition(p1, p2) {
			return fmt.Errorf("same decomposition")
		}
		if fmt.Sprint(p3.Decomposition()) != "[0]" {
			return fmt.Errorf("derive with nil keeps decomposition: %v", p3.Decomposition())
		}
		other, _ := New(tp, []int{4, 5}, []int{0}, permutation.Identity)
		if _, err := Relative(p1, other); !errors.Is(err, types.ErrArgument) {
			return fmt.Errorf("rank mismatch: %v", err)
		}
		return nil
	})
}

func TestPencilErrors(t *testing.T) {
	onGrid(t, []int{2, 2}, func(tp *topology.Topology) error {
		size := []int{16, 21, 41}
		for _, decomp := range [][]int{{1, 1}, {0, 3}, {0}, {0, 1, 2}, {-1, 0}} {
			if _, err := New(tp, size, decomp, permutation.Identity); !errors.Is(err, types.ErrArgument) {
				return fmt.Errorf("decomposition %v: %v", decomp, err)
			}
		}
		if _, err := New(tp, []int{16, 0, 41}, []int{0, 1}, permutation.Identity); !errors.Is(err, types.ErrArgument) {
			return fmt.Errorf("zero extent: %v", err)
		}
		for _, perm := range [][]int{{0, 0, 1}, {1, 2, 3}, {0, 1}} {
			if _, err := NewPermuted(tp, size, []int{0, 1}, perm); !errors.Is(err, types.ErrValidation) {
				return fmt.Errorf("permutation %v: %v", perm, err)
			}
		}
		if _, err := NewPermuted(tp, size, []int{0, 1}, []int{2, 0, 1}); err != nil {
			return err
		}
		if p, err := NewPermuted(tp, size, []int{0, 1}, nil); err != nil || !p.Permutation().IsIdentity() {
			return fmt.Errorf("empty permutation: %v", err)
		}
		return nil
	})
}

func TestOwnerOf(t *testing.T) {
	onGrid(t, []int{3, 2}, func(tp *topology.Topology) error {
		p, err := New(tp, []int{7, 5, 3}, []int{2, 0}, permutation.MustNew(2, 1, 0))
		if err != nil {
			return err
		}
		// axis 2 (3) over 3: [0,1) [1,2) [2,3); axis 0 (7) over 2: [0,4) [4,7)
		for _, tt := range []struct {
			idx  []int
			rank int
		}{
			{[]int{0, 0, 0}, tp.RankOf([]int{0, 0})},
			{[]int{3, 4, 2}, tp.RankOf([]int{2, 0})},
			{[]int{4, 1, 1}, tp.RankOf([]int{1, 1})},
			{[]int{6, 0, 2}, tp.RankOf([]int{2, 1})},
			{[]int{7, 0, 0}, -1},
			{[]int{0, -1, 0}, -1},
			{[]int{0, 0}, -1},
		} {
			if got := p.OwnerOf(tt.idx); got != tt.rank {
				return fmt.Errorf("owner of %v: %d, want %d", tt.idx, got, tt.rank)
			}
		}
		// every rank owns exactly its local block
		me := tp.Comm().Rank()
		for n, r := range p.RangeTable() {
			lo := []int{r[0].Lo, r[1].Lo, r[2].Lo}
			if got := p.OwnerOf(lo); got != n {
				return fmt.Errorf("rank %d: owner of %v is %d, want %d", me, lo, got, n)
			}
		}
		return nil
	})
}

func TestCheckConsistent(t *testing.T) {
	onGrid(t, []int{3}, func(tp *topology.Topology) error {
		size := []int{9, 4}
		p, _ := New(tp, size, []int{0}, permutation.MustNew(0, 1))
		if err := CheckConsistent(p); err != nil {
			return err
		}
		// rank 1 disagrees on the permutation
		perm := permutation.Identity
		if tp.Comm().Rank() == 1 {
			perm = permutation.MustNew(1, 0)
		}
		q, _ := New(tp, size, []int{0}, perm)
		if err := CheckConsistent(q); !errors.Is(err, types.ErrInconsistent) {
			return fmt.Errorf("inconsistent pencil accepted: %v", err)
		}
		return nil
	})
}

func TestUnevenSplit(t *testing.T) {
	onGrid(t, []int{3, 2}, func(tp *topology.Topology) error {
		p, err := New(tp, []int{7, 5, 3}, []int{0, 1}, permutation.Identity)
		if err != nil {
			return err
		}
		for d, n := range []int{7, 5} {
			var lens []int
			for c := 0; c < tp.Dims()[d]; c++ {
				lens = append(lens, p.RangeAlong(d, c).Len())
			}
			lo, hi := lens[0], lens[0]
			sum := 0
			for _, l := range lens {
				lo, hi = min(lo, l), max(hi, l)
				sum += l
			}
			if hi-lo > 1 || sum != n || lens[0] != hi {
				return fmt.Errorf("axis %d split %v", d, lens)
			}
		}
		return nil
	})
}
