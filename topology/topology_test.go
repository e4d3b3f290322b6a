package topology

import (
	"errors"
	"fmt"
	"testing"

	"github.com/notargets/gopencils/transport"
	"github.com/notargets/gopencils/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopology(t *testing.T) {
	err := transport.Launch(6, func(c transport.Comm) error {
		tp, err := New(c, []int{2, 3})
		if err != nil {
			return err
		}
		var (
			me     = c.Rank()
			coords = tp.Coords()
		)
		if tp.Ndims() != 2 || tp.Size() != 6 || fmt.Sprint(tp.Dims()) != "[2 3]" {
			return fmt.Errorf("bad shape %v", tp)
		}
		if coords[0] != me/3 || coords[1] != me%3 {
			return fmt.Errorf("rank %d has coords %v", me, coords)
		}
		if tp.RankOf(coords) != me || tp.Comm().Rank() != me {
			return fmt.Errorf("rank lookup mismatch for %v", coords)
		}
		for d := 0; d < 2; d++ {
			sc := tp.Subcomm(d)
			if sc.Size() != tp.Dims()[d] || sc.Rank() != coords[d] ||
				tp.SubcommRank(d, coords[d]) != sc.Rank() {
				return fmt.Errorf("subcomm %d: size %d rank %d", d, sc.Size(), sc.Rank())
			}
			// Every member of the sub-communicator shares the other coordinate
			all := make([]int, sc.Size())
			sc.Allgather([]int{me}, all)
			for r, other := range all {
				oc := tp.CoordsOf(other)
				if oc[1-d] != coords[1-d] || oc[d] != r {
					return fmt.Errorf("subcomm %d member %d at %v", d, r, oc)
				}
			}
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestTopologyErrors(t *testing.T) {
	err := transport.Launch(4, func(c transport.Comm) error {
		for _, dims := range [][]int{{3, 2}, {}, {4, 0}, {2, 3}} {
			if _, err := New(c, dims); !errors.Is(err, types.ErrArgument) {
				return fmt.Errorf("dims %v: have %v", dims, err)
			}
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestCoords(t *testing.T) {
	err := transport.Launch(24, func(c transport.Comm) error {
		tp, err := New(c, []int{2, 3, 4})
		if err != nil {
			return err
		}
		for r := 0; r < tp.Size(); r++ {
			if tp.RankOf(tp.CoordsOf(r)) != r {
				return fmt.Errorf("rank %d round trip", r)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestDimsCreate(t *testing.T) {
	tests := []struct {
		nprocs, ndims int
		want          []int
	}{
		{4, 2, []int{2, 2}},
		{6, 2, []int{3, 2}},
		{12, 2, []int{4, 3}},
		{12, 3, []int{3, 2, 2}},
		{7, 2, []int{7, 1}},
		{1, 3, []int{1, 1, 1}},
		{16, 1, []int{16}},
	}
	for _, tt := range tests {
		dims, err := DimsCreate(tt.nprocs, tt.ndims)
		require.NoError(t, err)
		assert.Equal(t, tt.want, dims, "%d procs on %d axes", tt.nprocs, tt.ndims)
	}
	_, err := DimsCreate(0, 2)
	assert.True(t, errors.Is(err, types.ErrArgument))
}
