package pencilarray

import (
	"errors"
	"fmt"
	"testing"

	"github.com/notargets/gopencils/pencil"
	"github.com/notargets/gopencils/permutation"
	"github.com/notargets/gopencils/topology"
	"github.com/notargets/gopencils/types"
)

func TestBundle(t *testing.T) {
	onGrid(t, []int{2, 2}, func(tp *topology.Topology) error {
		var (
			size  = []int{16, 21, 41}
			p1, _ = pencil.New(tp, size, []int{1, 2}, permutation.Identity)
			p2, _ = p1.Derive([]int{0, 2}, permutation.MustNew(1, 2, 0))
			p3, _ = p2.Derive([]int{0, 1}, permutation.MustNew(2, 0, 1))
		)
		b, err := NewBundle[complex128]([]*pencil.Pencil{p1, p2, p3}, 2)
		if err != nil {
			return err
		}
		if b.Len() != 3 {
			return fmt.Errorf("bundle length %d", b.Len())
		}
		total := 0
		for i, pos := range []Position{First, Second, Third} {
			a, err := b.At(pos)
			if err != nil {
				return err
			}
			if a.Pencil() != []*pencil.Pencil{p1, p2, p3}[i] {
				return fmt.Errorf("position %d holds the wrong pencil", i)
			}
			if cap(a.Data()) != a.Len() || a.Len() != 2*a.Pencil().LengthLocal() {
				return fmt.Errorf("view %d: len %d cap %d", i, a.Len(), cap(a.Data()))
			}
			// Views are consecutive pieces of the shared allocation
			if a.Len() > 0 && &a.Data()[0] != &b.Data()[total] {
				return fmt.Errorf("view %d does not start at offset %d", i, total)
			}
			a.Fill(func(global []int) complex128 { return complex(float64(i+1), code(global)) })
			total += a.Len()
		}
		if total != len(b.Data()) {
			return fmt.Errorf("views cover %d of %d elements", total, len(b.Data()))
		}
		{ // Writing one view leaves the others alone
			first, _ := b.At(First)
			second, _ := b.At(Second)
			for n := range first.Data() {
				first.SetLinear(n, 0)
			}
			for n := range second.Data() {
				if real(second.AtLinear(n)) != 2 {
					return fmt.Errorf("second view overwritten at %d", n)
				}
			}
		}
		if _, err := b.At(Fourth); !errors.Is(err, types.ErrBounds) {
			return fmt.Errorf("fourth of three: %v", err)
		}
		if _, err := b.At(First - 1); !errors.Is(err, types.ErrBounds) {
			return fmt.Errorf("position before first: %v", err)
		}
		for _, ps := range [][]*pencil.Pencil{nil, {p1, p2, p3, p1, p2}} {
			if _, err := NewBundle[float64](ps); !errors.Is(err, types.ErrArgument) {
				return fmt.Errorf("bundle of %d: %v", len(ps), err)
			}
		}
		if _, err := NewBundle[float64]([]*pencil.Pencil{p1}, -2); !errors.Is(err, types.ErrArgument) {
			return fmt.Errorf("negative extra: %v", err)
		}
		four, err := NewBundle[float64]([]*pencil.Pencil{p1, p2, p3, p1})
		if err != nil {
			return err
		}
		_, err = four.At(Fourth)
		return err
	})
}
