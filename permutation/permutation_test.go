package permutation

import (
	"errors"
	"testing"

	"github.com/notargets/gopencils/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/combin"
)

func TestNew(t *testing.T) {
	{ // Valid
		p, err := New(1, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, p.Len())
		assert.Equal(t, []int{1, 2, 0}, p.Values())
		assert.True(t, p.IsExplicit())
		assert.False(t, p.IsIdentity())
		assert.Equal(t, "(1 2 0)", p.String())
		assert.Equal(t, "Identity", Identity.String())
	}
	{ // Not a bijection
		for _, bad := range [][]int{{0, 0, 1}, {1, 2, 3}, {-1, 0}, {}, {0, 1, 2, 3, 4, 5, 6, 7, 8}} {
			_, err := New(bad...)
			assert.True(t, errors.Is(err, types.ErrValidation), "%v", bad)
		}
		assert.Panics(t, func() { MustNew(2, 2) })
	}
}

func TestEqual(t *testing.T) {
	var (
		id3 = MustNew(0, 1, 2)
		id2 = MustNew(0, 1)
		p   = MustNew(1, 0, 2)
	)
	assert.True(t, Identity.Equal(id3))
	assert.True(t, id3.Equal(Identity))
	assert.True(t, Identity.Equal(id2))
	assert.True(t, Identity.Equal(Identity))
	assert.False(t, id2.Equal(id3)) // different lengths
	assert.False(t, p.Equal(Identity))
	assert.False(t, Identity.Equal(p))
	assert.True(t, p.Equal(MustNew(1, 0, 2)))
	assert.True(t, Identity.IsIdentity())
	assert.True(t, id3.IsIdentity())
}

func TestAlgebra(t *testing.T) {
	for n := 1; n <= 4; n++ {
		x := make([]string, n)
		for i := range x {
			x[i] = string(rune('a' + i))
		}
		perms := combin.Permutations(n, n)
		for _, pv := range perms {
			p := MustNew(pv...)
			xp, err := Apply(p, x)
			require.NoError(t, err)
			{ // Inverse undoes Apply
				pinv, err := p.Inverse()
				require.NoError(t, err)
				back, err := Apply(pinv, xp)
				require.NoError(t, err)
				assert.Equal(t, x, back)
				un, err := Unapply(p, xp)
				require.NoError(t, err)
				assert.Equal(t, x, un)
				// relative to identity is the inverse
				r, err := Relative(p, Identity)
				require.NoError(t, err)
				assert.True(t, r.Equal(pinv))
			}
			{ // Relative from identity is p itself
				r, err := Relative(Identity, p)
				require.NoError(t, err)
				assert.True(t, r.Equal(p))
			}
			for _, qv := range perms {
				q := MustNew(qv...)
				xq, _ := Apply(q, x)
				r, err := Relative(p, q)
				require.NoError(t, err)
				got, err := Apply(r, xp)
				require.NoError(t, err)
				assert.Equal(t, xq, got, "p=%s q=%s", p, q)
				c, err := Compose(p, q)
				require.NoError(t, err)
				xpq, _ := Apply(q, xp)
				got, _ = Apply(c, x)
				assert.Equal(t, xpq, got)
			}
		}
	}
}

func TestIdentityAndLengths(t *testing.T) {
	{ // Identity works at any length
		y, err := Apply(Identity, []int{4, 5, 6, 7})
		require.NoError(t, err)
		assert.Equal(t, []int{4, 5, 6, 7}, y)
		inv, err := Identity.Inverse()
		require.NoError(t, err)
		assert.False(t, inv.IsExplicit())
		r, err := Relative(Identity, Identity)
		require.NoError(t, err)
		assert.True(t, r.IsIdentity())
	}
	{ // Length mismatches
		p := MustNew(1, 0)
		_, err := Apply(p, []int{1, 2, 3})
		assert.True(t, errors.Is(err, types.ErrValidation))
		_, err = Relative(p, MustNew(0, 2, 1))
		assert.True(t, errors.Is(err, types.ErrValidation))
		_, err = Compose(p, MustNew(0, 2, 1))
		assert.True(t, errors.Is(err, types.ErrValidation))
		assert.Panics(t, func() { p.ApplyInts(make([]int, 3), []int{1, 2, 3}) })
	}
	{ // Allocation free forms
		var (
			p   = MustNew(2, 0, 1)
			dst = make([]int, 3)
			src = []int{10, 20, 30}
		)
		p.ApplyInts(dst, src)
		assert.Equal(t, []int{30, 10, 20}, dst)
		back := make([]int, 3)
		p.UnapplyInts(back, dst)
		assert.Equal(t, src, back)
	}
}
