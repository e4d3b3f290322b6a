// Package permutation implements the axis reordering algebra used to describe
// the memory layout of pencils.
//
// A Permutation p maps a logical sequence x to Apply(p, x) with
// Apply(p, x)[i] == x[p[i]]. The zero value is Identity, which has no length
// and acts as the identity of whatever length the call site needs.
package permutation

import (
	"fmt"
	"strings"

	"github.com/notargets/gopencils/types"
	"github.com/pkg/errors"
)

// MaxDims is the largest number of axes a Permutation can hold.
const MaxDims = 8

type Permutation struct {
	perm     [MaxDims]int
	n        int
	explicit bool
}

// Identity is the length agnostic identity permutation.
var Identity = Permutation{}

// New builds an explicit permutation, which must be a bijection on 0..len(p)-1.
func New(p ...int) (P Permutation, err error) {
	var seen [MaxDims]bool
	if len(p) == 0 || len(p) > MaxDims {
		err = errors.Wrapf(types.ErrValidation, "permutation length %d not in 1..%d", len(p), MaxDims)
		return
	}
	for i, val := range p {
		switch {
		case val < 0 || val >= len(p):
			err = errors.Wrapf(types.ErrValidation, "permutation %v: value %d out of range 0..%d",
				p, val, len(p)-1)
			return
		case seen[val]:
			err = errors.Wrapf(types.ErrValidation, "permutation %v: value %d repeated", p, val)
			return
		}
		seen[val] = true
		P.perm[i] = val
	}
	P.n, P.explicit = len(p), true
	return
}

func MustNew(p ...int) Permutation {
	P, err := New(p...)
	if err != nil {
		panic(err)
	}
	return P
}

// IsIdentity reports whether p maps every sequence onto itself.
func (p Permutation) IsIdentity() bool {
	for i := 0; i < p.n; i++ {
		if p.perm[i] != i {
			return false
		}
	}
	return true
}

func (p Permutation) IsExplicit() bool { return p.explicit }

// Len is the length of an explicit permutation, 0 for Identity.
func (p Permutation) Len() int { return p.n }

func (p Permutation) Values() []int {
	v := make([]int, p.n)
	copy(v, p.perm[:p.n])
	return v
}

// At returns p[i], treating Identity as the identity of any length.
func (p Permutation) At(i int) int {
	if !p.explicit {
		return i
	}
	return p.perm[i]
}

// Equal compares two permutations; Identity equals any explicit identity.
func (p Permutation) Equal(q Permutation) bool {
	switch {
	case !p.explicit:
		return q.IsIdentity()
	case !q.explicit:
		return p.IsIdentity()
	case p.n != q.n:
		return false
	}
	return p.perm == q.perm
}

// CheckLen fails unless p can be applied to sequences of length n.
func (p Permutation) CheckLen(n int) error {
	if p.explicit && p.n != n {
		return errors.Wrapf(types.ErrValidation, "permutation %s applied to length %d", p, n)
	}
	return nil
}

func (p Permutation) Inverse() (q Permutation, err error) {
	if !p.explicit {
		return Identity, nil
	}
	q.n, q.explicit = p.n, true
	for i := 0; i < p.n; i++ {
		q.perm[p.perm[i]] = i
	}
	return
}

/*
Relative returns the permutation R taking the p ordering of a sequence to its
q ordering:

	Apply(R, Apply(p, x)) == Apply(q, x)

so R[i] = inverse(p)[q[i]].
*/
func Relative(p, q Permutation) (R Permutation, err error) {
	switch {
	case !p.explicit:
		return q, nil
	case !q.explicit:
		return p.Inverse()
	case p.n != q.n:
		err = errors.Wrapf(types.ErrValidation, "relative permutation between lengths %d and %d",
			p.n, q.n)
		return
	}
	var pinv Permutation
	if pinv, err = p.Inverse(); err != nil {
		return
	}
	R.n, R.explicit = p.n, true
	for i := 0; i < p.n; i++ {
		R.perm[i] = pinv.perm[q.perm[i]]
	}
	return
}

// Compose returns the permutation equivalent to applying p, then q.
func Compose(p, q Permutation) (R Permutation, err error) {
	switch {
	case !p.explicit:
		return q, nil
	case !q.explicit:
		return p, nil
	case p.n != q.n:
		err = errors.Wrapf(types.ErrValidation, "composing permutations of lengths %d and %d",
			p.n, q.n)
		return
	}
	R.n, R.explicit = p.n, true
	for i := 0; i < p.n; i++ {
		R.perm[i] = p.perm[q.perm[i]]
	}
	return
}

// Apply returns the reordered copy of x.
func Apply[T any](p Permutation, x []T) (y []T, err error) {
	if err = p.CheckLen(len(x)); err != nil {
		return
	}
	y = make([]T, len(x))
	for i := range x {
		y[i] = x[p.At(i)]
	}
	return
}

// Unapply inverts Apply: Unapply(p, Apply(p, x)) == x.
func Unapply[T any](p Permutation, y []T) (x []T, err error) {
	if err = p.CheckLen(len(y)); err != nil {
		return
	}
	x = make([]T, len(y))
	for i := range y {
		x[p.At(i)] = y[i]
	}
	return
}

// ApplyInts is the allocation free Apply for index tuples; dst and src must not overlap.
func (p Permutation) ApplyInts(dst, src []int) {
	if p.explicit && (p.n != len(src) || len(dst) < len(src)) {
		panic(fmt.Sprintf("permutation %s applied to %d indices", p, len(src)))
	}
	for i := range src {
		dst[i] = src[p.At(i)]
	}
}

// UnapplyInts is the allocation free Unapply; dst and src must not overlap.
func (p Permutation) UnapplyInts(dst, src []int) {
	if p.explicit && (p.n != len(src) || len(dst) < len(src)) {
		panic(fmt.Sprintf("permutation %s applied to %d indices", p, len(src)))
	}
	for i := range src {
		dst[p.At(i)] = src[i]
	}
}

func (p Permutation) String() string {
	if !p.explicit {
		return "Identity"
	}
	var b strings.Builder
	b.WriteString("(")
	for i := 0; i < p.n; i++ {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%d", p.perm[i])
	}
	b.WriteString(")")
	return b.String()
}
