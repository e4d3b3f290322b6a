package utils

import "fmt"

// MaxRank bounds the number of axes (logical plus extra) handled by the
// strided kernels, so their counters stay on the stack.
const MaxRank = 16

type Index []int

func NewIndex(N int) (I Index) {
	return make(Index, N)
}

// Prod is the number of points of an array with dimensions I.
func (I Index) Prod() (p int) {
	p = 1
	for _, val := range I {
		p *= val
	}
	return
}

func (I Index) Equal(J Index) bool {
	if len(I) != len(J) {
		return false
	}
	for i, val := range I {
		if J[i] != val {
			return false
		}
	}
	return true
}

func (I Index) Copy() (r Index) {
	r = make(Index, len(I))
	copy(r, I)
	return
}

// Strides returns the column major strides of dims: the first axis is contiguous.
func Strides(dims Index) (s Index) {
	s = make(Index, len(dims))
	stride := 1
	for i, d := range dims {
		s[i] = stride
		stride *= d
	}
	return
}

// LinearToCartesian decomposes the column major linear index n of an array
// with dimensions dims into idx.
func LinearToCartesian(n int, dims, idx Index) {
	for i, d := range dims {
		idx[i] = n % d
		n /= d
	}
}

func CartesianToLinear(idx, strides Index) (n int) {
	for i, val := range idx {
		n += val * strides[i]
	}
	return
}

// CheckBounds panics if idx does not address a point of an array with dimensions dims.
func CheckBounds(idx, dims Index) {
	if len(idx) != len(dims) {
		panic(fmt.Sprintf("wrong number of indices: have %d, need %d", len(idx), len(dims)))
	}
	for i, val := range idx {
		if val < 0 || val >= dims[i] {
			panic(fmt.Sprintf("index out of bounds: axis %d, index = %d, max_bounds = %d",
				i, val, dims[i]-1))
		}
	}
}

/*
CopyBlock copies a block of shape counts between two strided buffers:

	dst[dstOff + Σ i_k*dstStrides[k]] = src[srcOff + Σ i_k*srcStrides[k]]

for every i in the block. Axis 0 is the innermost loop. Handing CopyBlock the
source strides in the destination's axis order performs a permuted copy in one
pass.
*/
func CopyBlock[T any](dst []T, dstOff int, dstStrides Index,
	src []T, srcOff int, srcStrides Index, counts Index) {
	var (
		rank = len(counts)
		ctr  [MaxRank]int
	)
	if rank > MaxRank {
		panic(fmt.Sprintf("rank %d exceeds MaxRank %d", rank, MaxRank))
	}
	if rank == 0 {
		dst[dstOff] = src[srcOff]
		return
	}
	for _, c := range counts {
		if c == 0 {
			return
		}
	}
	var (
		n0         = counts[0]
		ds0, ss0   = dstStrides[0], srcStrides[0]
		contiguous = ds0 == 1 && ss0 == 1
		d, s       = dstOff, srcOff
	)
	for {
		if contiguous {
			copy(dst[d:d+n0], src[s:s+n0])
		} else {
			dd, ss := d, s
			for i := 0; i < n0; i++ {
				dst[dd] = src[ss]
				dd += ds0
				ss += ss0
			}
		}
		k := 1
		for ; k < rank; k++ {
			ctr[k]++
			d += dstStrides[k]
			s += srcStrides[k]
			if ctr[k] < counts[k] {
				break
			}
			d -= ctr[k] * dstStrides[k]
			s -= ctr[k] * srcStrides[k]
			ctr[k] = 0
		}
		if k == rank {
			return
		}
	}
}
