package types

import "fmt"

/*
Range is a half-open interval of global indices [Lo, Hi). An empty range has
Hi <= Lo; Len never goes negative.
*/
type Range struct {
	Lo, Hi int
}

func NewRange(lo, hi int) Range {
	return Range{Lo: lo, Hi: hi}
}

func (r Range) Len() int {
	if r.Hi <= r.Lo {
		return 0
	}
	return r.Hi - r.Lo
}

func (r Range) Empty() bool {
	return r.Len() == 0
}

func (r Range) Contains(i int) bool {
	return i >= r.Lo && i < r.Hi
}

// Intersect returns the overlap of two ranges, possibly empty.
func (r Range) Intersect(o Range) (x Range) {
	x.Lo, x.Hi = max(r.Lo, o.Lo), min(r.Hi, o.Hi)
	if x.Hi < x.Lo {
		x.Hi = x.Lo
	}
	return
}

func (r Range) String() string {
	return fmt.Sprintf("[%d:%d)", r.Lo, r.Hi)
}

// Ranges is one Range per axis.
type Ranges []Range

func (rs Ranges) Lens() (n []int) {
	n = make([]int, len(rs))
	for i, r := range rs {
		n[i] = r.Len()
	}
	return
}

// Volume is the number of points covered by the product of the ranges.
func (rs Ranges) Volume() (v int) {
	v = 1
	for _, r := range rs {
		v *= r.Len()
	}
	return
}

func (rs Ranges) Intersect(os Ranges) (x Ranges) {
	x = make(Ranges, len(rs))
	for i := range rs {
		x[i] = rs[i].Intersect(os[i])
	}
	return
}

func (rs Ranges) Equal(os Ranges) bool {
	if len(rs) != len(os) {
		return false
	}
	for i := range rs {
		if rs[i] != os[i] {
			return false
		}
	}
	return true
}
