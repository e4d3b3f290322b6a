package utils

import (
	"strconv"
	"strings"

	"github.com/notargets/gopencils/types"
	"github.com/pkg/errors"
)

// ParseRanges parses one comma separated ParseDim phrase per axis of shape.
// An empty expression selects everything.
func ParseRanges(expr string, shape []int) (r types.Ranges, err error) {
	r = make(types.Ranges, len(shape))
	if strings.TrimSpace(expr) == "" {
		for i, n := range shape {
			r[i] = types.NewRange(0, n)
		}
		return
	}
	dims := strings.Split(expr, ",")
	if len(dims) != len(shape) {
		err = errors.Wrapf(types.ErrArgument, "range %q has %d axes, array has %d", expr, len(dims), len(shape))
		return
	}
	for i, dim := range dims {
		if r[i], err = ParseDim(dim, shape[i]); err != nil {
			return
		}
	}
	return
}

func ParseDim(dim string, max int) (r types.Range, err error) {
	/*
		Converts phrases including:
			":"   = full range, from 0 to max (loop indexing)
			"end" = last index, from max-1, max
			"N"   = single index, from N, N+1
			"2:N" = range, from 2 to N (loop indexing)
			":N"  = range, from 0 to N (loop indexing)
			"N:"  = range, from N to max (loop indexing)
	*/
	switch dim = strings.TrimSpace(dim); dim {
	case "end":
		r = types.NewRange(max-1, max)
	case ":":
		r = types.NewRange(0, max)
	default:
		if r, err = parseRange(dim, max); err != nil {
			return
		}
	}
	if r.Lo < 0 || r.Hi > max || r.Empty() {
		err = errors.Wrapf(types.ErrBounds, "range %q selects %s of an axis of length %d", dim, r, max)
	}
	return
}

func parseRange(dim string, max int) (r types.Range, err error) {
	var (
		splits = strings.Split(dim, ":")
	)
	if len(splits) > 2 {
		err = errors.Wrapf(types.ErrArgument, "range %q has more than one ':'", dim)
		return
	}
	if splits[0] == "" {
		r.Lo = 0
	} else if r.Lo, err = strconv.Atoi(splits[0]); err != nil {
		err = errors.Wrapf(types.ErrArgument, "range %q: %v", dim, err)
		return
	}
	if len(splits) == 1 {
		r.Hi = r.Lo + 1
		return
	}
	if splits[1] == "" || splits[1] == "end" {
		r.Hi = max
	} else if r.Hi, err = strconv.Atoi(splits[1]); err != nil {
		err = errors.Wrapf(types.ErrArgument, "range %q: %v", dim, err)
		return
	}
	if r.Hi == r.Lo {
		r.Hi = r.Lo + 1
	}
	return
}
