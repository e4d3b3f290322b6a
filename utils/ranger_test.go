package utils

import (
	"errors"
	"testing"

	"github.com/notargets/gopencils/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRanger(t *testing.T) {
	// Dimension parsing
	{
		for _, tt := range []struct {
			dim    string
			lo, hi int
		}{
			{":", 0, 10},
			{":5", 0, 5},
			{"5:5", 5, 6},
			{"4", 4, 5},
			{" 2 ", 2, 3},
			{"7:", 7, 10},
			{"3:end", 3, 10},
			{"end", 9, 10},
		} {
			r, err := ParseDim(tt.dim, 10)
			require.NoError(t, err, tt.dim)
			assert.Equal(t, types.NewRange(tt.lo, tt.hi), r, tt.dim)
		}
		for _, dim := range []string{"10", "-1", "4:11", "a", "1:2:3", "x:4"} {
			_, err := ParseDim(dim, 10)
			assert.Error(t, err, dim)
		}
		_, err := ParseDim("12", 10)
		assert.True(t, errors.Is(err, types.ErrBounds))
	}
	// Multi axis parsing
	{
		r, err := ParseRanges("0, :, 2:4", []int{3, 4, 5})
		require.NoError(t, err)
		assert.Equal(t, types.Ranges{{Lo: 0, Hi: 1}, {Lo: 0, Hi: 4}, {Lo: 2, Hi: 4}}, r)
		r, err = ParseRanges("", []int{3, 4})
		require.NoError(t, err)
		assert.Equal(t, 12, r.Volume())
		_, err = ParseRanges("0,1", []int{3, 4, 5})
		assert.True(t, errors.Is(err, types.ErrArgument))
	}
}
