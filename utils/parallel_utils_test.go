package utils

import (
	"math"
	"testing"

	"github.com/notargets/gopencils/types"
	"github.com/stretchr/testify/assert"
)

func TestPartitionMap(t *testing.T) {
	{ // Bucket sizes
		getHisto := func(K, Np int) (histo map[int]int) {
			pm := NewPartitionMap(Np, K)
			histo = make(map[int]int)
			for np := 0; np < pm.ParallelDegree; np++ {
				maxK := pm.GetBucketRange(np).Len()
				histo[maxK]++
			}
			return
		}
		getTotal := func(histo map[int]int) (total int) {
			for key, count := range histo {
				total += key * count
			}
			return
		}
		assert.Equal(t, map[int]int{0: 30, 1: 2}, getHisto(2, 32))
		assert.Equal(t, map[int]int{1: 32}, getHisto(32, 32))
		assert.Equal(t, map[int]int{8: 32}, getHisto(256, 32))
		assert.Equal(t, map[int]int{8: 1, 9: 31}, getHisto(287, 32))
		assert.Equal(t, 287, getTotal(getHisto(287, 32)))
		for n := 64; n < 2000; n++ {
			var (
				keys   [2]float64
				keyNum int
			)
			histo := getHisto(n, 32)
			for key := range histo {
				keys[keyNum] = float64(key)
				keyNum++
			}
			if keyNum == 2 {
				assert.Equal(t, 1., math.Abs(keys[0]-keys[1])) // Maximum imbalance of 1
			}
			assert.Equal(t, n, getTotal(histo))
		}
	}
	{ // Remainder goes to the lowest buckets, blocks are contiguous
		pm := NewPartitionMap(3, 41)
		assert.Equal(t, []types.Range{{Lo: 0, Hi: 14}, {Lo: 14, Hi: 28}, {Lo: 28, Hi: 41}}, pm.Partitions)
		pm = NewPartitionMap(4, 21)
		assert.Equal(t, []types.Range{{Lo: 0, Hi: 6}, {Lo: 6, Hi: 11}, {Lo: 11, Hi: 16}, {Lo: 16, Hi: 21}}, pm.Partitions)
	}
	{ // Inverted bucket probe - find bucket that contains index (efficiently)
		for maxIndex := 10; maxIndex < 500; maxIndex++ {
			pm := NewPartitionMap(5, maxIndex)
			for k := 0; k < maxIndex; k++ {
				tryCount, bn, r := pm.getBucketWithTryCount(k)
				assert.True(t, r.Contains(k) && r == pm.GetBucketRange(bn) && tryCount <= 1)
				assert.Equal(t, pm.Split1D(bn), r)
			}
			bn, _ := pm.GetBucket(maxIndex)
			assert.Equal(t, -1, bn)
		}
	}
	{ // Fewer items than buckets
		pm := NewPartitionMap(6, 4)
		for k := 0; k < 4; k++ {
			bn, r := pm.GetBucket(k)
			assert.Equal(t, k, bn)
			assert.Equal(t, 1, r.Len())
		}
		assert.Equal(t, 0, pm.GetBucketRange(5).Len())
		bn, _ := pm.GetBucket(-1)
		assert.Equal(t, -1, bn)
	}
}
