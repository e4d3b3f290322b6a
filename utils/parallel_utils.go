package utils

import (
	"fmt"

	"github.com/notargets/gopencils/types"
)

// PartitionMap splits MaxIndex items into ParallelDegree contiguous buckets.
type PartitionMap struct {
	MaxIndex       int // MaxIndex is partitioned into ParallelDegree partitions
	ParallelDegree int
	Partitions     []types.Range // Beginning and end index of partitions
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	if ParallelDegree < 1 || maxIndex < 0 {
		panic(fmt.Sprintf("invalid partition request: %d items over %d buckets",
			maxIndex, ParallelDegree))
	}
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([]types.Range, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

// GetBucket returns the bucket owning item k, or -1 if k is out of range.
func (pm *PartitionMap) GetBucket(k int) (bucketNum int, r types.Range) {
	_, bucketNum, r = pm.getBucketWithTryCount(k)
	return
}

func (pm *PartitionMap) getBucketWithTryCount(k int) (tryCount, bucketNum int, r types.Range) {
	if k < 0 || k >= pm.MaxIndex {
		return 0, -1, types.Range{}
	}
	// Initial guess
	bucketNum = int(float64(pm.ParallelDegree*k) / float64(pm.MaxIndex))
	for !pm.Partitions[bucketNum].Contains(k) {
		if pm.Partitions[bucketNum].Lo > k {
			bucketNum--
		} else {
			bucketNum++
		}
		if bucketNum == -1 || bucketNum == pm.ParallelDegree {
			return 0, -1, types.Range{}
		}
		tryCount++
	}
	r = pm.Partitions[bucketNum]
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) types.Range {
	return pm.Partitions[bucketNum]
}

// Split1D is the range of bucket threadNum, with a maximum imbalance of one item.
func (pm *PartitionMap) Split1D(threadNum int) (bucket types.Range) {
	var (
		Npart            = pm.MaxIndex / (pm.ParallelDegree)
		startAdd, endAdd int
		remainder        int
	)
	remainder = pm.MaxIndex % pm.ParallelDegree
	if remainder != 0 { // spread the remainder over the first chunks evenly
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket.Lo = threadNum*Npart + startAdd
	bucket.Hi = bucket.Lo + Npart + endAdd
	return
}
