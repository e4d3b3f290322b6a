// Package transport is the message passing layer used by the topology, gather
// and transpose code. Comm mirrors the small subset of MPI the engine needs:
// non-blocking point to point messages, a variable size all-to-all, an
// allgather, communicator splitting and a barrier.
//
// Buffers are passed as slices of any element type. Both ends of an exchange
// must use the same element type. Failures are not recoverable: an
// implementation panics, and the run is expected to end.
package transport

import "github.com/pkg/errors"

const (
	// Root is the rank 0 node -- it is more semantic to use this
	Root int = 0
	// Undefined is the Split color of ranks that take no part in the new communicator
	Undefined int = -1
)

// Tags below zero are reserved for collectives.
const (
	tagAlltoallv = -1 - iota
	tagAllgather
	tagBarrier
	tagSplit
)

var (
	ErrAborted   = errors.New("communication aborted")
	ErrTruncated = errors.New("message larger than receive buffer")
)

// Comm is a communicator: an ordered group of ranks.
type Comm interface {
	Rank() int
	Size() int
	// Isend posts buf for delivery to dest. buf may be reused once the request completes.
	Isend(buf any, dest, tag int) Request
	// Irecv posts a receive into buf; the data is valid once the request completes.
	Irecv(buf any, source, tag int) Request
	// Alltoallv sends send[sendDispls[r]:sendDispls[r]+sendCounts[r]] to every rank r and
	// receives recvCounts[r] elements from rank r at recv[recvDispls[r]:].
	Alltoallv(send any, sendCounts, sendDispls []int, recv any, recvCounts, recvDispls []int)
	// Allgather concatenates every rank's send buffer, in rank order, into recv.
	Allgather(send, recv any)
	// Split partitions the communicator by color, ordering the new ranks by key,
	// ties broken by the old rank. Ranks passing Undefined get nil.
	Split(color, key int) Comm
	Barrier()
}

// Request is an outstanding non-blocking operation.
type Request interface {
	Wait()
}

func Waitall(reqs []Request) {
	for _, req := range reqs {
		if req != nil {
			req.Wait()
		}
	}
}

// Stats counts traffic through a World.
type Stats struct {
	Messages    int64 // Point to point messages between distinct ranks
	Collectives int64 // Collective calls (per rank)
	Elements    int64 // Elements moved between distinct ranks
}
