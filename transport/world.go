package transport

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

/*
World is an in-process message passing universe of Size ranks. Each rank is
meant to run on its own goroutine and owns one mailbox; sends are eager (the
payload is copied when posted) and receives block until a matching message
arrives. Messages between a pair of ranks with the same communicator and tag
are delivered in posting order.
*/
type World struct {
	size   int
	boxes  []*mailbox
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu     sync.Mutex
	comms  map[string]int // Split fingerprint -> communicator id
	nextID int

	messages, collectives, elements *atomic.Int64
}

func NewWorld(size int) (w *World) {
	if size < 1 {
		panic(fmt.Sprintf("world size must be positive, have %d", size))
	}
	w = &World{
		size:        size,
		boxes:       make([]*mailbox, size),
		comms:       make(map[string]int),
		nextID:      1, // 0 is the world communicator
		messages:    atomic.NewInt64(0),
		collectives: atomic.NewInt64(0),
		elements:    atomic.NewInt64(0),
	}
	w.ctx, w.cancel = context.WithCancelCause(context.Background())
	for n := 0; n < size; n++ {
		w.boxes[n] = newMailbox()
	}
	return
}

func (w *World) Size() int { return w.size }

// Comm returns the world communicator handle of rank. Each rank must obtain
// its handle once and make all of its collective calls through it.
func (w *World) Comm(rank int) Comm {
	if rank < 0 || rank >= w.size {
		panic(fmt.Sprintf("rank %d out of range for world of size %d", rank, w.size))
	}
	members := make([]int, w.size)
	for n := range members {
		members[n] = n
	}
	return &comm{world: w, id: 0, rank: rank, members: members}
}

func (w *World) Stats() Stats {
	return Stats{
		Messages:    w.messages.Load(),
		Collectives: w.collectives.Load(),
		Elements:    w.elements.Load(),
	}
}

func (w *World) ResetStats() {
	w.messages.Store(0)
	w.collectives.Store(0)
	w.elements.Store(0)
}

// Abort tears the world down: every blocked or future receive panics with ErrAborted.
func (w *World) Abort(cause error) {
	w.cancel(cause)
}

func (w *World) commID(fingerprint string) (id int) {
	var ok bool
	w.mu.Lock()
	defer w.mu.Unlock()
	if id, ok = w.comms[fingerprint]; !ok {
		id = w.nextID
		w.nextID++
		w.comms[fingerprint] = id
	}
	return
}

type msgKey struct {
	comm, source, tag int
}

// mailbox holds the messages posted to one rank, keyed by sender.
type mailbox struct {
	mu     sync.Mutex
	queues map[msgKey][]any
	signal chan struct{} // closed and replaced on every post
}

func newMailbox() *mailbox {
	return &mailbox{
		queues: make(map[msgKey][]any),
		signal: make(chan struct{}),
	}
}

func (mb *mailbox) post(key msgKey, payload any) {
	mb.mu.Lock()
	mb.queues[key] = append(mb.queues[key], payload)
	close(mb.signal)
	mb.signal = make(chan struct{})
	mb.mu.Unlock()
}

func (mb *mailbox) take(ctx context.Context, key msgKey) (payload any) {
	for {
		mb.mu.Lock()
		if q := mb.queues[key]; len(q) > 0 {
			payload = q[0]
			if len(q) == 1 {
				delete(mb.queues, key)
			} else {
				mb.queues[key] = q[1:]
			}
			mb.mu.Unlock()
			return
		}
		sig := mb.signal
		mb.mu.Unlock()
		select {
		case <-sig:
		case <-ctx.Done():
			panic(errors.Wrapf(ErrAborted, "waiting on source %d tag %d: %v",
				key.source, key.tag, context.Cause(ctx)))
		}
	}
}

// comm is one rank's handle on a communicator of a World.
type comm struct {
	world   *World
	id      int
	rank    int
	members []int // world rank of each communicator rank
	splits  int   // Split calls made through this handle
}

func (c *comm) Rank() int { return c.rank }
func (c *comm) Size() int { return len(c.members) }

func (c *comm) checkRank(r int) {
	if r < 0 || r >= len(c.members) {
		panic(fmt.Sprintf("rank %d out of range for communicator of size %d", r, len(c.members)))
	}
}

func (c *comm) post(dest, tag int, payload any) {
	c.world.boxes[c.members[dest]].post(msgKey{c.id, c.rank, tag}, payload)
}

func (c *comm) take(source, tag int) any {
	return c.world.boxes[c.members[c.rank]].take(c.world.ctx, msgKey{c.id, source, tag})
}

func (c *comm) count(dest, n int) {
	if dest != c.rank {
		c.world.messages.Inc()
		c.world.elements.Add(int64(n))
	}
}

type doneRequest struct{}

func (doneRequest) Wait() {}

func (c *comm) Isend(buf any, dest, tag int) Request {
	c.checkRank(dest)
	if tag < 0 {
		panic(fmt.Sprintf("negative tags are reserved, have %d", tag))
	}
	payload := cloneSlice(buf, 0, sliceLen(buf))
	c.count(dest, sliceLen(buf))
	c.post(dest, tag, payload)
	return doneRequest{}
}

type recvRequest struct {
	c           *comm
	buf         any
	source, tag int
	done        bool
}

func (r *recvRequest) Wait() {
	if r.done {
		return
	}
	copyInto(r.buf, 0, r.c.take(r.source, r.tag))
	r.done = true
}

func (c *comm) Irecv(buf any, source, tag int) Request {
	c.checkRank(source)
	if tag < 0 {
		panic(fmt.Sprintf("negative tags are reserved, have %d", tag))
	}
	sliceLen(buf)
	return &recvRequest{c: c, buf: buf, source: source, tag: tag}
}

func (c *comm) Alltoallv(send any, sendCounts, sendDispls []int,
	recv any, recvCounts, recvDispls []int) {
	var (
		np = c.Size()
		me = c.rank
	)
	if len(sendCounts) != np || len(sendDispls) != np || len(recvCounts) != np || len(recvDispls) != np {
		panic(fmt.Sprintf("alltoallv needs %d counts and displacements per side", np))
	}
	c.world.collectives.Inc()
	for r := 0; r < np; r++ {
		if r == me || sendCounts[r] == 0 {
			continue
		}
		c.count(r, sendCounts[r])
		c.post(r, tagAlltoallv, cloneSlice(send, sendDispls[r], sendDispls[r]+sendCounts[r]))
	}
	if sendCounts[me] != recvCounts[me] {
		panic(fmt.Sprintf("alltoallv self exchange mismatch: send %d, receive %d",
			sendCounts[me], recvCounts[me]))
	}
	if recvCounts[me] != 0 {
		copyInto(recv, recvDispls[me],
			sliceOf(send, sendDispls[me], sendDispls[me]+sendCounts[me]))
	}
	for r := 0; r < np; r++ {
		if r == me || recvCounts[r] == 0 {
			continue
		}
		payload := c.take(r, tagAlltoallv)
		if n := sliceLen(payload); n != recvCounts[r] {
			panic(errors.Wrapf(ErrTruncated, "alltoallv from rank %d: have %d elements, expected %d",
				r, n, recvCounts[r]))
		}
		copyInto(recv, recvDispls[r], payload)
	}
}

func (c *comm) Allgather(send, recv any) {
	c.world.collectives.Inc()
	c.allgather(send, recv, tagAllgather)
}

func (c *comm) allgather(send, recv any, tag int) {
	var (
		np = c.Size()
		n  = sliceLen(send)
	)
	if sliceLen(recv) != n*np {
		panic(fmt.Sprintf("allgather receive buffer needs %d elements, have %d", n*np, sliceLen(recv)))
	}
	for r := 0; r < np; r++ {
		if r != c.rank {
			c.post(r, tag, cloneSlice(send, 0, n))
		}
	}
	copyInto(recv, c.rank*n, send)
	for r := 0; r < np; r++ {
		if r != c.rank {
			copyInto(recv, r*n, c.take(r, tag))
		}
	}
}

func (c *comm) Barrier() {
	c.world.collectives.Inc()
	for r := 0; r < c.Size(); r++ {
		if r != c.rank {
			c.post(r, tagBarrier, []byte(nil))
		}
	}
	for r := 0; r < c.Size(); r++ {
		if r != c.rank {
			c.take(r, tagBarrier)
		}
	}
}

func (c *comm) Split(color, key int) Comm {
	var (
		np  = c.Size()
		all = make([]int, 2*np)
		seq = c.splits
	)
	c.splits++
	c.world.collectives.Inc()
	c.allgather([]int{color, key}, all, tagSplit)
	if color == Undefined {
		return nil
	}
	type member struct{ key, rank int }
	var group []member
	for r := 0; r < np; r++ {
		if all[2*r] == color {
			group = append(group, member{all[2*r+1], r})
		}
	}
	sort.SliceStable(group, func(i, j int) bool {
		if group[i].key != group[j].key {
			return group[i].key < group[j].key
		}
		return group[i].rank < group[j].rank
	})
	nc := &comm{
		world:   c.world,
		id:      c.world.commID(fmt.Sprintf("%d/%d/%d", c.id, seq, color)),
		members: make([]int, len(group)),
	}
	for n, m := range group {
		nc.members[n] = c.members[m.rank]
		if m.rank == c.rank {
			nc.rank = n
		}
	}
	return nc
}

func sliceValue(buf any) (v reflect.Value) {
	if v = reflect.ValueOf(buf); v.Kind() != reflect.Slice {
		panic(fmt.Sprintf("message buffers must be slices, have %T", buf))
	}
	return
}

func sliceLen(buf any) int {
	return sliceValue(buf).Len()
}

func sliceOf(buf any, lo, hi int) any {
	return sliceValue(buf).Slice(lo, hi).Interface()
}

func cloneSlice(buf any, lo, hi int) any {
	var (
		v = sliceValue(buf).Slice(lo, hi)
		c = reflect.MakeSlice(v.Type(), v.Len(), v.Len())
	)
	reflect.Copy(c, v)
	return c.Interface()
}

func copyInto(dst any, off int, src any) {
	var (
		d = sliceValue(dst)
		s = sliceValue(src)
	)
	if d.Type() != s.Type() {
		panic(fmt.Sprintf("message element type mismatch: receive %s, send %s", d.Type(), s.Type()))
	}
	if off+s.Len() > d.Len() {
		panic(errors.Wrapf(ErrTruncated, "%d elements at offset %d into buffer of %d",
			s.Len(), off, d.Len()))
	}
	reflect.Copy(d.Slice(off, off+s.Len()), s)
}
