// Package queue implements the intrusive FIFO the submission loop drains
// each iteration. Operations link directly into the queue's internal list
// instead of being boxed into a separate container, so enqueueing never
// allocates beyond the operation itself.
package queue

import (
	"sync"

	"github.com/jeremytregunna/ringdb/pkg/wal"
)

// Kind mirrors the WAL opcode space so a queued operation can be journaled
// directly without translation.
type Kind = wal.Op

const (
	KindSet   = wal.OpSet
	KindDel   = wal.OpDel
	KindGet   = wal.OpGet
	KindCheck = wal.OpCheck
)

// Done is invoked once an operation has completed (applied, and for
// set/del, durably journaled). Result carries the value for a get, or nil.
type Done func(result []byte, err error)

// Op is one queued operation. The next field is intrusive: Queue links Ops
// directly rather than wrapping them in a separate list node.
type Op struct {
	Kind  Kind
	Key   []byte
	Value []byte

	done Done
	next *Op
}

// NewOp constructs an Op ready to enqueue.
func NewOp(kind Kind, key, value []byte, done Done) *Op {
	return &Op{Kind: kind, Key: key, Value: value, done: done}
}

// Complete invokes the operation's completion continuation, if any.
func (o *Op) Complete(result []byte, err error) {
	if o.done != nil {
		o.done(result, err)
	}
}

// Queue is a mutex-guarded FIFO of *Op. Pushing never suspends; it is
// in-memory only.
type Queue struct {
	mu   sync.Mutex
	head *Op
	tail *Op
	size int
}

// New constructs an empty Queue.
func New() *Queue { return &Queue{} }

// Push appends op to the tail of the queue.
func (q *Queue) Push(op *Op) {
	q.mu.Lock()
	defer q.mu.Unlock()
	op.next = nil
	if q.tail == nil {
		q.head, q.tail = op, op
	} else {
		q.tail.next = op
		q.tail = op
	}
	q.size++
}

// PopUpTo removes and returns at most n operations from the head of the
// queue, in FIFO order.
func (q *Queue) PopUpTo(n int) []*Op {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == nil || n <= 0 {
		return nil
	}
	out := make([]*Op, 0, n)
	for q.head != nil && len(out) < n {
		op := q.head
		q.head = op.next
		op.next = nil
		out = append(out, op)
		q.size--
	}
	if q.head == nil {
		q.tail = nil
	}
	return out
}

// Len returns the number of operations currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}
