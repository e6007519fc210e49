package goreactor

import "container/list"

// writeKind tags which variant a writeItem holds. Go has no native sum
// type; this mirrors the teacher's single aiocb struct carrying a
// discriminant (op OpType) rather than three separate queues.
type writeKind int

const (
	writeKindBytes writeKind = iota
	writeKindRef
	writeKindCallback
)

// writeItem is one entry of a Conn's write queue: an owned byte buffer,
// a shared reference to a byte buffer another Conn may also be queuing,
// or an inline callback invoked synchronously when it reaches the head.
type writeItem struct {
	kind writeKind
	buf  []byte  // writeKindBytes
	ref  *[]byte // writeKindRef: the payload is read through ref each time
	// the item is written, but its length is added to write_buf_size
	// when the item is queued; a length change of *ref after queueing
	// is not reflected in that count.
	cb func() // writeKindCallback
}

// bytes returns the payload to transmit for a byte-carrying item.
func (w *writeItem) bytes() []byte {
	if w.kind == writeKindRef {
		return *w.ref
	}
	return w.buf
}

// sizeContribution is how much this item counts toward write_buf_size:
// byte items count their full length, callback items count 1.
func (w *writeItem) sizeContribution() int {
	if w.kind == writeKindCallback {
		return 1
	}
	return len(w.bytes())
}

// writeQueue is the per-Conn pending-write list plus the write_buf_size
// pressure metric and write_buf_offset into the head item. Modeled on
// the teacher's per-fd list.List of aiocb (fdDesc.writers), narrowed to
// a single connection's own queue instead of a per-fd multiplexed one.
type writeQueue struct {
	items  list.List
	size   int // write_buf_size: 0 iff items is empty
	offset int // write_buf_offset: bytes already sent from the head item
}

func (q *writeQueue) empty() bool { return q.size == 0 }

func (q *writeQueue) pushBack(it writeItem) {
	q.items.PushBack(it)
	q.size += it.sizeContribution()
}

func (q *writeQueue) front() (*list.Element, *writeItem) {
	e := q.items.Front()
	if e == nil {
		return nil, nil
	}
	it := e.Value.(writeItem)
	return e, &it
}

func (q *writeQueue) popFront() {
	e := q.items.Front()
	if e == nil {
		return
	}
	q.items.Remove(e)
}

// clear drops every queued item, breaking any reference cycles held by
// captured callbacks (spec.md §4.6 step 2) and zeroing the pressure
// metric to keep the "size == 0 iff empty" invariant intact.
func (q *writeQueue) clear() {
	q.items.Init()
	q.size = 0
	q.offset = 0
}
