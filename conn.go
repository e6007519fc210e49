package goreactor

import (
	"container/list"
	"fmt"

	"golang.org/x/sys/unix"
)

// ReadState distinguishes the three outcomes of Read per spec.md §4.4.
type ReadState int

const (
	ReadOK ReadState = iota
	ReadClosed
	ReadWouldBlock
)

// Conn is the per-socket object of spec.md §3: an owned non-blocking
// socket, a pending-write queue with partial-write handling and inline
// callbacks, and read helpers. One Handler per Conn for its lifetime,
// assigned at construction (spec.md §9 design note).
type Conn struct {
	r       *Reactor
	sock    RawSocket
	handler Handler

	wq writeQueue

	closed      bool
	eventWatch  Event
	readBuf     list.List // queued []byte items, protocol-level splicing buffer
	readAheadSz int       // bytes currently queued in readBuf
}

// NewConn constructs a Conn around an already non-blocking, connected or
// accepted socket, registers it with the reactor's backend and inserts
// it into the descriptor registry. Fails if registration fails (fd
// already registered is the only expected failure mode).
func NewConn(r *Reactor, fd int, handler Handler) (*Conn, error) {
	c := &Conn{
		r:          r,
		sock:       RawSocket{fd: fd},
		handler:    handler,
		eventWatch: EventErr | EventHup,
	}
	if err := r.registerConn(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Sock returns the underlying socket handle for introspection.
func (c *Conn) Sock() RawSocket { return c.sock }

// Write enqueues (or fast-path transmits) an owned byte buffer. Returns
// true if the queue is empty at return time.
func (c *Conn) Write(p []byte) bool {
	if len(p) == 0 {
		return c.Flush()
	}
	return c.submit(&writeItem{kind: writeKindBytes, buf: p})
}

// WriteRef enqueues a shared reference to a byte buffer; the same
// pointer may be queued on several connections at once (a broadcast/
// relay fan-out) without copying the payload.
func (c *Conn) WriteRef(p *[]byte) bool {
	if p == nil || len(*p) == 0 {
		return c.Flush()
	}
	return c.submit(&writeItem{kind: writeKindRef, ref: p})
}

// WriteCallback enqueues an inline callback, invoked exactly once,
// synchronously, on the loop thread, when it reaches the head of the
// queue.
func (c *Conn) WriteCallback(cb func()) bool {
	return c.submit(&writeItem{kind: writeKindCallback, cb: cb})
}

// Flush is write(None): kick the queue without adding new data.
func (c *Conn) Flush() bool {
	return c.submit(nil)
}

// submit implements the write algorithm of spec.md §4.3.
func (c *Conn) submit(item *writeItem) bool {
	if c.closed {
		// The "lie": callers re-entering from a nested close must see
		// an empty queue, not touch the socket.
		return true
	}

	before := c.wq.size
	defer func() {
		if delta := c.wq.size - before; delta != 0 {
			c.r.metrics.addQueueBytes(delta)
		}
	}()

	var fastPath bool
	var head writeItem

	if item != nil {
		if !c.wq.empty() {
			c.wq.pushBack(*item)
			return false
		}
		fastPath = true
		head = *item
	} else if c.wq.empty() {
		return true
	}

	for {
		var cur writeItem
		if fastPath {
			cur = head
		} else {
			_, it := c.wq.front()
			if it == nil {
				return true
			}
			cur = *it
		}

		if cur.kind == writeKindCallback {
			if !fastPath {
				c.wq.popFront()
				c.wq.size--
			}
			cur.cb()
			fastPath = false
			continue
		}

		buf := cur.bytes()
		toWrite := len(buf) - c.wq.offset
		n, err := rawWrite(c.sock.fd, buf[c.wq.offset:])

		switch {
		case err == unix.EPIPE || err == unix.ECONNRESET:
			return c.Close(ReasonPeerReset)
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			if fastPath {
				c.wq.pushBack(cur)
			}
			c.WatchWrite(true)
			return false
		case err != nil:
			c.r.diagnostic(1, c.r.logger().WithError(err).WithField("fd", c.sock.fd), "write failed")
			return c.Close(ReasonWriteError)
		}

		if n < toWrite {
			if fastPath {
				c.wq.pushBack(cur)
				fastPath = false
			}
			c.wq.offset += n
			c.wq.size -= n
			c.WatchWrite(true)
			return false
		}

		// full write of this item
		c.wq.offset = 0
		if fastPath {
			return true
		}
		c.wq.size -= n
		c.wq.popFront()
		fastPath = false
	}
}

// ReadDefault reads using the Reactor's configured default buffer size.
func (c *Conn) ReadDefault() ([]byte, ReadState) {
	return c.Read(c.r.readBufferSize)
}

// Read performs one non-blocking read of at most n bytes.
func (c *Conn) Read(n int) ([]byte, ReadState) {
	if c.closed {
		return nil, ReadClosed
	}
	buf := make([]byte, n)
	got, err := rawRead(c.sock.fd, buf)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return nil, ReadWouldBlock
	}
	if err != nil {
		c.r.diagnostic(1, c.r.logger().WithError(err).WithField("fd", c.sock.fd), "read failed")
		return nil, ReadClosed
	}
	if got == 0 {
		return nil, ReadClosed
	}
	return buf[:got], ReadOK
}

// DrainReadBufTo moves every queued byte item from this Conn's read
// buffer to dest by calling dest.Write in order, then zeroes the
// counter. A building block for protocol-layer splicing between two
// connections the embedder owns.
func (c *Conn) DrainReadBufTo(dest *Conn) {
	for e := c.readBuf.Front(); e != nil; {
		next := e.Next()
		chunk := e.Value.([]byte)
		dest.Write(chunk)
		c.readBuf.Remove(e)
		e = next
	}
	c.readAheadSz = 0
}

// QueueReadAhead appends a chunk to the read-ahead buffer for later
// DrainReadBufTo use. Not part of spec.md's narrow core contract, but
// the buffer it drains has to be filled by something; protocol handlers
// own this call.
func (c *Conn) QueueReadAhead(chunk []byte) {
	c.readBuf.PushBack(chunk)
	c.readAheadSz += len(chunk)
}

// WatchRead toggles READ interest. No-op on a closed connection.
func (c *Conn) WatchRead(on bool) {
	c.setInterest(EventRead, on)
}

// WatchWrite toggles WRITE interest. No-op on a closed connection.
func (c *Conn) WatchWrite(on bool) {
	c.setInterest(EventWrite, on)
}

func (c *Conn) setInterest(bit Event, on bool) {
	if c.closed {
		return
	}
	newMask := c.eventWatch
	if on {
		newMask |= bit
	} else {
		newMask &^= bit
	}
	if newMask == c.eventWatch {
		return
	}
	if err := c.r.backend.Modify(c.sock.fd, newMask); err != nil {
		c.r.diagnostic(1, c.r.logger().WithError(err).WithField("fd", c.sock.fd), "modify interest failed")
		return
	}
	c.eventWatch = newMask
}

// Close marks the connection closed, breaks any reference cycles held
// by queued callbacks, unregisters from the backend, removes it from
// the registry, and defers the actual OS-level close to the end of the
// current dispatch batch. Idempotent; always returns false so callers
// may write `return c.Close(reason)`.
func (c *Conn) Close(reason string) bool {
	if c.closed {
		return false
	}
	c.closed = true

	freed := c.wq.size
	c.wq.clear()
	if freed != 0 {
		c.r.metrics.addQueueBytes(-freed)
	}

	if err := c.r.backend.Unregister(c.sock.fd); err != nil {
		c.r.diagnostic(1, c.r.logger().WithError(err).WithField("fd", c.sock.fd), "unregister failed")
	}
	c.r.deferClose(c, reason)
	return false
}

// TcpCork sets or clears the OS-level TCP cork option. Returns
// ErrConnClosed on a closed connection.
func (c *Conn) TcpCork(on bool) error {
	if c.closed {
		return ErrConnClosed
	}
	return setTCPCork(c.sock.fd, on)
}

// PeerAddrString returns "a.b.c.d:port" (or "[ipv6]:port") for the
// connected peer, or false if the peer address is unavailable (e.g.
// already closed, or not an IPv4/IPv6 peer).
func (c *Conn) PeerAddrString() (string, bool) {
	if c.closed {
		return "", false
	}
	return peerAddrString(c.sock.fd)
}

// String renders "<type>: (open|closed)[ to <peer>]".
func (c *Conn) String() string {
	state := "open"
	if c.closed {
		state = "closed"
	}
	if peer, ok := c.PeerAddrString(); ok {
		return fmt.Sprintf("Conn: (%s) to %s", state, peer)
	}
	return fmt.Sprintf("Conn: (%s)", state)
}
