package goreactor

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// funcHandler is a Handler whose callbacks are swappable func fields,
// used throughout the tests in place of a real protocol handler. Unset
// OnReadable/OnError/OnHangup are no-ops (rather than BaseHandler's
// "fail loudly" defaults) and an unset OnWritable flushes the queue like
// BaseHandler, so tests can exercise exactly the events they care about.
type funcHandler struct {
	onReadable func(c *Conn)
	onWritable func(c *Conn)
	onError    func(c *Conn)
	onHangup   func(c *Conn)
}

func (h *funcHandler) OnReadable(c *Conn) {
	if h.onReadable != nil {
		h.onReadable(c)
	}
}

func (h *funcHandler) OnWritable(c *Conn) {
	if h.onWritable != nil {
		h.onWritable(c)
		return
	}
	c.Flush()
}

func (h *funcHandler) OnError(c *Conn) {
	if h.onError != nil {
		h.onError(c)
	}
}

func (h *funcHandler) OnHangup(c *Conn) {
	if h.onHangup != nil {
		h.onHangup(c)
	}
}

// socketpair returns two connected, non-blocking AF_UNIX SOCK_STREAM
// fds, mirroring the teacher's own preference for testing against real
// sockets rather than mocks.
func socketpair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, makeNonblocking(fds[0]))
	require.NoError(t, makeNonblocking(fds[1]))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

// shrinkSndBuf forces the kernel send buffer small enough that a
// megabyte-scale write reliably partial-writes or EAGAINs, the way
// spec.md's scenario 2 assumes ("larger than SO_SNDBUF").
func shrinkSndBuf(t *testing.T, fd int) {
	t.Helper()
	require.NoError(t, unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, 4096))
}

func newTestReactor(t *testing.T) *Reactor {
	t.Helper()
	r, err := NewReactor(Options{})
	require.NoError(t, err)
	t.Cleanup(func() {
		r.backend.Close()
		unix.Close(r.shutdownR)
		unix.Close(r.shutdownW)
	})
	return r
}

// drainPeer reads whatever is currently available on fd without
// blocking, stopping at the first EAGAIN (not waiting for more to
// arrive) or once want bytes have been read, whichever comes first.
// Callers loop this interleaved with pumping the writer side.
func drainPeer(t *testing.T, fd int, want int) []byte {
	t.Helper()
	out := make([]byte, 0, want)
	buf := make([]byte, 4096)
	for len(out) < want {
		n, err := unix.Read(fd, buf)
		if err == unix.EAGAIN {
			break
		}
		require.NoError(t, err)
		if n <= 0 {
			break
		}
		out = append(out, buf[:n]...)
	}
	return out
}
