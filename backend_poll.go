package goreactor

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// pollBackend is the portable fallback: a []unix.PollFd array with an
// fd->index map, so Modify/Unregister are O(1) (Unregister swaps the
// last entry into the freed slot); Wait scans the whole array. Correct
// everywhere unix.Poll is available — the role spec.md assigns to
// "the portable poll-array backend".
type pollBackend struct {
	fds []unix.PollFd
	idx map[int]int // fd -> index into fds
}

func newPollBackend() (backend, error) {
	// unix.Poll always exists on every platform golang.org/x/sys/unix
	// builds for; there is nothing to probe at construction time beyond
	// allocating the bookkeeping structures.
	return &pollBackend{idx: make(map[int]int)}, nil
}

func toPollEvents(mask Event) int16 {
	var ev int16
	if mask.has(EventRead) {
		ev |= unix.POLLIN
	}
	if mask.has(EventWrite) {
		ev |= unix.POLLOUT
	}
	return ev
}

func fromPollEvents(revents int16) Event {
	var mask Event
	if revents&unix.POLLIN != 0 {
		mask |= EventRead
	}
	if revents&unix.POLLOUT != 0 {
		mask |= EventWrite
	}
	if revents&unix.POLLERR != 0 {
		mask |= EventErr
	}
	if revents&(unix.POLLHUP|unix.POLLRDHUP) != 0 {
		mask |= EventHup
	}
	return mask
}

func (b *pollBackend) Register(fd int, mask Event) error {
	if _, ok := b.idx[fd]; ok {
		return ErrAlreadyRegistered
	}
	b.idx[fd] = len(b.fds)
	b.fds = append(b.fds, unix.PollFd{Fd: int32(fd), Events: toPollEvents(mask)})
	return nil
}

func (b *pollBackend) Modify(fd int, mask Event) error {
	i, ok := b.idx[fd]
	if !ok {
		return ErrNotRegistered
	}
	b.fds[i].Events = toPollEvents(mask)
	return nil
}

func (b *pollBackend) Unregister(fd int) error {
	i, ok := b.idx[fd]
	if !ok {
		return ErrNotRegistered
	}
	last := len(b.fds) - 1
	moved := b.fds[last]
	b.fds[i] = moved
	b.fds = b.fds[:last]
	delete(b.idx, fd)
	if int(moved.Fd) != fd {
		b.idx[int(moved.Fd)] = i
	}
	return nil
}

func (b *pollBackend) Wait(maxEvents int, timeoutMS int) ([]PollEvent, error) {
	if len(b.fds) == 0 {
		// unix.Poll with an empty slice still blocks for timeoutMS; honor
		// that rather than special-casing, except that a -1 timeout with
		// nothing to watch would hang the loop forever on some platforms.
		if timeoutMS < 0 {
			timeoutMS = 1000
		}
	}
	n, err := unix.Poll(b.fds, timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, errors.Wrap(err, "Poll")
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]PollEvent, 0, n)
	for i := range b.fds {
		if b.fds[i].Revents == 0 {
			continue
		}
		mask := fromPollEvents(b.fds[i].Revents)
		if mask != 0 {
			out = append(out, PollEvent{Fd: int(b.fds[i].Fd), Mask: mask})
		}
		b.fds[i].Revents = 0
		if len(out) >= maxEvents {
			break
		}
	}
	return out, nil
}

func (b *pollBackend) Close() error {
	b.fds = nil
	b.idx = nil
	return nil
}

func (b *pollBackend) Name() string { return "poll" }
