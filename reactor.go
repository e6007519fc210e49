package goreactor

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	minMaxEvents     = 64
	maxMaxEvents     = 1024
	defaultMaxEvents = 256
)

// ForeignFdFunc is the callback associated with a "foreign" fd: a raw
// descriptor the loop watches for readability whose handler is a plain
// callback rather than a full Conn.
type ForeignFdFunc func()

// Options configures a Reactor. Only MaxEvents maps to spec.md directly
// (the "implementation may choose N... pick something in [64,1024]");
// the rest is the ambient stack a real embedder needs (metrics, logs)
// that spec.md's core leaves to the embedder but which still follows
// the teacher/pack's idiom rather than bespoke plumbing.
type Options struct {
	MaxEvents      int
	ReadBufferSize int
	Registerer     prometheus.Registerer
	Logger         *logrus.Logger
}

type deferredClose struct {
	fd     int
	reason string
}

// Reactor holds the process-wide (or, per spec.md §9's design note, a
// single explicitly-constructed) shared state: the descriptor registry,
// the foreign-fd map, the deferred-close list, and the chosen backend.
type Reactor struct {
	backend   backend
	haveEpoll bool

	registry map[int]*Conn

	foreignFds        map[int]ForeignFdFunc
	foreignRegistered map[int]bool

	toClose []deferredClose

	maxEvents      int
	readBufferSize int

	debugLevel atomic.Int32
	log        *logrus.Logger
	metrics    *reactorMetrics

	shutdownR, shutdownW int
	stopOnce             sync.Once
	stopped              atomic.Bool
}

// NewReactor selects a readiness backend (epoll if available, otherwise
// the portable poll fallback — chosen once, for the Reactor's lifetime)
// and prepares the registry, foreign-fd map, and shutdown signal.
func NewReactor(opts Options) (*Reactor, error) {
	maxEvents := opts.MaxEvents
	if maxEvents < minMaxEvents || maxEvents > maxMaxEvents {
		maxEvents = defaultMaxEvents
	}
	readBufferSize := opts.ReadBufferSize
	if readBufferSize <= 0 {
		readBufferSize = 4096
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := &Reactor{
		registry:          make(map[int]*Conn),
		foreignFds:        make(map[int]ForeignFdFunc),
		foreignRegistered: make(map[int]bool),
		maxEvents:         maxEvents,
		readBufferSize:    readBufferSize,
		log:               log,
		metrics:           newReactorMetrics(opts.Registerer),
	}

	be, err := newEpollBackend()
	if err == nil {
		r.backend = be
		r.haveEpoll = true
	} else {
		be, perr := newPollBackend()
		if perr != nil {
			return nil, errors.Wrap(perr, "no readiness backend available")
		}
		r.backend = be
		r.haveEpoll = false
	}
	r.metrics.setBackend(r.haveEpoll)

	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		r.backend.Close()
		return nil, errors.Wrap(err, "Pipe2 for shutdown signal")
	}
	r.shutdownR, r.shutdownW = fds[0], fds[1]
	if err := r.backend.Register(r.shutdownR, EventRead); err != nil {
		r.backend.Close()
		return nil, errors.Wrap(err, "registering shutdown pipe")
	}

	return r, nil
}

// registerConn registers a Conn's fd with the backend and inserts it
// into the descriptor registry (spec.md §3 invariant 1).
func (r *Reactor) registerConn(c *Conn) error {
	if err := r.backend.Register(c.sock.fd, c.eventWatch); err != nil {
		return err
	}
	r.registry[c.sock.fd] = c
	r.metrics.setWatched(len(r.registry))
	return nil
}

// deferClose removes c from the registry and pushes its raw fd onto the
// deferred-close list; the actual unix.Close happens only when the
// event loop drains that list at the end of the current batch (spec.md
// §4.6, §4.7).
func (r *Reactor) deferClose(c *Conn, reason string) {
	delete(r.registry, c.sock.fd)
	r.metrics.setWatched(len(r.registry))
	r.toClose = append(r.toClose, deferredClose{fd: c.sock.fd, reason: reason})
	r.metrics.setDeferredClose(len(r.toClose))
}

// HaveEpoll reports which backend is in use.
func (r *Reactor) HaveEpoll() bool { return r.haveEpoll }

// WatchedSockets returns the number of live registry entries.
func (r *Reactor) WatchedSockets() int { return len(r.registry) }

// ToClose returns a snapshot of the fds awaiting deferred close.
func (r *Reactor) ToClose() []int {
	out := make([]int, len(r.toClose))
	for i, dc := range r.toClose {
		out[i] = dc.fd
	}
	return out
}

// OtherFds returns the current foreign-fd map.
func (r *Reactor) OtherFds() map[int]ForeignFdFunc {
	return r.foreignFds
}

// SetOtherFds replaces the foreign-fd map, unregistering any fd no
// longer present. Newly added fds are registered with READ interest at
// the top of the next event-loop pass (spec.md §4.2 step 1).
func (r *Reactor) SetOtherFds(m map[int]ForeignFdFunc) {
	for fd := range r.foreignRegistered {
		if _, stillPresent := m[fd]; !stillPresent {
			if err := r.backend.Unregister(fd); err != nil {
				r.diagnostic(1, r.logger().WithError(err).WithField("fd", fd), "unregister foreign fd failed")
			}
			delete(r.foreignRegistered, fd)
		}
	}
	r.foreignFds = m
}

// DescriptorMap returns a snapshot of the fd->Conn registry.
func (r *Reactor) DescriptorMap() map[int]*Conn {
	out := make(map[int]*Conn, len(r.registry))
	for k, v := range r.registry {
		out[k] = v
	}
	return out
}

// DebugLevel returns the current global diagnostic verbosity.
func (r *Reactor) DebugLevel() int { return int(r.debugLevel.Load()) }

// SetDebugLevel sets the global diagnostic verbosity gating the
// diagnostic sink (spec.md §7).
func (r *Reactor) SetDebugLevel(n int) { r.debugLevel.Store(int32(n)) }

// Stop requests a clean shutdown of Run. Safe to call from any
// goroutine — it only writes one byte to a self-pipe registered for
// READ, which is the one cross-thread-safe escape hatch this otherwise
// single-threaded reactor exposes (spec.md §9 Open Question: the source
// has no clean shutdown path beyond exiting the process).
func (r *Reactor) Stop() {
	r.stopOnce.Do(func() {
		r.stopped.Store(true)
		var b [1]byte
		unix.Write(r.shutdownW, b[:])
	})
}
