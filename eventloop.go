package goreactor

import (
	"context"

	"golang.org/x/sys/unix"
)

// Run is the event loop of spec.md §4.2: register pending foreign fds,
// block in the backend, dispatch readable/writable/err/hup to owners in
// fixed order with a staleness re-check before each dispatch, then drain
// the deferred-close list. Returns nil only after Stop is called (or ctx
// is canceled, which calls Stop internally); any other condition is
// logged and retried rather than propagated, per spec.md §7's
// propagation policy ("the core never raises out of the event loop").
func (r *Reactor) Run(ctx context.Context) error {
	if ctx != nil {
		stopCh := make(chan struct{})
		defer close(stopCh)
		go func() {
			select {
			case <-ctx.Done():
				r.Stop()
			case <-stopCh:
			}
		}()
	}

	for {
		r.registerPendingForeignFds()

		events, err := r.backend.Wait(r.maxEvents, -1)
		if err != nil {
			r.diagnostic(1, r.logger().WithError(err), "backend wait failed, retrying")
			continue
		}
		if len(events) == 0 {
			continue
		}

		for _, ev := range events {
			if ev.Fd == r.shutdownR {
				r.drainShutdownPipe()
				r.drainDeferredClose()
				return nil
			}

			owner, ok := r.registry[ev.Fd]
			if !ok {
				if cb, isForeign := r.foreignFds[ev.Fd]; isForeign {
					cb()
				}
				continue
			}

			// Staleness check: owner may have been closed by an earlier
			// event in this same batch; its fd may already be slated for
			// reuse once the deferred-close drain runs. Skip entirely.
			if owner.closed {
				continue
			}

			if ev.Mask.has(EventRead) && !owner.closed {
				owner.handler.OnReadable(owner)
			}
			if ev.Mask.has(EventWrite) && !owner.closed {
				owner.handler.OnWritable(owner)
			}
			if ev.Mask.has(EventErr) && !owner.closed {
				owner.handler.OnError(owner)
			}
			if ev.Mask.has(EventHup) && !owner.closed {
				owner.handler.OnHangup(owner)
			}
		}

		r.drainDeferredClose()

		if r.stopped.Load() {
			return nil
		}
	}
}

func (r *Reactor) registerPendingForeignFds() {
	for fd := range r.foreignFds {
		if r.foreignRegistered[fd] {
			continue
		}
		if err := r.backend.Register(fd, EventRead); err != nil {
			r.diagnostic(1, r.logger().WithError(err).WithField("fd", fd), "registering foreign fd failed")
			continue
		}
		r.foreignRegistered[fd] = true
	}
}

func (r *Reactor) drainShutdownPipe() {
	var buf [64]byte
	for {
		n, err := unix.Read(r.shutdownR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// drainDeferredClose releases the OS handle for every socket queued by
// Close during this batch. Tolerates additions made during the drain
// itself (e.g. a close handler closing another connection), since the
// deferred-close queue is consumed by index rather than range-copied.
func (r *Reactor) drainDeferredClose() {
	for i := 0; i < len(r.toClose); i++ {
		dc := r.toClose[i]
		if err := unix.Close(dc.fd); err != nil {
			r.diagnostic(1, r.logger().WithError(err).WithField("fd", dc.fd), "close failed")
		}
		r.metrics.observeClose(dc.reason)
	}
	r.toClose = r.toClose[:0]
	r.metrics.setDeferredClose(0)
}
