// Package goreactor implements a single-threaded, non-blocking socket
// reactor: a reusable base for building event-driven network services
// (proxies, front-end accept/relay servers, custom protocol endpoints).
//
// The core provides a readiness-based event loop that multiplexes many
// file descriptors with O(1) interest updates (epoll, falling back to a
// portable poll-based implementation), a per-connection object model
// encapsulating a socket, a pending-write queue with partial-write
// handling and inline callbacks, and a deferred-close discipline that
// prevents descriptor reuse inside a single dispatch pass.
//
// Concrete protocol handlers, accept listeners, TLS, timers, and name
// resolution are external collaborators, not part of this package: a
// consumer implements Handler and drives accept() itself, handing the
// resulting non-blocking fd to NewConn.
package goreactor
