package goreactor

import "errors"

var (
	// ErrAlreadyRegistered is returned by a backend's register when the fd
	// is already being tracked.
	ErrAlreadyRegistered = errors.New("goreactor: fd already registered")
	// ErrNotRegistered is returned by modify/unregister for an unknown fd.
	ErrNotRegistered = errors.New("goreactor: fd not registered")
	// ErrReactorClosed means Stop has already been called.
	ErrReactorClosed = errors.New("goreactor: reactor stopped")
	// ErrUnsupportedBackend is returned by the epoll constructor on
	// platforms without epoll; NewReactor then falls back to poll.
	ErrUnsupportedBackend = errors.New("goreactor: no readiness backend available")
	// ErrConnClosed is returned by operations attempted on a dead Conn
	// where a zero value can't stand in for "already closed".
	ErrConnClosed = errors.New("goreactor: connection closed")
)

// Close reason strings describing why a Conn transitioned to CLOSING.
// The write path passes ReasonPeerReset and ReasonWriteError itself;
// Read never closes, so ReasonPeerEOF and ReasonReadError are for
// handlers reacting to a ReadClosed result. These are conventional, not
// an exhaustive enum — handlers may pass any string to Close.
const (
	ReasonPeerReset  = "peer_reset"
	ReasonWriteError = "write_error"
	ReasonPeerEOF    = "peer_eof"
	ReasonReadError  = "read_error"
)
