package goreactor

import "github.com/sirupsen/logrus"

// Handler is the capability set a consumer supplies per Conn: the
// "virtual callbacks" of spec.md §6, realized as a plain interface field
// assigned once at construction rather than runtime-virtual dispatch —
// per the design note in spec.md §9, there is exactly one handler per
// connection for its lifetime, so a static interface value is both the
// idiomatic and the cheap choice in Go.
type Handler interface {
	OnReadable(c *Conn)
	OnWritable(c *Conn)
	OnError(c *Conn)
	OnHangup(c *Conn)
}

// BaseHandler supplies the defaults spec.md §6 describes: OnWritable
// simply flushes the queue, and the other three fail loudly because a
// concrete protocol handler was supposed to override them. Embed it in a
// handler struct to get the default OnWritable, and to get a panic with
// a clear message instead of silent misbehavior for anything left
// unimplemented.
type BaseHandler struct{}

func (BaseHandler) OnReadable(c *Conn) {
	logrus.WithField("fd", c.sock.Fd()).Error("goreactor: OnReadable not overridden")
	panic("goreactor: Handler.OnReadable called on BaseHandler: missing subclass override")
}

func (BaseHandler) OnWritable(c *Conn) {
	c.Flush()
}

func (BaseHandler) OnError(c *Conn) {
	logrus.WithField("fd", c.sock.Fd()).Error("goreactor: OnError not overridden")
	panic("goreactor: Handler.OnError called on BaseHandler: missing subclass override")
}

func (BaseHandler) OnHangup(c *Conn) {
	logrus.WithField("fd", c.sock.Fd()).Error("goreactor: OnHangup not overridden")
	panic("goreactor: Handler.OnHangup called on BaseHandler: missing subclass override")
}
