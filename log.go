package goreactor

import "github.com/sirupsen/logrus"

// diagnostic is the single sink all internal logging goes through,
// gated by Reactor.DebugLevel per spec.md §7: level 0 is silent, level
// >= 1 surfaces transient/backend and socket errors (every call site in
// this package uses level 1); messages passed with level >= 2 are
// logged at Debug.
func (r *Reactor) diagnostic(level int, entry *logrus.Entry, msg string) {
	if r.debugLevel.Load() < int32(level) {
		return
	}
	switch {
	case level >= 2:
		entry.Debug(msg)
	case level == 1:
		entry.Warn(msg)
	default:
		entry.Info(msg)
	}
}

func (r *Reactor) logger() *logrus.Entry {
	return logrus.NewEntry(r.log)
}
