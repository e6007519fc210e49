//go:build !linux

package goreactor

import "golang.org/x/sys/unix"

// platformSetCork degrades to TCP_NODELAY on platforms without
// TCP_CORK: corking on disables Nagle-delay bypass (NODELAY=false, let
// the kernel coalesce), corking off restores NODELAY=true. This is a
// weaker approximation of the same intent (batch small writes) since
// spec.md only promises "a single corking switch", not TCP_CORK by name.
func platformSetCork(fd int, on bool) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolToInt(!on))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
