//go:build linux

package goreactor

import "golang.org/x/sys/unix"

func platformSetCork(fd int, on bool) error {
	v := 0
	if on {
		v = 1
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_CORK, v)
}
