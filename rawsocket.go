package goreactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// RawSocket is the owned non-blocking socket handle backing a Conn: just
// the fd, since all other state (queue, interest mask) lives on Conn
// itself. Kept as a distinct type so Conn.Sock() has something narrower
// to return than a bare int.
type RawSocket struct {
	fd int
}

// Fd returns the underlying descriptor number.
func (s RawSocket) Fd() int { return s.fd }

func makeNonblocking(fd int) error {
	return unix.SetNonblock(fd, true)
}

func rawRead(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func rawWrite(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Write(fd, buf)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// peerAddrString formats an IPv4 sockaddr returned by Getpeername as
// "a.b.c.d:port" (the format spec.md §6 requires) and an IPv6 one as
// "[h:h:h:h:h:h:h:h]:port"; any other address family reports false.
func peerAddrString(fd int) (string, bool) {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return "", false
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3], a.Port), true
	case *unix.SockaddrInet6:
		return fmt.Sprintf("[%s]:%d", formatIPv6(a.Addr), a.Port), true
	default:
		return "", false
	}
}

func formatIPv6(addr [16]byte) string {
	return fmt.Sprintf("%x:%x:%x:%x:%x:%x:%x:%x",
		uint16(addr[0])<<8|uint16(addr[1]),
		uint16(addr[2])<<8|uint16(addr[3]),
		uint16(addr[4])<<8|uint16(addr[5]),
		uint16(addr[6])<<8|uint16(addr[7]),
		uint16(addr[8])<<8|uint16(addr[9]),
		uint16(addr[10])<<8|uint16(addr[11]),
		uint16(addr[12])<<8|uint16(addr[13]),
		uint16(addr[14])<<8|uint16(addr[15]))
}

// setTCPCork sets or clears TCP_CORK on linux. On platforms that lack
// TCP_CORK this degrades to toggling TCP_NODELAY's complement, which is
// the closest portable approximation of "don't send partial frames yet".
func setTCPCork(fd int, on bool) error {
	return platformSetCork(fd, on)
}
