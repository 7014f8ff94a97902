//go:build linux

package coreact

import (
	"fmt"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

func wouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

// fdReader adapts a non-blocking descriptor to io.Reader. EAGAIN is
// returned as an error so buffered readers hand it back to the caller
// instead of spinning.
type fdReader struct {
	fd int
}

func (r *fdReader) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(r.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return 0, err
		case n == 0 && len(p) > 0:
			return 0, io.EOF
		default:
			return n, nil
		}
	}
}

// socketAddr converts a TCP address to the socket domain and
// sockaddr used to bind it.
func socketAddr(addr *net.TCPAddr) (int, unix.Sockaddr) {
	if ip4 := addr.IP.To4(); ip4 != nil || len(addr.IP) == 0 {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa
	}

	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	return unix.AF_INET6, sa
}

func tcpAddr(sa unix.Sockaddr) net.Addr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(append([]byte(nil), sa.Addr[:]...)), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(append([]byte(nil), sa.Addr[:]...)), Port: sa.Port}
	default:
		return nil
	}
}

// newSocket opens a non-blocking TCP socket bound and listening on
// address.
func newSocket(address string) (int, net.Addr, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return -1, nil, fmt.Errorf("coreact: resolve %q: %w", address, err)
	}

	domain, sa := socketAddr(addr)

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, nil, fmt.Errorf("coreact: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, nil, fmt.Errorf("coreact: setsockopt: %w", err)
	}

	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, nil, fmt.Errorf("coreact: bind %s: %w", address, err)
	}

	if err := unix.Listen(fd, listenBacklog); err != nil {
		_ = unix.Close(fd)
		return -1, nil, fmt.Errorf("coreact: listen %s: %w", address, err)
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return -1, nil, fmt.Errorf("coreact: getsockname: %w", err)
	}

	return fd, tcpAddr(bound), nil
}
