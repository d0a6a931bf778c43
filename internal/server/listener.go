package server

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// listenBacklog matches the original sink's listen(fd, 128).
const listenBacklog = 128

// Listen resolves host:port and returns one non-blocking, listening fd per
// address the resolver returns (mirroring the original's loop over
// every getaddrinfo(3) result), with SO_REUSEADDR and TCP_NODELAY already
// applied. The caller is responsible for closing each returned fd.
func Listen(host, port string) ([]int, error) {
	addrs, err := net.LookupHost(host)
	if err != nil {
		return nil, fmt.Errorf("%s:%s: %w", host, port, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%s:%s: no addresses found", host, port)
	}

	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return nil, fmt.Errorf("%s: invalid port", port)
	}

	var fds []int
	for _, addr := range addrs {
		fd, err := listenOne(addr, portNum)
		if err != nil {
			for _, f := range fds {
				_ = unix.Close(f)
			}
			return nil, err
		}
		fds = append(fds, fd)
	}
	return fds, nil
}

func listenOne(addr string, port int) (int, error) {
	ip := net.ParseIP(addr)
	family := unix.AF_INET
	if ip.To4() == nil {
		family = unix.AF_INET6
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("%s:%d: socket: %w", addr, port, err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("%s:%d: fsetfl: %w", addr, port, err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("%s:%d: setsockopt(TCP_NODELAY): %w", addr, port, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("%s:%d: setsockopt(SO_REUSEADDR): %w", addr, port, err)
	}

	if err := bind(fd, family, ip, port); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("%s[%s]:%d: bind: %w", addr, addr, port, err)
	}

	if err := unix.Listen(fd, listenBacklog); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("%s:%d: listen: %w", addr, port, err)
	}

	return fd, nil
}

func bind(fd, family int, ip net.IP, port int) error {
	if family == unix.AF_INET6 {
		var sa unix.SockaddrInet6
		copy(sa.Addr[:], ip.To16())
		sa.Port = port
		return unix.Bind(fd, &sa)
	}
	var sa unix.SockaddrInet4
	copy(sa.Addr[:], ip.To4())
	sa.Port = port
	return unix.Bind(fd, &sa)
}
