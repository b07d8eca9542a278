package cxmx

import (
	"net"

	"golang.org/x/sys/unix"
)

// This file holds cxmx's socket primitives: thin wrappers around BSD
// sockets. It builds raw, non-blocking fds directly with
// golang.org/x/sys/unix rather than wrapping a stdlib net.Conn,
// because the reactor owns fds end to end from listen/connect through
// close (see DESIGN.md's redesign note).
//
// IPv4 only; no dual-stack or IPv6 policy is implemented.

func resolveIPv4(host string) ([4]byte, error) {
	if host == "" {
		return [4]byte{}, nil // "host=null" means all interfaces
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			var b [4]byte
			copy(b[:], ip4)
			return b, nil
		}
		return [4]byte{}, newf("cxmx: %s is not an IPv4 address", host)
	}
	addrs, err := net.LookupHost(host)
	if err != nil {
		return [4]byte{}, wrapf(err, "cxmx: resolve host %q", host)
	}
	for _, addr := range addrs {
		if ip := net.ParseIP(addr); ip != nil {
			if ip4 := ip.To4(); ip4 != nil {
				var b [4]byte
				copy(b[:], ip4)
				return b, nil
			}
		}
	}
	return [4]byte{}, newf("cxmx: host %q has no IPv4 address", host)
}

func setNonblockCloexec(fd int) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return wrapf(err, "cxmx: set non-blocking")
	}
	unix.CloseOnExec(fd)
	return nil
}

func tcpListen(host string, port uint16) (int, error) {
	ip, err := resolveIPv4(host)
	if err != nil {
		return -1, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, wrapf(err, "cxmx: socket")
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, wrapf(err, "cxmx: setsockopt SO_REUSEADDR")
	}
	if err := setNonblockCloexec(fd); err != nil {
		unix.Close(fd)
		return -1, err
	}
	sa := &unix.SockaddrInet4{Port: int(port), Addr: ip}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, wrapf(err, "cxmx: bind %s:%d", host, port)
	}
	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return -1, wrapf(err, "cxmx: listen")
	}
	return fd, nil
}

func tcpConnect(host string, port uint16) (int, error) {
	ip, err := resolveIPv4(host)
	if err != nil {
		return -1, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, wrapf(err, "cxmx: socket")
	}
	if err := setNonblockCloexec(fd); err != nil {
		unix.Close(fd)
		return -1, err
	}
	sa := &unix.SockaddrInet4{Port: int(port), Addr: ip}
	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return -1, wrapf(err, "cxmx: connect %s:%d", host, port)
	}
	return fd, nil
}

func tcpAccept(fd int) (int, error) {
	nfd, _, err := unix.Accept(fd)
	if err != nil {
		return -1, err
	}
	if err := setNonblockCloexec(nfd); err != nil {
		unix.Close(nfd)
		return -1, err
	}
	return nfd, nil
}

func udpSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return -1, wrapf(err, "cxmx: socket")
	}
	if err := setNonblockCloexec(fd); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func udpBind(fd int, host string, port uint16) error {
	ip, err := resolveIPv4(host)
	if err != nil {
		return err
	}
	sa := &unix.SockaddrInet4{Port: int(port), Addr: ip}
	if err := unix.Bind(fd, sa); err != nil {
		return wrapf(err, "cxmx: bind %s:%d", host, port)
	}
	return nil
}

func udpConnect(fd int, host string, port uint16) error {
	ip, err := resolveIPv4(host)
	if err != nil {
		return err
	}
	sa := &unix.SockaddrInet4{Port: int(port), Addr: ip}
	if err := unix.Connect(fd, sa); err != nil {
		return wrapf(err, "cxmx: connect %s:%d", host, port)
	}
	return nil
}

// localAddr queries the address the kernel assigned to fd, letting a
// caller that bound a listener with port=0 discover the ephemeral
// port the OS chose.
func localAddr(fd int) (host string, port uint16, err error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return "", 0, wrapf(err, "cxmx: getsockname")
	}
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		ip := net.IP(v.Addr[:])
		return ip.String(), uint16(v.Port), nil
	default:
		return "", 0, newf("cxmx: unexpected sockaddr type %T", sa)
	}
}
