//go:build linux

package colorlight

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// packetConn is an AF_PACKET/SOCK_RAW socket bound to one interface. With
// protocol 0 the socket only transmits; nothing is queued for reading.
type packetConn struct {
	mu    sync.Mutex
	fd    int
	iface string
}

func openPacketConn(iface string) (Conn, error) {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		var nf netlink.LinkNotFoundError
		if errors.As(err, &nf) {
			return nil, &Error{Kind: KindInterface, Op: "open", Iface: iface, Err: err}
		}
		return nil, classifyErrno("lookup", iface, err)
	}
	attrs := link.Attrs()
	if attrs.OperState != netlink.OperUp && attrs.OperState != netlink.OperUnknown {
		log.Warn().Str("iface", iface).Str("state", attrs.OperState.String()).Msg("interface is not up")
	}
	if need := RowFrameOverhead - 14 + MaxPixelsPerFrame*3; attrs.MTU > 0 && attrs.MTU < need {
		log.Warn().Str("iface", iface).Int("mtu", attrs.MTU).Int("need", need).Msg("interface MTU below full row frame size")
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, classifyErrno("socket", iface, err)
	}
	sa := &unix.SockaddrLinklayer{Ifindex: attrs.Index}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, classifyErrno("bind", iface, err)
	}
	return &packetConn{fd: fd, iface: iface}, nil
}

// classifyErrno maps socket/bind failures onto the construction error kinds.
func classifyErrno(op, iface string, err error) error {
	kind := KindInterface
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.EAFNOSUPPORT, unix.EPROTONOSUPPORT, unix.ESOCKTNOSUPPORT:
			kind = KindConfiguration
		case unix.EPERM, unix.EACCES:
			kind = KindPermission
		}
	}
	return &Error{Kind: kind, Op: op, Iface: iface, Err: err}
}

func (c *packetConn) WriteFrame(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fd < 0 {
		return ErrClosed
	}
	n, err := unix.Write(c.fd, b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(b))
	}
	return nil
}

func (c *packetConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}
