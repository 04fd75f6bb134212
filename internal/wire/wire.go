// Package wire is the transport primitive: bind/listen/accept/connect and
// fixed-buffer send/recv on raw file descriptors.
//
// Raw golang.org/x/sys/unix descriptors are used end to end — for the
// listener, for accepted connections, and for descriptors inherited across
// exec — instead of net.Conn, because the readiness-multiplexed worker
// variants (epoll, select) must register the exact same descriptor with
// the kernel readiness primitive. net.Conn does expose SyscallConn for
// that, but keeping one fd-based model for every variant (including the
// blocking-accept variant) avoids switching transport types by variant.
package wire

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// BufferSize is the fixed send/recv buffer.
const BufferSize = 1024

// ErrWouldBlock is the sentinel for a non-blocking socket with no data or
// connection ready yet. A peer-closed read is reported as a clean (0, nil)
// rather than a distinct sentinel — callers already branch on n == 0 to
// detect it (see Recv below).
var ErrWouldBlock = errors.New("wire: would block")

// BindError, AcceptError and IoError wrap an underlying errno with the kind
// of operation that failed, so callers can log the right spec-named kind
// without re-deriving it from the errno.
type BindError struct{ Err error }

func (e *BindError) Error() string { return fmt.Sprintf("bind: %v", e.Err) }
func (e *BindError) Unwrap() error { return e.Err }

type AcceptError struct{ Err error }

func (e *AcceptError) Error() string { return fmt.Sprintf("accept: %v", e.Err) }
func (e *AcceptError) Unwrap() error { return e.Err }

type IoError struct{ Err error }

func (e *IoError) Error() string { return fmt.Sprintf("io: %v", e.Err) }
func (e *IoError) Unwrap() error { return e.Err }

// Listener wraps a bound, listening TCP socket as a raw descriptor.
type Listener struct {
	fd int
}

// BindAndListen creates a TCP/IPv4 listening socket on the given port with
// SO_REUSEADDR set and the given accept backlog.
func BindAndListen(port, backlog int) (*Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, &BindError{Err: err}
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, &BindError{Err: err}
	}

	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, &BindError{Err: err}
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, &BindError{Err: err}
	}

	return &Listener{fd: fd}, nil
}

// ListenerFromFd wraps an already-listening socket inherited across exec
// (e.g. via exec.Cmd.ExtraFiles), used by workers that receive the shared
// listener instead of creating their own.
func ListenerFromFd(fd int) *Listener {
	return &Listener{fd: fd}
}

// Fd returns the raw descriptor, for registration with epoll/select.
func (l *Listener) Fd() int { return l.fd }

// LocalPort returns the bound port, useful when BindAndListen was called
// with port 0 to let the OS choose an ephemeral one (tests do this to
// avoid colliding with a fixed default port).
func (l *Listener) LocalPort() (int, error) {
	sa, err := unix.Getsockname(l.fd)
	if err != nil {
		return 0, err
	}
	sa4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, fmt.Errorf("wire: unexpected sockaddr type %T", sa)
	}
	return sa4.Port, nil
}

// SetNonblock toggles O_NONBLOCK on the listening socket.
func (l *Listener) SetNonblock(nonblock bool) error {
	return unix.SetNonblock(l.fd, nonblock)
}

// Accept blocks until a client connects, or returns ErrWouldBlock if the
// listener is non-blocking and the accept queue is empty. Every other
// error is wrapped as *AcceptError and should be logged by the caller. The
// multiplexing workers log it and go back to their readiness wait; the
// process-per-connection worker logs it and exits.
func (l *Listener) Accept() (*Conn, error) {
	nfd, _, err := unix.Accept(l.fd)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, ErrWouldBlock
		}
		return nil, &AcceptError{Err: err}
	}
	return &Conn{fd: nfd}, nil
}

// Close releases the listening socket.
func (l *Listener) Close() error { return unix.Close(l.fd) }

// Conn wraps one accepted or dialed TCP connection.
type Conn struct {
	fd int
}

// ConnFromFd wraps an inherited or otherwise externally-obtained descriptor.
func ConnFromFd(fd int) *Conn { return &Conn{fd: fd} }

// Fd returns the raw descriptor.
func (c *Conn) Fd() int { return c.fd }

// SetNonblock toggles O_NONBLOCK on the connection.
func (c *Conn) SetNonblock(nonblock bool) error {
	return unix.SetNonblock(c.fd, nonblock)
}

// Send transmits exactly min(len(buf), BufferSize) bytes — never a full
// BufferSize write padded with trailing garbage past the given length.
// It loops until every byte is written: unix.Write can return a short
// count under send-buffer backpressure, and on a non-blocking descriptor
// it can also return EWOULDBLOCK outright, in which case Send polls for
// writability and retries rather than giving up on the remaining bytes.
func (c *Conn) Send(buf []byte) (int, error) {
	n := len(buf)
	if n > BufferSize {
		n = BufferSize
	}
	target := buf[:n]

	total := 0
	for total < len(target) {
		written, err := unix.Write(c.fd, target[total:])
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				if perr := c.waitWritable(); perr != nil {
					return total, perr
				}
				continue
			}
			return total, &IoError{Err: err}
		}
		total += written
	}
	return total, nil
}

// waitWritable blocks until c.fd is ready for writing, for use between
// retries after an EWOULDBLOCK from Write on a non-blocking descriptor.
func (c *Conn) waitWritable() error {
	fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLOUT}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == nil {
			return nil
		}
		if err == unix.EINTR {
			continue
		}
		return &IoError{Err: err}
	}
}

// Recv reads into buf, returning 0 with a nil error on orderly peer
// close. ErrWouldBlock is returned for a non-blocking socket with no
// data ready.
func (c *Conn) Recv(buf []byte) (int, error) {
	n, err := unix.Read(c.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		return 0, &IoError{Err: err}
	}
	return n, nil
}

// Close releases the connection's descriptor.
func (c *Conn) Close() error { return unix.Close(c.fd) }

// Connect dials host:port for client use, resolving the host through the
// stdlib resolver (DNS resolution itself is not novel domain logic) and
// then completing the connection with a raw socket so the resulting Conn
// behaves identically to a server-accepted one.
func Connect(host string, port int) (*Conn, error) {
	ipAddr, err := net.ResolveIPAddr("ip4", host)
	if err != nil {
		return nil, &IoError{Err: err}
	}
	var ip4 [4]byte
	copy(ip4[:], ipAddr.IP.To4())

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, &IoError{Err: err}
	}

	addr := &unix.SockaddrInet4{Port: port, Addr: ip4}
	if err := unix.Connect(fd, addr); err != nil {
		unix.Close(fd)
		return nil, &IoError{Err: err}
	}

	return &Conn{fd: fd}, nil
}
