package workerpool

import (
	"errors"

	"github.com/sirupsen/logrus"

	"echofleet/internal/wire"
)

// echoLoop drains one blocking connection to completion: read, echo back
// verbatim, repeat until the peer closes or an error occurs. Used by the
// process-per-connection worker (variant a), where each worker handles
// exactly one connection for its entire lifetime.
func echoLoop(conn *wire.Conn, log *logrus.Entry) {
	buf := make([]byte, wire.BufferSize)
	for {
		n, err := conn.Recv(buf)
		if err != nil {
			if errors.Is(err, wire.ErrWouldBlock) {
				continue
			}
			log.WithError(err).Debug("recv error, closing connection")
			return
		}
		if n == 0 {
			return
		}
		if _, err := conn.Send(buf[:n]); err != nil {
			log.WithError(err).Debug("send error, closing connection")
			return
		}
	}
}

// drainNonblocking echoes everything currently available on a non-blocking
// connection without waiting for more: recv/send until the recv would
// block (no more data right now) or the peer closes. Used by both
// multiplex variants (b, c) each time their readiness primitive reports
// a client descriptor ready. Returns true if the peer closed or errored
// and the connection should be torn down.
func drainNonblocking(conn *wire.Conn, buf []byte, log *logrus.Entry) (closed bool) {
	for {
		n, err := conn.Recv(buf)
		if err != nil {
			if errors.Is(err, wire.ErrWouldBlock) {
				return false
			}
			log.WithError(err).Debug("recv error, closing connection")
			return true
		}
		if n == 0 {
			return true
		}
		if _, err := conn.Send(buf[:n]); err != nil {
			log.WithError(err).Debug("send error, closing connection")
			return true
		}
	}
}
