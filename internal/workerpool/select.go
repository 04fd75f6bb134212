//go:build linux

package workerpool

import (
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"echofleet/internal/eventpipe"
	"echofleet/internal/wire"
)

// fdBits is the width of one unix.FdSet.Bits word.
const fdBits = 64

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/fdBits] |= 1 << (uint(fd) % fdBits)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/fdBits]&(1<<(uint(fd)%fdBits)) != 0
}

func fdZero(set *unix.FdSet) {
	for i := range set.Bits {
		set.Bits[i] = 0
	}
}

// RunSelect is the variant (c) worker body: a scan-based, level-triggered
// select() loop. Unlike epoll, select reports readiness by scanning a
// descriptor set on every call, so the worker must keep its own
// descriptor-indexed client table to know which fds to watch and to
// rebuild the set each iteration.
func RunSelect(log *logrus.Entry) error {
	listener := wire.ListenerFromFd(ListenerFd)
	if err := listener.SetNonblock(true); err != nil {
		return err
	}
	writer := eventpipe.NewWriter(os.NewFile(uintptr(IPCFd), "ipc"))
	defer writer.Close()

	clients := make(map[int]bool)
	buf := make([]byte, wire.BufferSize)

	for {
		var readSet unix.FdSet
		fdZero(&readSet)
		fdSet(&readSet, listener.Fd())
		maxFd := listener.Fd()
		for fd := range clients {
			fdSet(&readSet, fd)
			if fd > maxFd {
				maxFd = fd
			}
		}

		n, err := unix.Select(maxFd+1, &readSet, nil, nil, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if n <= 0 {
			continue
		}

		if fdIsSet(&readSet, listener.Fd()) {
			acceptAllSelect(listener, clients, writer, log)
		}

		for fd := range clients {
			if !fdIsSet(&readSet, fd) {
				continue
			}
			conn := wire.ConnFromFd(fd)
			if drainNonblocking(conn, buf, log) {
				delete(clients, fd)
				_ = conn.Close()
				if err := writer.Emit(eventpipe.KindDone); err != nil {
					log.WithError(err).Warn("failed to emit DONE")
				}
			}
		}
	}
}

// acceptAllSelect drains the entire accept backlog on every wakeup. select
// is level-triggered (the listener stays "readable" until the backlog is
// empty), so this isn't strictly required to avoid stranding connections
// the way it is under epoll's edge-triggered mode, but doing it anyway
// keeps the observable CONNECTED-event behavior identical across variants.
func acceptAllSelect(listener *wire.Listener, clients map[int]bool, writer *eventpipe.Writer, log *logrus.Entry) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, wire.ErrWouldBlock) {
				return
			}
			log.WithError(err).Debug("accept error in select loop")
			return
		}

		if err := conn.SetNonblock(true); err != nil {
			log.WithError(err).Warn("failed to set client non-blocking")
			conn.Close()
			continue
		}

		clients[conn.Fd()] = true
		if err := writer.Emit(eventpipe.KindConnected); err != nil {
			log.WithError(err).Warn("failed to emit CONNECTED")
		}
	}
}
