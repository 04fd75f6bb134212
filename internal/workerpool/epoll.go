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

const maxEpollEvents = 128

// RunEpoll is the variant (b) worker body: a single-threaded, edge-
// triggered epoll loop that multiplexes the shared listener and every
// client descriptor it has accepted. It runs for the process lifetime —
// there is no per-connection process, so the supervisor never recycles
// this worker.
func RunEpoll(log *logrus.Entry) error {
	listener := wire.ListenerFromFd(ListenerFd)
	if err := listener.SetNonblock(true); err != nil {
		return err
	}
	writer := eventpipe.NewWriter(os.NewFile(uintptr(IPCFd), "ipc"))
	defer writer.Close()

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return err
	}
	defer unix.Close(epfd)

	if err := epollAdd(epfd, listener.Fd(), unix.EPOLLIN|unix.EPOLLET); err != nil {
		return err
	}

	events := make([]unix.EpollEvent, maxEpollEvents)
	buf := make([]byte, wire.BufferSize)

	for {
		n, err := unix.EpollWait(epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			mask := events[i].Events

			switch {
			case fd == listener.Fd():
				acceptAllEpoll(listener, epfd, writer, log)

			case mask&(unix.EPOLLHUP|unix.EPOLLERR) != 0:
				closeEpollClient(fd, epfd, writer, log)

			default:
				conn := wire.ConnFromFd(fd)
				if drainNonblocking(conn, buf, log) {
					closeEpollClient(fd, epfd, writer, log)
				}
			}
		}
	}
}

// acceptAllEpoll drains the entire accept backlog, as required under
// edge-triggered notification: a single EPOLLIN event only fires once
// per readiness transition, so any connection left unaccepted in the
// backlog would otherwise go unnoticed until more traffic arrives.
func acceptAllEpoll(listener *wire.Listener, epfd int, writer *eventpipe.Writer, log *logrus.Entry) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, wire.ErrWouldBlock) {
				return
			}
			log.WithError(err).Debug("accept error in epoll loop")
			return
		}

		if err := conn.SetNonblock(true); err != nil {
			log.WithError(err).Warn("failed to set client non-blocking")
			conn.Close()
			continue
		}

		if err := epollAdd(epfd, conn.Fd(), unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLET); err != nil {
			log.WithError(err).Warn("failed to register client with epoll")
			conn.Close()
			continue
		}

		if err := writer.Emit(eventpipe.KindConnected); err != nil {
			log.WithError(err).Warn("failed to emit CONNECTED")
		}
	}
}

func closeEpollClient(fd int, epfd int, writer *eventpipe.Writer, log *logrus.Entry) {
	_ = unix.EpollCtl(epfd, unix.EPOLL_CTL_DEL, fd, nil)
	_ = unix.Close(fd)
	if err := writer.Emit(eventpipe.KindDone); err != nil {
		log.WithError(err).Warn("failed to emit DONE")
	}
}

func epollAdd(epfd, fd int, events uint32) error {
	ev := &unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, ev)
}
