package workerpool

import (
	"os"

	"github.com/sirupsen/logrus"

	"echofleet/internal/eventpipe"
	"echofleet/internal/wire"
)

// RunForked is the variant (a) worker body: blocking accept on the shared
// listener, one connection per process, then exit. The supervisor does
// not replace a worker when it exits; it only marks the record EXITED, and
// new workers are spawned when CONNECTED events drive the free-worker
// count below its threshold.
func RunForked(log *logrus.Entry) error {
	listener := wire.ListenerFromFd(ListenerFd)
	writer := eventpipe.NewWriter(os.NewFile(uintptr(IPCFd), "ipc"))
	defer writer.Close()

	conn, err := listener.Accept()
	if err != nil {
		log.WithError(err).Warn("accept failed; worker exiting without serving a connection")
		return err
	}
	defer conn.Close()

	if err := writer.Emit(eventpipe.KindConnected); err != nil {
		log.WithError(err).Warn("failed to emit CONNECTED")
	}

	echoLoop(conn, log)

	if err := writer.Emit(eventpipe.KindDone); err != nil {
		log.WithError(err).Warn("failed to emit DONE")
	}
	return nil
}
