package workerpool

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"echofleet/internal/wire"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("component", "test")
}

func loopbackPair(t *testing.T) (server, client *wire.Conn, cleanup func()) {
	t.Helper()

	listener, err := wire.BindAndListen(0, 16)
	require.NoError(t, err)

	port, err := listener.LocalPort()
	require.NoError(t, err)

	accepted := make(chan *wire.Conn, 1)
	go func() {
		conn, _ := listener.Accept()
		accepted <- conn
	}()

	client, err = wire.Connect("127.0.0.1", port)
	require.NoError(t, err)

	server = <-accepted
	require.NotNil(t, server)

	return server, client, func() {
		client.Close()
		server.Close()
		listener.Close()
	}
}

func TestEchoLoopEchoesUntilPeerCloses(t *testing.T) {
	server, client, cleanup := loopbackPair(t)
	defer cleanup()

	done := make(chan struct{})
	go func() {
		echoLoop(server, testLogger())
		close(done)
	}()

	messages := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	buf := make([]byte, wire.BufferSize)
	for _, msg := range messages {
		_, err := client.Send(msg)
		require.NoError(t, err)

		n, err := client.Recv(buf)
		require.NoError(t, err)
		require.Equal(t, msg, buf[:n])
	}

	client.Close()
	<-done // echoLoop must return once the peer closes
}

func TestEchoLoopDoesNotPadShortMessages(t *testing.T) {
	server, client, cleanup := loopbackPair(t)
	defer cleanup()

	go echoLoop(server, testLogger())

	short := []byte("ABCDEFGHIJKLMNOPQRSTUVWX01234567") // 32 bytes
	_, err := client.Send(short)
	require.NoError(t, err)

	buf := make([]byte, wire.BufferSize)
	n, err := client.Recv(buf)
	require.NoError(t, err)
	require.Equal(t, len(short), n, "echo must not be padded to the receive buffer size")
	require.Equal(t, short, buf[:n])

	client.Close()
}

func TestDrainNonblockingReturnsFalseWhileDataKeepsArriving(t *testing.T) {
	server, client, cleanup := loopbackPair(t)
	defer cleanup()

	require.NoError(t, server.SetNonblock(true))

	payload := []byte("multiplexed")
	_, err := client.Send(payload)
	require.NoError(t, err)

	buf := make([]byte, wire.BufferSize)
	// Give the payload a moment to land in the kernel buffer.
	for i := 0; i < 100; i++ {
		closed := drainNonblocking(server, buf, testLogger())
		require.False(t, closed)
		n, err := client.Recv(buf)
		if err == nil && n > 0 {
			require.Equal(t, payload, buf[:n])
			return
		}
	}
	t.Fatal("never observed echoed payload")
}

func TestDrainNonblockingReturnsTrueOnPeerClose(t *testing.T) {
	server, client, cleanup := loopbackPair(t)
	defer cleanup()

	require.NoError(t, server.SetNonblock(true))
	client.Close()

	buf := make([]byte, wire.BufferSize)
	var closed bool
	for i := 0; i < 1000 && !closed; i++ {
		closed = drainNonblocking(server, buf, testLogger())
	}
	require.True(t, closed)
}
