package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBindAndListenThenAcceptEcho(t *testing.T) {
	listener, err := BindAndListen(0, 16)
	require.NoError(t, err)
	defer listener.Close()

	port, err := listener.LocalPort()
	require.NoError(t, err)

	accepted := make(chan *Conn, 1)
	acceptErr := make(chan error, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			acceptErr <- err
			return
		}
		accepted <- conn
	}()

	client, err := Connect("127.0.0.1", port)
	require.NoError(t, err)
	defer client.Close()

	var server *Conn
	select {
	case server = <-accepted:
	case err := <-acceptErr:
		t.Fatalf("accept failed: %v", err)
	}
	defer server.Close()

	payload := []byte("hello scalable echo")
	n, err := client.Send(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	buf := make([]byte, BufferSize)
	n, err = server.Recv(buf)
	require.NoError(t, err)
	require.Equal(t, payload, buf[:n])
}

func TestSendTruncatesToBufferSize(t *testing.T) {
	listener, err := BindAndListen(0, 16)
	require.NoError(t, err)
	defer listener.Close()

	port, err := listener.LocalPort()
	require.NoError(t, err)

	accepted := make(chan *Conn, 1)
	go func() {
		conn, _ := listener.Accept()
		accepted <- conn
	}()

	client, err := Connect("127.0.0.1", port)
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	require.NotNil(t, server)
	defer server.Close()

	oversized := make([]byte, BufferSize+256)
	for i := range oversized {
		oversized[i] = 'x'
	}

	n, err := client.Send(oversized)
	require.NoError(t, err)
	require.Equal(t, BufferSize, n, "send must transmit exactly min(len, BufferSize) bytes, never the full oversized buffer")
}

func TestRecvReturnsZeroOnPeerClose(t *testing.T) {
	listener, err := BindAndListen(0, 16)
	require.NoError(t, err)
	defer listener.Close()

	port, err := listener.LocalPort()
	require.NoError(t, err)

	accepted := make(chan *Conn, 1)
	go func() {
		conn, _ := listener.Accept()
		accepted <- conn
	}()

	client, err := Connect("127.0.0.1", port)
	require.NoError(t, err)

	server := <-accepted
	require.NotNil(t, server)
	defer server.Close()

	require.NoError(t, client.Close())

	buf := make([]byte, BufferSize)
	n, err := server.Recv(buf)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestAcceptWouldBlockOnNonblockingListenerWithEmptyQueue(t *testing.T) {
	listener, err := BindAndListen(0, 16)
	require.NoError(t, err)
	defer listener.Close()

	require.NoError(t, listener.SetNonblock(true))

	_, err = listener.Accept()
	require.ErrorIs(t, err, ErrWouldBlock)
}
