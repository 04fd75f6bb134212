package main

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"echofleet/internal/wire"
)

// runOptions mirrors the five client CLI flags.
type runOptions struct {
	host        string
	port        int
	clientCount int
	payloadSize int
	messages    int
}

// clientResult is the per-connection outcome, gathered on a channel —
// each simulated client runs as its own goroutine rather than its own
// OS process.
type clientResult struct {
	id          int
	bytesEchoed int
	elapsed     time.Duration
	err         error
}

// runLoad fans out opts.clientCount simulated clients, each sending
// opts.messages payloads of opts.payloadSize bytes and verifying the
// echo matches byte-for-byte, then prints a summary.
func runLoad(opts runOptions, log *logrus.Entry) error {
	var wg sync.WaitGroup
	results := make(chan clientResult, opts.clientCount)

	start := time.Now()
	for i := 0; i < opts.clientCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			results <- runOneClient(id, opts)
		}(i)
	}

	wg.Wait()
	close(results)
	overall := time.Since(start)

	totalBytes := 0
	failures := 0
	for r := range results {
		if r.err != nil {
			failures++
			log.WithError(r.err).WithField("client", r.id).Warn("client failed")
			continue
		}
		totalBytes += r.bytesEchoed
	}

	log.Infof("clients=%d messages=%d payload=%dB total_bytes_echoed=%d failures=%d elapsed=%s",
		opts.clientCount, opts.messages, opts.payloadSize, totalBytes, failures, overall)

	if failures > 0 {
		return fmt.Errorf("%d of %d clients failed", failures, opts.clientCount)
	}
	return nil
}

// runOneClient opens one connection, sends opts.messages payloads in
// sequence, and verifies each echo matches before sending the next.
func runOneClient(id int, opts runOptions) clientResult {
	start := time.Now()

	conn, err := wire.Connect(opts.host, opts.port)
	if err != nil {
		return clientResult{id: id, err: fmt.Errorf("dial: %w", err)}
	}
	defer conn.Close()

	payload := randomPayload(opts.payloadSize)
	recvBuf := make([]byte, wire.BufferSize)
	totalBytes := 0

	for m := 0; m < opts.messages; m++ {
		if _, err := conn.Send(payload); err != nil {
			return clientResult{id: id, err: fmt.Errorf("message %d: send: %w", m, err)}
		}

		echoed := make([]byte, 0, len(payload))
		for len(echoed) < len(payload) {
			n, err := conn.Recv(recvBuf)
			if err != nil {
				return clientResult{id: id, err: fmt.Errorf("message %d: recv: %w", m, err)}
			}
			if n == 0 {
				return clientResult{id: id, err: fmt.Errorf("message %d: server closed early", m)}
			}
			echoed = append(echoed, recvBuf[:n]...)
		}

		if !bytes.Equal(echoed, payload) {
			return clientResult{id: id, err: fmt.Errorf("message %d: echo mismatch", m)}
		}
		totalBytes += len(echoed)
	}

	return clientResult{id: id, bytesEchoed: totalBytes, elapsed: time.Since(start)}
}
