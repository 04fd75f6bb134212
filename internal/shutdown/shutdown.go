// Package shutdown is the signal/shutdown controller. It translates
// SIGINT/SIGTERM into a single onInterrupt callback, keeping the actual
// signal handler itself trivial and re-entrancy-safe — all real teardown
// work happens on the callback's own goroutine, off the signal-delivery
// path.
package shutdown

import (
	"os"
	"os/signal"
	"syscall"
)

// Controller owns the signal channel for the process lifetime.
type Controller struct {
	sigCh chan os.Signal
}

// Install registers SIGINT/SIGTERM and invokes onInterrupt exactly once,
// on its own goroutine, the first time either arrives. Unlike a handler
// that calls os.Exit(0) itself, the caller decides what happens after
// onInterrupt returns.
func Install(onInterrupt func()) *Controller {
	c := &Controller{sigCh: make(chan os.Signal, 1)}
	signal.Notify(c.sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-c.sigCh
		_ = sig
		onInterrupt()
	}()

	return c
}

// Stop releases the signal registration.
func (c *Controller) Stop() {
	signal.Stop(c.sigCh)
}
