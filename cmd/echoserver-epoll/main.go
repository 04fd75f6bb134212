// Command echoserver-epoll is variant (b): a pre-forked pool where each
// worker multiplexes many clients with an edge-triggered epoll readiness
// primitive. See internal/workerpool.RunEpoll for the per-worker loop.
package main

import (
	"os"

	"echofleet/internal/config"
	"echofleet/internal/logging"
	"echofleet/internal/shutdown"
	"echofleet/internal/supervisor"
	"echofleet/internal/workerpool"
)

func main() {
	log := logging.New()

	if workerpool.IsWorkerMode() {
		if err := workerpool.RunEpoll(logging.For(log, "worker")); err != nil {
			os.Exit(1)
		}
		return
	}

	cfg := config.Load()
	sup, err := supervisor.New(cfg, supervisor.VariantEpoll, logging.For(log, "supervisor"))
	if err != nil {
		log.WithError(err).Fatal("failed to start supervisor")
	}

	shutdown.Install(sup.Shutdown)

	if err := sup.Run(); err != nil {
		log.WithError(err).Error("supervisor exited with error")
		os.Exit(1)
	}
}
