// Command echoserver-forked is variant (a): a pre-forked pool where each
// worker serves exactly one client connection via blocking accept/recv.
//
// It takes no user-facing arguments; compile-time constants can still be
// overridden through ECHOFLEET_* environment variables via
// internal/config. The binary re-execs itself to become a worker — see
// internal/workerpool and internal/supervisor.
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
		if err := workerpool.RunForked(logging.For(log, "worker")); err != nil {
			os.Exit(1)
		}
		return
	}

	cfg := config.Load()
	sup, err := supervisor.New(cfg, supervisor.VariantForked, logging.For(log, "supervisor"))
	if err != nil {
		log.WithError(err).Fatal("failed to start supervisor")
	}

	shutdown.Install(sup.Shutdown)

	if err := sup.Run(); err != nil {
		log.WithError(err).Error("supervisor exited with error")
		os.Exit(1)
	}
}
