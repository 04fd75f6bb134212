// Package workerpool implements the three worker variants: a
// process-per-connection blocking worker, an epoll readiness multiplexer,
// and a select readiness multiplexer. All three are spawned by the
// supervisor as a self-exec of the same binary (see internal/supervisor),
// inheriting the shared listener and the IPC write end as fixed file
// descriptors instead of via a real fork(), which Go does not expose.
package workerpool

import "os"

// EnvWorkerMode, when set to "1" in the environment, tells main() to run
// as a worker instead of as the supervisor.
const EnvWorkerMode = "ECHOFLEET_WORKER"

// Fixed descriptor numbers for the two inherited files. exec.Cmd.ExtraFiles
// starts at fd 3 (0, 1, 2 are stdin/stdout/stderr), so ExtraFiles[0] lands
// on 3 and ExtraFiles[1] on 4 in every spawned worker.
const (
	ListenerFd = 3
	IPCFd      = 4
)

// IsWorkerMode reports whether this process was launched as a worker.
func IsWorkerMode() bool {
	return os.Getenv(EnvWorkerMode) == "1"
}
