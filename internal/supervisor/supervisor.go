// Package supervisor is the long-lived parent process: it owns the
// listening socket and the IPC channel, spawns and replenishes workers,
// consumes lifecycle events, and aggregates the connection counters.
package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"echofleet/internal/config"
	"echofleet/internal/eventpipe"
	"echofleet/internal/wire"
	"echofleet/internal/workerpool"
)

// Variant selects which worker body spawned children run.
type Variant string

const (
	VariantForked Variant = "forked"
	VariantEpoll  Variant = "epoll"
	VariantSelect Variant = "select"
)

// State is the supervisor's own lifecycle.
type State int

const (
	StateInit State = iota
	StateRunning
	StateShuttingDown
	StateExited
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	case StateExited:
		return "EXITED"
	default:
		return "UNKNOWN"
	}
}

// WorkerState is the supervisor-side view of one spawned worker.
type WorkerState int

const (
	WorkerStarting WorkerState = iota
	WorkerIdle
	WorkerBusy
	WorkerExited
)

func (s WorkerState) String() string {
	switch s {
	case WorkerStarting:
		return "STARTING"
	case WorkerIdle:
		return "IDLE"
	case WorkerBusy:
		return "BUSY"
	case WorkerExited:
		return "EXITED"
	default:
		return "UNKNOWN"
	}
}

// WorkerRecord is the supervisor's opaque handle on a spawned worker.
type WorkerRecord struct {
	mu    sync.Mutex
	cmd   *exec.Cmd
	state WorkerState
}

// State returns the worker's current state (thread-safe).
func (w *WorkerRecord) State() WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Pid returns the OS process id, or 0 if the worker never started.
func (w *WorkerRecord) Pid() int {
	if w.cmd == nil || w.cmd.Process == nil {
		return 0
	}
	return w.cmd.Process.Pid
}

// Supervisor owns the listener, the IPC channel, and the worker cohort,
// threaded through main() as a single value instead of package-level
// globals.
type Supervisor struct {
	cfg     config.Config
	variant Variant
	log     *logrus.Entry

	listener     *wire.Listener
	listenerFile *os.File
	ipcWriter    *eventpipe.Writer
	ipcReader    *eventpipe.Reader

	mu      sync.Mutex
	state   State
	workers []*WorkerRecord
	wg      sync.WaitGroup

	totalConnections   int
	currentConnections int
	freeWorkers        int // variant forked only

	// spawnFn defaults to s.spawnWorker; tests override it to avoid
	// actually exec'ing a worker process while still exercising the
	// counter/top-up bookkeeping around it.
	spawnFn func() error
}

// New binds the listener and creates the IPC channel. A bind failure is
// fatal at startup.
func New(cfg config.Config, variant Variant, log *logrus.Entry) (*Supervisor, error) {
	listener, err := wire.BindAndListen(cfg.Port, cfg.Backlog)
	if err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}

	writer, reader, err := eventpipe.New()
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("supervisor: %w", err)
	}

	s := &Supervisor{
		cfg:          cfg,
		variant:      variant,
		log:          log,
		listener:     listener,
		listenerFile: os.NewFile(uintptr(listener.Fd()), "echofleet-listener"),
		ipcWriter:    writer,
		ipcReader:    reader,
		state:        StateInit,
	}
	s.spawnFn = s.spawnWorker
	return s, nil
}

// Workers returns a snapshot of the current worker cohort.
func (s *Supervisor) Workers() []*WorkerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*WorkerRecord, len(s.workers))
	copy(out, s.workers)
	return out
}

// Counters returns the current (total, current, freeWorkers) triple.
func (s *Supervisor) Counters() (total, current, free int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalConnections, s.currentConnections, s.freeWorkers
}

// State returns the supervisor's own lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// spawnWorker self-execs the running binary with the worker-mode
// environment variable set and the listener + IPC write end inherited as
// fixed descriptors. This stands in for fork(): Go has no bare fork, so
// every new worker is a fresh exec of the same binary instead of a copy
// of the supervisor's address space (see DESIGN.md).
func (s *Supervisor) spawnWorker() error {
	cmd := exec.Command(os.Args[0])
	cmd.Env = append(os.Environ(), workerpool.EnvWorkerMode+"=1")
	cmd.ExtraFiles = []*os.File{s.listenerFile, s.ipcWriter.File()}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn worker: %w", err)
	}

	rec := &WorkerRecord{cmd: cmd, state: WorkerStarting}

	s.mu.Lock()
	s.workers = append(s.workers, rec)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.reap(rec)

	return nil
}

// reap blocks in Wait on its own goroutine so the main control path is
// never stalled by a child exiting — the Go equivalent of a SIGCHLD
// handler doing a WNOHANG waitpid loop.
func (s *Supervisor) reap(rec *WorkerRecord) {
	defer s.wg.Done()
	_ = rec.cmd.Wait()
	rec.mu.Lock()
	rec.state = WorkerExited
	rec.mu.Unlock()
}

// Run spawns the initial worker cohort and then blocks consuming IPC
// events until Shutdown transitions the supervisor out of RUNNING.
func (s *Supervisor) Run() error {
	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()

	s.log.Info("===================================")
	s.log.Info("Waiting for connections:")
	s.log.Info("===================================")

	spawned := 0
	for i := 0; i < s.cfg.MinFreeProcesses; i++ {
		if err := s.spawnFn(); err != nil {
			s.log.WithError(err).Warn("spawn failed during initial cohort")
			continue
		}
		spawned++
	}
	s.log.Infof("%d workers created", spawned)

	if s.variant == VariantForked {
		s.mu.Lock()
		s.freeWorkers = spawned
		s.mu.Unlock()
	}

	for {
		kind, err := s.ipcReader.Next()
		if err != nil {
			if st := s.State(); st == StateShuttingDown || st == StateExited {
				return nil
			}
			return fmt.Errorf("supervisor: ipc read: %w", err)
		}
		s.handleEvent(kind)
	}
}

// handleEvent applies the counter-update contract for one event.
//
// Variant forked decrements freeWorkers on CONNECTED but never
// increments it on DONE — only a successful top-up increments it. This
// is an intentionally preserved quirk, not an oversight (see DESIGN.md).
func (s *Supervisor) handleEvent(kind eventpipe.Kind) {
	var needsTopUp bool

	s.mu.Lock()
	switch kind {
	case eventpipe.KindConnected:
		s.currentConnections++
		s.totalConnections++
		if s.variant == VariantForked {
			s.freeWorkers--
			if s.freeWorkers < s.cfg.MinFreeProcesses-s.cfg.ReplenishIncrement {
				needsTopUp = true
			}
		}
	case eventpipe.KindDone:
		if s.currentConnections > 0 {
			s.currentConnections--
		}
	case eventpipe.KindUnknown:
		// Unrecognized records are no-ops.
	}
	total, current := s.totalConnections, s.currentConnections
	s.mu.Unlock()

	s.log.Infof("currentConnections=%d; totalConnections=%d", current, total)

	if needsTopUp {
		s.topUp()
	}
}

// topUp spawns a fresh batch of MinFreeProcesses workers. A spawn failure
// aborts the remainder of the batch; the next qualifying event reattempts.
func (s *Supervisor) topUp() {
	s.log.Info("free worker count below threshold — replenishing")

	spawned := 0
	for i := 0; i < s.cfg.MinFreeProcesses; i++ {
		if err := s.spawnFn(); err != nil {
			s.log.WithError(err).Warn("spawn failed during top-up; aborting this batch")
			break
		}
		spawned++
	}

	s.mu.Lock()
	s.freeWorkers += spawned
	free := s.freeWorkers
	s.mu.Unlock()

	s.log.Infof("top-up complete: %d workers added (freeWorkers=%d)", spawned, free)
}

// Shutdown transitions SHUTTING_DOWN → EXITED: every recorded worker is
// signaled, the listener and IPC channel are closed, and the supervisor
// waits (briefly) for workers to exit before returning. No drain is
// attempted — abrupt termination is acceptable here.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	if s.state == StateShuttingDown || s.state == StateExited {
		s.mu.Unlock()
		return
	}
	s.state = StateShuttingDown
	workers := append([]*WorkerRecord(nil), s.workers...)
	s.mu.Unlock()

	for _, w := range workers {
		w.mu.Lock()
		cmd := w.cmd
		w.mu.Unlock()
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.log.Warn("timed out waiting for workers to exit during shutdown")
	}

	_ = s.listener.Close()
	_ = s.ipcWriter.Close()
	_ = s.ipcReader.Close()

	s.mu.Lock()
	s.state = StateExited
	s.mu.Unlock()

	s.log.Info("supervisor shut down")
}
