package supervisor

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"echofleet/internal/config"
	"echofleet/internal/eventpipe"
)

func testSupervisor(t *testing.T, variant Variant, cfg config.Config) *Supervisor {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg.Port = 0 // ephemeral, avoids colliding with a real server under test
	sup, err := New(cfg, variant, log.WithField("component", "test"))
	require.NoError(t, err)

	spawnCount := 0
	sup.spawnFn = func() error {
		spawnCount++
		return nil
	}

	t.Cleanup(func() {
		sup.listener.Close()
		sup.ipcWriter.Close()
		sup.ipcReader.Close()
	})

	return sup
}

func baseConfig() config.Config {
	return config.Config{
		Port:               0,
		Backlog:            16,
		MinFreeProcesses:   30,
		ReplenishIncrement: 10,
		IPCRecordSize:      128,
		BufferSize:         1024,
	}
}

func TestConnectedIncrementsCountersAndDecrementsFreeWorkers(t *testing.T) {
	sup := testSupervisor(t, VariantForked, baseConfig())
	sup.freeWorkers = 30

	sup.handleEvent(eventpipe.KindConnected)

	total, current, free := sup.Counters()
	require.Equal(t, 1, total)
	require.Equal(t, 1, current)
	require.Equal(t, 29, free)
}

func TestDoneDecrementsCurrentOnly(t *testing.T) {
	sup := testSupervisor(t, VariantForked, baseConfig())
	sup.freeWorkers = 30
	sup.totalConnections = 5
	sup.currentConnections = 3

	sup.handleEvent(eventpipe.KindDone)

	total, current, free := sup.Counters()
	require.Equal(t, 5, total, "DONE must not change totalConnections")
	require.Equal(t, 2, current)
	require.Equal(t, 30, free, "DONE must not increment freeWorkers (preserved source behavior)")
}

func TestCurrentConnectionsNeverGoesNegative(t *testing.T) {
	sup := testSupervisor(t, VariantForked, baseConfig())

	sup.handleEvent(eventpipe.KindDone)

	_, current, _ := sup.Counters()
	require.Equal(t, 0, current)
}

func TestReplenishmentFiresBelowThresholdAndRestoresFreeWorkers(t *testing.T) {
	cfg := baseConfig()
	sup := testSupervisor(t, VariantForked, cfg)

	spawned := 0
	sup.spawnFn = func() error {
		spawned++
		rec := &WorkerRecord{state: WorkerStarting}
		sup.mu.Lock()
		sup.workers = append(sup.workers, rec)
		sup.mu.Unlock()
		return nil
	}

	sup.freeWorkers = cfg.MinFreeProcesses - cfg.ReplenishIncrement // 20: one CONNECTED away from the threshold
	sup.handleEvent(eventpipe.KindConnected)

	_, _, free := sup.Counters()
	// freeWorkers dropped to 19 on CONNECTED, crossing the threshold, then a
	// full top-up batch of MinFreeProcesses was added back.
	require.Equal(t, cfg.MinFreeProcesses-cfg.ReplenishIncrement-1+cfg.MinFreeProcesses, free)
	require.Equal(t, cfg.MinFreeProcesses, spawned)
}

func TestUnknownEventIsNoOp(t *testing.T) {
	sup := testSupervisor(t, VariantForked, baseConfig())
	sup.totalConnections = 3
	sup.currentConnections = 2
	sup.freeWorkers = 10

	sup.handleEvent(eventpipe.KindUnknown)

	total, current, free := sup.Counters()
	require.Equal(t, 3, total)
	require.Equal(t, 2, current)
	require.Equal(t, 10, free)
}

func TestShutdownIsIdempotentAndTransitionsState(t *testing.T) {
	sup := testSupervisor(t, VariantEpoll, baseConfig())

	sup.Shutdown()
	require.Equal(t, StateExited, sup.State())

	sup.Shutdown() // must not panic or double-close
	require.Equal(t, StateExited, sup.State())
}
