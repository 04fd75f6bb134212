// Package config holds the compile-time constants for the server
// (listening port, backlog, pool sizes, buffer sizes) and lets any of
// them be overridden at startup through ECHOFLEET_-prefixed environment
// variables layered over the hardcoded defaults. Only Port, Backlog,
// MinFreeProcesses and ReplenishIncrement take effect: the IPC record
// size and the send/recv buffer size in use are the fixed constants
// eventpipe.RecordSize and wire.BufferSize, so overriding IPCRecordSize or
// BufferSize changes the Config value and nothing else.
package config

import (
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Defaults for every tunable, overridable via environment variables.
const (
	DefaultPort               = 9000
	DefaultBacklog            = 1024
	DefaultMinFreeProcesses   = 30
	DefaultReplenishIncrement = 10
	DefaultIPCRecordSize      = 128
	DefaultBufferSize         = 1024
)

// Config is the resolved set of tunables a supervisor process runs with.
type Config struct {
	Port               int
	Backlog            int
	MinFreeProcesses   int
	ReplenishIncrement int
	IPCRecordSize      int
	BufferSize         int
}

// Load resolves Config from defaults overridden by ECHOFLEET_* environment
// variables. It never fails — an unparsable override is ignored and the
// default is kept, since this is a convenience layer, not user input
// validation (that lives in cmd/echoclient for the client's CLI flags).
func Load() Config {
	v := viper.New()
	v.SetEnvPrefix("ECHOFLEET")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("port", DefaultPort)
	v.SetDefault("backlog", DefaultBacklog)
	v.SetDefault("min_free_processes", DefaultMinFreeProcesses)
	v.SetDefault("replenish_increment", DefaultReplenishIncrement)
	v.SetDefault("ipc_record_size", DefaultIPCRecordSize)
	v.SetDefault("buffer_size", DefaultBufferSize)

	getInt := func(key string, def int) int {
		if n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key))); err == nil {
			return n
		}
		return def
	}

	return Config{
		Port:               getInt("port", DefaultPort),
		Backlog:            getInt("backlog", DefaultBacklog),
		MinFreeProcesses:   getInt("min_free_processes", DefaultMinFreeProcesses),
		ReplenishIncrement: getInt("replenish_increment", DefaultReplenishIncrement),
		IPCRecordSize:      getInt("ipc_record_size", DefaultIPCRecordSize),
		BufferSize:         getInt("buffer_size", DefaultBufferSize),
	}
}
