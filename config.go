package xdispatch

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
)

const (
	// DefaultApplicationName prefixes worker names when no application name is configured.
	DefaultApplicationName = "xdispatch"
	// MinWorkers and MaxWorkers bound an explicit worker count; anything outside falls back
	// to HostParallelism.
	MinWorkers = 1
	MaxWorkers = 80
)

// Config describes a dispatcher.
type Config struct {
	// ApplicationName names the worker goroutines ("{application}-worker-{index}") in logs and
	// profiler labels.
	ApplicationName string
	// WorkerCount is the fixed pool size. Values outside [MinWorkers, MaxWorkers], including
	// zero, select HostParallelism.
	WorkerCount int
}

// Defaults returns a Config sized for the host.
func Defaults() Config {
	return Config{
		ApplicationName: DefaultApplicationName,
		WorkerCount:     HostParallelism(),
	}
}

// Normalize replaces an empty application name and an out-of-range worker count with defaults.
// Invalid values are recovered silently; they are never reported as errors.
func (c Config) Normalize() Config {
	if c.ApplicationName == "" {
		c.ApplicationName = DefaultApplicationName
	}
	if c.WorkerCount < MinWorkers || c.WorkerCount > MaxWorkers {
		c.WorkerCount = HostParallelism()
	}
	return c
}

// ConfigFromMap converts a generic map to Config. Recognized keys: "application_name" (string)
// and "worker_count" (int, int64 or float64). Missing or malformed keys keep their zero value
// and are defaulted by Normalize.
func ConfigFromMap(m map[string]any) Config {
	var c Config
	if v, ok := m["application_name"].(string); ok {
		c.ApplicationName = v
	}
	switch v := m["worker_count"].(type) {
	case int:
		c.WorkerCount = v
	case int32:
		c.WorkerCount = int(v)
	case int64:
		c.WorkerCount = int(v)
	case float64:
		c.WorkerCount = int(v)
	}
	return c.Normalize()
}

// HostParallelism returns the number of logical CPUs, clamped to [MinWorkers, MaxWorkers].
func HostParallelism() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		n = runtime.NumCPU()
	}
	if n < MinWorkers {
		n = MinWorkers
	}
	if n > MaxWorkers {
		n = MaxWorkers
	}
	return n
}
