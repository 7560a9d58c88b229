package model

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Header is the first line of every exporter CSV file.
var Header = []string{
	"Time",
	"Container Name",
	"cpu_usage",
	"cpu_system",
	"memory_usage",
	"stats_cache",
	"memory_limit",
	"network_input",
	"network_output",
	"number_cpus",
	"used_memory",
	"available_memory",
	"memory_usage_perc",
	"cpu_delta",
	"system_cpu_delta",
	"cpu_usage_perc",
}

// Row is the derived metrics line written for one Sample.
type Row struct {
	Time          string
	ReadAt        time.Time
	ContainerID   string
	ContainerName string

	CPUUsage      uint64
	CPUSystem     uint64
	MemoryUsage   uint64
	StatsCache    uint64
	MemoryLimit   uint64
	NetworkInput  uint64
	NetworkOutput uint64
	NumberCPUs    uint64

	UsedMemory      int64
	AvailableMemory uint64
	MemoryPercent   float64
	CPUDelta        int64
	SystemCPUDelta  int64
	CPUPercent      float64
}

// Derive computes the metrics row for a sample. Percentages with a zero
// denominator have no meaning, so those samples return ErrUndefinedRatio.
func Derive(s Sample) (Row, error) {
	if s.MemoryLimit == 0 || s.SystemUsage == s.PreSystemUsage {
		return Row{}, ErrUndefinedRatio
	}

	used := int64(s.MemoryUsage) - int64(s.MemoryCache)
	cpuDelta := int64(s.CPUUsage) - int64(s.PreCPUUsage)
	systemDelta := int64(s.SystemUsage) - int64(s.PreSystemUsage)

	return Row{
		Time:          s.Read,
		ReadAt:        s.ReadAt,
		ContainerID:   s.ContainerID,
		ContainerName: s.ContainerName,

		CPUUsage:      s.CPUUsage,
		CPUSystem:     s.SystemUsage,
		MemoryUsage:   s.MemoryUsage,
		StatsCache:    s.MemoryCache,
		MemoryLimit:   s.MemoryLimit,
		NetworkInput:  s.NetworkRx,
		NetworkOutput: s.NetworkTx,
		NumberCPUs:    s.OnlineCPUs,

		UsedMemory:      used,
		AvailableMemory: s.MemoryLimit,
		MemoryPercent:   float64(used) / float64(s.MemoryLimit) * 100.0,
		CPUDelta:        cpuDelta,
		SystemCPUDelta:  systemDelta,
		CPUPercent:      float64(cpuDelta) / float64(systemDelta) * float64(s.OnlineCPUs) * 100.0,
	}, nil
}

// Record returns the row's CSV fields in Header order.
func (r Row) Record() []string {
	u := func(v uint64) string { return strconv.FormatUint(v, 10) }
	i := func(v int64) string { return strconv.FormatInt(v, 10) }

	return []string{
		r.Time,
		r.ContainerName,
		u(r.CPUUsage),
		u(r.CPUSystem),
		u(r.MemoryUsage),
		u(r.StatsCache),
		u(r.MemoryLimit),
		u(r.NetworkInput),
		u(r.NetworkOutput),
		u(r.NumberCPUs),
		i(r.UsedMemory),
		u(r.AvailableMemory),
		FormatPercent(r.MemoryPercent),
		i(r.CPUDelta),
		i(r.SystemCPUDelta),
		FormatPercent(r.CPUPercent),
	}
}

// FormatPercent prints the shortest representation of v that round-trips,
// keeping a trailing ".0" on whole numbers so the column reads as a float.
func FormatPercent(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsInf(v, 0) || math.IsNaN(v) || strings.ContainsRune(s, '.') {
		return s
	}
	return s + ".0"
}
