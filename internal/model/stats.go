// internal/model/stats.go
package model

import (
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/buger/jsonparser"
)

const (
	ErrMissingField   = errors.Sentinel("model: stats document is missing a field")
	ErrUndefinedRatio = errors.Sentinel("model: percentage is undefined for this sample")
)

// DefaultInterface is the network interface read from the "networks" map.
const DefaultInterface = "eth0"

// Sample is one reading from a container's stats stream, reduced to the
// counters the exporter needs.
type Sample struct {
	Read   string // raw "read" timestamp as sent by the daemon
	ReadAt time.Time

	ContainerID   string
	ContainerName string

	// CPU
	CPUUsage       uint64
	PreCPUUsage    uint64
	SystemUsage    uint64
	PreSystemUsage uint64
	OnlineCPUs     uint64

	// Memory
	MemoryUsage uint64
	MemoryCache uint64 // inactive_file, can be reclaimed
	MemoryLimit uint64

	// Network
	NetworkRx uint64
	NetworkTx uint64
}

// ParseSample extracts a Sample from a raw stats document. Every key is
// required; the first one missing is reported through ErrMissingField.
func ParseSample(raw []byte, iface string) (Sample, error) {
	if iface == "" {
		iface = DefaultInterface
	}

	var s Sample
	var err error

	if s.Read, err = str(raw, "read"); err != nil {
		return Sample{}, err
	}
	if s.ContainerID, err = str(raw, "id"); err != nil {
		return Sample{}, err
	}
	name, err := str(raw, "name")
	if err != nil {
		return Sample{}, err
	}
	s.ContainerName = strings.TrimSpace(strings.TrimLeft(name, "/"))

	counters := []struct {
		dst  *uint64
		path []string
	}{
		{&s.CPUUsage, []string{"cpu_stats", "cpu_usage", "total_usage"}},
		{&s.PreCPUUsage, []string{"precpu_stats", "cpu_usage", "total_usage"}},
		{&s.SystemUsage, []string{"cpu_stats", "system_cpu_usage"}},
		{&s.PreSystemUsage, []string{"precpu_stats", "system_cpu_usage"}},
		{&s.MemoryUsage, []string{"memory_stats", "usage"}},
		{&s.MemoryCache, []string{"memory_stats", "stats", "inactive_file"}},
		{&s.MemoryLimit, []string{"memory_stats", "limit"}},
		{&s.NetworkRx, []string{"networks", iface, "rx_bytes"}},
		{&s.NetworkTx, []string{"networks", iface, "tx_bytes"}},
		{&s.OnlineCPUs, []string{"cpu_stats", "online_cpus"}},
	}
	for _, c := range counters {
		if *c.dst, err = counter(raw, c.path...); err != nil {
			return Sample{}, err
		}
	}

	// The raw string is what ends up in the CSV; a timestamp that does not
	// parse only costs the typed copy.
	s.ReadAt, _ = time.Parse(time.RFC3339Nano, s.Read)

	return s, nil
}

func str(raw []byte, keys ...string) (string, error) {
	v, err := jsonparser.GetString(raw, keys...)
	if err != nil {
		return "", missing(keys)
	}
	return v, nil
}

func counter(raw []byte, keys ...string) (uint64, error) {
	v, typ, _, err := jsonparser.Get(raw, keys...)
	if err != nil {
		return 0, missing(keys)
	}
	if typ != jsonparser.Number {
		return 0, errors.WithDetails(missing(keys), "type", typ.String())
	}
	n, err := strconv.ParseUint(string(v), 10, 64)
	if err != nil {
		return 0, errors.WrapWithDetails(err, "model: counter is not an unsigned integer", "key", strings.Join(keys, "."))
	}
	return n, nil
}

func missing(keys []string) error {
	return errors.WithMessage(ErrMissingField, strings.Join(keys, "."))
}
