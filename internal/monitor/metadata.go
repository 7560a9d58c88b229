package monitor

import (
	"context"
	"os"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/rusenback/perfverse/internal/docker"
	"github.com/rusenback/perfverse/internal/model"
)

// Metadata describes one exporter run. It is written once and never updated.
type Metadata struct {
	RunID          string            `json:"run_id"`
	AgentVersion   string            `json:"agent_version"`
	XAxis          string            `json:"x_axis"`
	ContainerIDs   []string          `json:"container_ids"`
	Containers     []model.Container `json:"containers,omitempty"`
	OutputFile     string            `json:"output_file"`
	OutputFileName string            `json:"output_file_name"`
	TestTag        string            `json:"TEST_TAG"`
	StartedAt      time.Time         `json:"started_at"`
	Host           HostInfo          `json:"host"`
}

// HostInfo is the machine the exporter ran on.
type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os,omitempty"`
	Platform        string `json:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
	KernelVersion   string `json:"kernel_version,omitempty"`
	TotalMemory     uint64 `json:"total_memory,omitempty"`
}

// NewMetadata builds the run description. x_axis is the label the reporting
// side plots runs by.
func NewMetadata(s Settings, ids []string, paths Paths, startedAt time.Time) Metadata {
	if ids == nil {
		ids = []string{}
	}
	return Metadata{
		RunID:          uuid.NewString(),
		AgentVersion:   s.AgentVersion,
		XAxis:          s.AgentVersion + "_" + s.TestTag,
		ContainerIDs:   ids,
		OutputFile:     paths.CSV,
		OutputFileName: paths.CSVName,
		TestTag:        s.TestTag,
		StartedAt:      startedAt,
	}
}

// DescribeHost collects host facts. Anything gopsutil cannot read is left
// empty; the hostname always falls back to os.Hostname.
func DescribeHost(ctx context.Context) HostInfo {
	var hi HostInfo
	if info, err := host.InfoWithContext(ctx); err != nil {
		log.WithField("error", err).Debug("could not read host information")
	} else {
		hi.Hostname = info.Hostname
		hi.OS = info.OS
		hi.Platform = info.Platform
		hi.PlatformVersion = info.PlatformVersion
		hi.KernelVersion = info.KernelVersion
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		log.WithField("error", err).Debug("could not read host memory")
	} else {
		hi.TotalMemory = vm.Total
	}
	if hi.Hostname == "" {
		hi.Hostname, _ = os.Hostname()
	}
	return hi
}

// ResolveContainers looks up the details of every monitored container. A
// container that cannot be inspected is recorded with its ID only.
func ResolveContainers(ctx context.Context, r docker.ContainerResolver, ids []string) []model.Container {
	out := make([]model.Container, 0, len(ids))
	for _, id := range ids {
		c, err := r.InspectContainer(ctx, id)
		if err != nil {
			log.WithField("container", id).WithField("error", err).Warn("failed to inspect container for metadata")
			c = model.Container{ID: id}
		}
		out = append(out, c)
	}
	return out
}

// WriteMetadata writes md to path, replacing any previous file.
func WriteMetadata(path string, md Metadata) error {
	b, err := json.MarshalIndent(md, "", "    ")
	if err != nil {
		return errors.Wrap(err, "monitor: failed to encode metadata")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.WrapWithDetails(err, "monitor: failed to write metadata", "path", path)
	}
	return nil
}
