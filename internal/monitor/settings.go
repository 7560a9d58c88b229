// Package monitor exports container resource usage to CSV during load tests.
//
// One worker per container reads the daemon's stats stream, turns every
// document into a derived metrics row and hands it to the configured sinks.
// A metadata.json describing the run is written once before the workers
// start.
package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"emperror.dev/errors"
	"github.com/creasty/defaults"

	"github.com/rusenback/perfverse/internal/config"
)

// Environment variables read by the exporter.
const (
	EnvOutputDir    = "DOCKER_MONITOR_OUTPUT_DIR"
	EnvContainers   = "MONITOR_CONTAINERS"
	EnvAgentVersion = "AGENT_VERSION"
	EnvTestTag      = "TEST_TAG"
	EnvInterface    = "DOCKER_MONITOR_INTERFACE"
	EnvSQLite       = "DOCKER_MONITOR_SQLITE"
)

// MetadataFile is the name of the run description written next to the CSV.
const MetadataFile = "metadata.json"

// Settings is the exporter configuration.
type Settings struct {
	OutputDir    string
	Containers   []string
	AgentVersion string
	TestTag      string
	Interface    string `default:"eth0"`
	SQLitePath   string
}

// SettingsFromEnv reads the exporter settings from the environment. It does
// not validate them.
func SettingsFromEnv() Settings {
	s := Settings{
		OutputDir:    config.Lookup(EnvOutputDir, ""),
		Containers:   config.List(config.Lookup(EnvContainers, "")),
		AgentVersion: config.Lookup(EnvAgentVersion, ""),
		TestTag:      config.Lookup(EnvTestTag, ""),
		Interface:    config.Lookup(EnvInterface, ""),
		SQLitePath:   config.Lookup(EnvSQLite, ""),
	}
	// Only fails for unsupported tag types.
	_ = defaults.Set(&s)
	return s
}

// Validate reports a configuration error when no output directory is set.
func (s Settings) Validate() error {
	if s.OutputDir == "" {
		return config.NewError(EnvOutputDir, "is not set")
	}
	return nil
}

// Paths are the files produced by one exporter run.
type Paths struct {
	Dir      string
	CSV      string
	CSVName  string
	Metadata string
}

// FileName returns the CSV file name for a run started on hostname at t.
func FileName(hostname string, t time.Time) string {
	return fmt.Sprintf("docker-monitor-%s-%s.csv", hostname, t.Format("2006-01-02_15-04-05"))
}

// Prepare creates the output directory if needed and returns the paths of
// the files for this run.
func Prepare(s Settings, hostname string, now time.Time) (Paths, error) {
	if err := s.Validate(); err != nil {
		return Paths{}, err
	}
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return Paths{}, errors.WrapWithDetails(err, "monitor: failed to create output directory", "dir", s.OutputDir)
	}

	name := FileName(hostname, now)
	return Paths{
		Dir:      s.OutputDir,
		CSV:      filepath.Join(s.OutputDir, name),
		CSVName:  name,
		Metadata: filepath.Join(s.OutputDir, MetadataFile),
	}, nil
}
