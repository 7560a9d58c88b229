package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rusenback/perfverse/internal/config"
	"github.com/rusenback/perfverse/internal/docker"
	"github.com/rusenback/perfverse/internal/logging"
	"github.com/rusenback/perfverse/internal/monitor"
	"github.com/rusenback/perfverse/internal/storage"
	"github.com/rusenback/perfverse/internal/tui"
)

type options struct {
	outputDir    string
	containers   string
	agentVersion string
	testTag      string
	iface        string
	sqlite       string
	host         string
	dashboard    bool
	debug        bool
}

func newRootCmd() *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:   "dockermon",
		Short: "Export container resource usage to CSV while a load test runs",
		Long: `dockermon streams resource usage for every monitored container and
appends one derived metrics row per sample to a CSV file in the output
directory. A metadata.json describing the run is written at startup.

Settings are read from DOCKER_MONITOR_OUTPUT_DIR, MONITOR_CONTAINERS,
AGENT_VERSION and TEST_TAG; flags override them.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Configure(o.debug)
			return run(cmd.Context(), settingsFor(cmd, o), o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.outputDir, "output-dir", "", "directory for the CSV and metadata files (env "+monitor.EnvOutputDir+")")
	f.StringVar(&o.containers, "containers", "", "comma separated container IDs, all running containers when empty (env "+monitor.EnvContainers+")")
	f.StringVar(&o.agentVersion, "agent-version", "", "agent version recorded in the metadata (env "+monitor.EnvAgentVersion+")")
	f.StringVar(&o.testTag, "test-tag", "", "test tag recorded in the metadata (env "+monitor.EnvTestTag+")")
	f.StringVar(&o.iface, "interface", "", "network interface to export counters for (env "+monitor.EnvInterface+", default eth0)")
	f.StringVar(&o.sqlite, "sqlite", "", "also store rows in this SQLite database (env "+monitor.EnvSQLite+")")
	f.StringVar(&o.host, "host", "", "Docker daemon address, DOCKER_HOST is used when empty")
	f.BoolVar(&o.dashboard, "tui", false, "show a live dashboard instead of logging every sample")
	f.BoolVar(&o.debug, "debug", false, "log dropped samples and other debug output")

	return cmd
}

// settingsFor merges the environment with any flags set on the command line.
func settingsFor(cmd *cobra.Command, o options) monitor.Settings {
	s := monitor.SettingsFromEnv()
	changed := cmd.Flags().Changed

	s.OutputDir = config.Override(o.outputDir, changed("output-dir"), s.OutputDir)
	if changed("containers") {
		s.Containers = config.List(o.containers)
	}
	s.AgentVersion = config.Override(o.agentVersion, changed("agent-version"), s.AgentVersion)
	s.TestTag = config.Override(o.testTag, changed("test-tag"), s.TestTag)
	s.Interface = config.Override(o.iface, changed("interface") && o.iface != "", s.Interface)
	s.SQLitePath = config.Override(o.sqlite, changed("sqlite"), s.SQLitePath)
	return s
}

func run(ctx context.Context, s monitor.Settings, o options) error {
	// Nothing is created before the settings are known to be usable.
	if err := s.Validate(); err != nil {
		return err
	}
	exitOnSignal()

	cfg := docker.DefaultConfig()
	cfg.Host = o.host
	client, err := docker.NewClient(ctx, cfg)
	if err != nil {
		fmt.Println("Make sure Docker is running and this user may access its socket.")
		return err
	}
	defer client.Close()

	ids := s.Containers
	if len(ids) == 0 {
		running, err := client.RunningContainers(ctx)
		if err != nil {
			return err
		}
		for _, c := range running {
			ids = append(ids, c.ID)
		}
		log.WithField("count", len(ids)).Info("MONITOR_CONTAINERS is empty, monitoring all running containers")
	}
	if len(ids) == 0 {
		return config.NewError(monitor.EnvContainers, "is empty and no containers are running")
	}
	log.WithField("containers", ids).Info("monitoring containers")

	hostname, err := os.Hostname()
	if err != nil {
		return errors.Wrap(err, "dockermon: failed to read hostname")
	}
	startedAt := time.Now()
	paths, err := monitor.Prepare(s, hostname, startedAt)
	if err != nil {
		return err
	}
	log.WithField("dir", paths.Dir).Info("using output directory")
	log.WithField("file", paths.CSV).Info("writing stats to file")

	md := monitor.NewMetadata(s, ids, paths, startedAt)
	md.Containers = monitor.ResolveContainers(ctx, client, ids)
	md.Host = monitor.DescribeHost(ctx)
	if err := monitor.WriteMetadata(paths.Metadata, md); err != nil {
		return err
	}

	csvSink, err := monitor.NewCSVSink(paths.CSV)
	if err != nil {
		return err
	}
	defer csvSink.Close()
	sinks := monitor.MultiSink{csvSink}

	if s.SQLitePath != "" {
		store, err := storage.NewStorage(s.SQLitePath)
		if err != nil {
			return err
		}
		defer store.Close()
		sinks = append(sinks, store)
		log.WithField("path", s.SQLitePath).Info("storing rows in sqlite")
	}

	if o.dashboard {
		return runDashboard(ctx, client, sinks, s, ids, paths, o.debug)
	}

	sum := monitor.NewExporter(client, sinks, s.Interface).Run(ctx, ids)
	log.WithFields(log.Fields{
		"workers": sum.Workers,
		"rows":    sum.Rows,
		"dropped": sum.Dropped,
		"failed":  sum.Failed,
	}).Info("all container streams ended")
	return nil
}

// runDashboard shows the live view while the exporter runs. Log output goes
// to a file next to the CSV so it does not tear the screen.
func runDashboard(ctx context.Context, client *docker.Client, sinks monitor.MultiSink, s monitor.Settings, ids []string, paths monitor.Paths, debug bool) error {
	f, err := os.OpenFile(filepath.Join(paths.Dir, "dockermon.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "dockermon: failed to open log file")
	}
	defer f.Close()
	logging.ConfigureWriter(f, debug)
	defer logging.Configure(debug)

	p := tea.NewProgram(tui.NewModel(ids, paths.CSV), tea.WithAltScreen())
	sinks = append(sinks, tui.NewSink(p))

	release := func() { _ = p.ReleaseTerminal() }
	beforeExit.Store(&release)
	defer beforeExit.Store(nil)

	return alongside(ctx, func() error {
		if _, err := p.Run(); err != nil {
			return errors.Wrap(err, "dockermon: dashboard failed")
		}
		return nil
	}, func(ctx context.Context) {
		monitor.NewExporter(client, sinks, s.Interface).Run(ctx, ids)
		p.Quit()
	})
}

// alongside runs work in the background for as long as ui runs. Once ui
// returns, work is cancelled and waited for so nothing it writes to
// outlives the call.
func alongside(ctx context.Context, ui func() error, work func(context.Context)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		work(ctx)
	}()

	err := ui()
	cancel()
	<-done
	return err
}

// beforeExit, when set, runs before the process exits on a signal.
var beforeExit atomic.Pointer[func()]

// exitOnSignal ends the process as soon as SIGTERM or SIGINT arrives.
// Workers are not drained: every CSV row is already on disk, rows still
// queued for sqlite are lost.
func exitOnSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, os.Interrupt)
	go func() {
		<-c
		if f := beforeExit.Load(); f != nil {
			(*f)()
		}
		fmt.Println("SIGTERM received, exiting gracefully...")
		os.Exit(0)
	}()
}
