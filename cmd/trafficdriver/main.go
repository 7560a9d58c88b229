package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/rusenback/perfverse/internal/config"
	"github.com/rusenback/perfverse/internal/driver"
	"github.com/rusenback/perfverse/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.WithField("error", err).Error("traffic driver stopped")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		path    string
		profile string
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "trafficdriver",
		Short: "Replay a request profile against a service under test",
		Long: `trafficdriver loads a named profile from a YAML file and runs its
requests in a loop for every simulated user. The run stops with a
non-zero exit status on the first response that is not 200 OK.

The file is read from DRIVER_CONFIG_PATH and the profile name from
DRIVER_CONFIG; flags override them.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Configure(debug)

			changed := cmd.Flags().Changed
			path = config.Override(path, changed("config"), config.Lookup(driver.EnvConfigPath, ""))
			profile = config.Override(profile, changed("profile"), config.Lookup(driver.EnvConfig, driver.DefaultProfile))

			p, err := driver.LoadProfile(path, profile)
			if err != nil {
				return err
			}
			d, err := driver.New(p)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, os.Interrupt)
			defer stop()
			return run(ctx, d)
		},
	}

	cmd.Flags().StringVar(&path, "config", "", "path to the profile file (env "+driver.EnvConfigPath+")")
	cmd.Flags().StringVar(&profile, "profile", "", "profile to run (env "+driver.EnvConfig+", default \""+driver.DefaultProfile+"\")")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	return cmd
}

func run(ctx context.Context, d *driver.Driver) error {
	stats, err := d.Run(ctx)
	l := log.WithFields(log.Fields{
		"iterations": stats.Iterations,
		"requests":   stats.Requests,
		"elapsed":    stats.Elapsed.Round(time.Millisecond),
	})
	if err != nil {
		l.Warn("run aborted")
		return err
	}
	l.Info("traffic driver finished")
	return nil
}
