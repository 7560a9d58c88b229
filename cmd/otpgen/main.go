package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/rusenback/perfverse/internal/logging"
	"github.com/rusenback/perfverse/internal/otp"
)

func main() {
	if err := newRootCmd(os.Stdout, time.Now).Execute(); err != nil {
		log.WithField("error", err).Error("could not generate one-time password")
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer, now func() time.Time) *cobra.Command {
	var opts otp.Options
	var debug bool

	cmd := &cobra.Command{
		Use:   "otpgen ENV_VAR",
		Short: "Print the current one-time password for the secret in ENV_VAR",
		Long: `otpgen reads a base32 TOTP secret from the named environment variable
and prints the code for the current time step to standard output.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Configure(debug)

			secret, err := otp.FromEnv(args[0])
			if err != nil {
				return err
			}
			code, err := otp.Generate(secret, now(), opts)
			if err != nil {
				return err
			}
			log.WithField("variable", args[0]).Debug("generated one-time password")
			_, err = fmt.Fprintln(out, code)
			return err
		},
	}

	cmd.Flags().UintVar(&opts.Period, "period", 30, "time step in seconds")
	cmd.Flags().IntVar(&opts.Digits, "digits", 6, "number of digits in the code (6 or 8)")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	return cmd
}
