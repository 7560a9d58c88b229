// Package otp produces time-based one-time passwords for publishing
// credentials.
package otp

import (
	"time"

	"emperror.dev/errors"
	"github.com/creasty/defaults"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/rusenback/perfverse/internal/config"
)

// Options control code generation. The zero value is filled with the values
// authenticator apps use.
type Options struct {
	Period uint `default:"30"`
	Digits int  `default:"6"`
}

// FromEnv returns the shared secret stored in the named environment
// variable.
func FromEnv(name string) (string, error) {
	if name == "" {
		return "", config.NewError("secret variable", "name is empty")
	}
	return config.Require(name)
}

// Generate returns the code for the time step containing at.
func Generate(secret string, at time.Time, opts Options) (string, error) {
	if err := defaults.Set(&opts); err != nil {
		return "", errors.Wrap(err, "otp: failed to apply defaults")
	}
	if opts.Digits != 6 && opts.Digits != 8 {
		return "", errors.NewWithDetails("otp: unsupported number of digits", "digits", opts.Digits)
	}

	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    opts.Period,
		Digits:    otp.Digits(opts.Digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", errors.Wrap(err, "otp: failed to generate code")
	}
	return code, nil
}
