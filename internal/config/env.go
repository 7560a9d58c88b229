// Package config reads the environment variables the CI jobs hand to each
// command and reports missing values as configuration errors.
package config

import (
	"fmt"
	"os"
	"strings"

	"emperror.dev/errors"
)

// Error is returned when a required setting is missing or unusable.
type Error struct {
	Name   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s %s", e.Name, e.Reason)
}

// NewError returns a configuration error for the named setting.
func NewError(name, reason string) error {
	return errors.WithStack(&Error{Name: name, Reason: reason})
}

// IsError reports whether err is (or wraps) a configuration error.
func IsError(err error) bool {
	var cerr *Error
	return errors.As(err, &cerr)
}

// Lookup returns the trimmed value of the environment variable, or fallback
// when it is unset or blank.
func Lookup(name, fallback string) string {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

// Require returns the value of the environment variable or a configuration
// error if it is unset or empty.
func Require(name string) (string, error) {
	v := Lookup(name, "")
	if v == "" {
		return "", NewError(name, "is not set")
	}
	return v, nil
}

// List splits a comma separated value, dropping blank entries.
func List(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Override returns flag when it was set on the command line, otherwise env.
func Override(flag string, changed bool, env string) string {
	if changed {
		return strings.TrimSpace(flag)
	}
	return env
}
