// Package logging configures the apex/log facade shared by every command.
package logging

import (
	"io"
	"os"

	"github.com/apex/log"
	"github.com/mattn/go-isatty"
)

// Configure points the global logger at stderr and sets the level.
func Configure(debug bool) {
	ConfigureWriter(os.Stderr, debug)
}

// ConfigureWriter is Configure for an arbitrary writer; colors are only used
// when w is a terminal.
func ConfigureWriter(w io.Writer, debug bool) {
	useColors := false
	if f, ok := w.(*os.File); ok {
		useColors = isatty.IsTerminal(f.Fd())
	}
	log.SetHandler(New(w, useColors))
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}
