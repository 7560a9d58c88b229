package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
)

var (
	levelStyle = color.New(color.Bold)
	traceStyle = color.New(color.Bold, color.FgRed)
)

// levelNames are padded to one width so messages line up.
var levelNames = [...]string{
	log.DebugLevel: "DEBUG",
	log.InfoLevel:  " INFO",
	log.WarnLevel:  " WARN",
	log.ErrorLevel: "ERROR",
	log.FatalLevel: "FATAL",
}

// Handler prints log entries for a human watching a CI job.
type Handler struct {
	mu      sync.Mutex
	Writer  io.Writer
	Padding int
}

// New returns a handler writing to w. Escape codes are stripped unless
// useColors is set and w is a file.
func New(w io.Writer, useColors bool) *Handler {
	if f, ok := w.(*os.File); ok && useColors {
		return &Handler{Writer: colorable.NewColorable(f), Padding: 2}
	}
	return &Handler{Writer: colorable.NewNonColorable(w), Padding: 2}
}

// HandleLog implements log.Handler.
func (h *Handler) HandleLog(e *log.Entry) error {
	lc := cli.Colors[e.Level]
	level := levelNames[e.Level]
	names := e.Fields.Names()

	h.mu.Lock()
	defer h.mu.Unlock()

	lc.Fprintf(h.Writer, "%s: [%s] %-25s", levelStyle.Sprintf("%*s", h.Padding+1, level), time.Now().Format(time.StampMilli), e.Message)

	for _, name := range names {
		if name == "error" {
			continue
		}
		fmt.Fprintf(h.Writer, " %s=%v", lc.Sprint(name), e.Fields.Get(name))
	}
	if err, ok := e.Fields.Get("error").(error); ok {
		fmt.Fprintf(h.Writer, " %s=%v", lc.Sprint("error"), err)
	}

	fmt.Fprintln(h.Writer)

	if err, ok := e.Fields.Get("error").(error); ok && e.Level >= log.ErrorLevel {
		err = errors.WithStackDepthIf(err, 1)
		fmt.Fprintf(h.Writer, "\n%s\n%+v\n\n", traceStyle.Sprintf("Stacktrace:"), err)
	}

	return nil
}
