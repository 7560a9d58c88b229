package monitor

import (
	"encoding/csv"
	"os"
	"sync"

	"emperror.dev/errors"

	"github.com/rusenback/perfverse/internal/model"
)

// Sink receives derived rows. Implementations must be safe for use by
// several workers at once.
type Sink interface {
	WriteRow(row model.Row) error
}

// MultiSink writes every row to each of its sinks.
type MultiSink []Sink

func (m MultiSink) WriteRow(row model.Row) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteRow(row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Combine(errs...)
}

// CSVSink appends rows to the exporter CSV file. Every row is flushed to the
// file as soon as it is written so a crashed run keeps what it collected.
type CSVSink struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

// NewCSVSink creates (or truncates) the file at path and writes the header.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.WrapWithDetails(err, "monitor: failed to create csv file", "path", path)
	}

	s := &CSVSink{f: f, w: csv.NewWriter(f)}
	if err := s.write(model.Header); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// WriteRow appends one line. Concurrent callers never interleave within a
// line.
func (s *CSVSink) WriteRow(row model.Row) error {
	return s.write(row.Record())
}

func (s *CSVSink) write(record []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.w.Write(record); err != nil {
		return errors.Wrap(err, "monitor: failed to write csv row")
	}
	s.w.Flush()
	return errors.Wrap(s.w.Error(), "monitor: failed to flush csv row")
}

// Close closes the underlying file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.w.Flush()
	return s.f.Close()
}
