package monitor

import (
	"context"
	"sync/atomic"

	"github.com/apex/log"
	"github.com/gammazero/workerpool"

	"github.com/rusenback/perfverse/internal/docker"
	"github.com/rusenback/perfverse/internal/model"
)

// Summary counts what an exporter run did.
type Summary struct {
	Workers int
	Rows    uint64
	Dropped uint64
	Failed  uint64 // rows a sink refused
}

// Exporter runs one stats worker per container.
type Exporter struct {
	streamer docker.StatsStreamer
	sink     Sink
	iface    string

	rows    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewExporter returns an exporter reading from streamer and writing to sink.
// iface names the network interface whose counters are exported.
func NewExporter(streamer docker.StatsStreamer, sink Sink, iface string) *Exporter {
	if iface == "" {
		iface = model.DefaultInterface
	}
	return &Exporter{streamer: streamer, sink: sink, iface: iface}
}

// Run starts a worker for every container ID and blocks until all of their
// streams have ended or ctx is cancelled. Workers never return errors: a
// stream that cannot be opened is logged and that worker stops.
func (e *Exporter) Run(ctx context.Context, ids []string) Summary {
	if len(ids) == 0 {
		return Summary{}
	}

	pool := workerpool.New(len(ids))
	for _, id := range ids {
		id := id
		pool.Submit(func() {
			e.work(ctx, id)
		})
	}
	pool.StopWait()

	return Summary{
		Workers: len(ids),
		Rows:    e.rows.Load(),
		Dropped: e.dropped.Load(),
		Failed:  e.failed.Load(),
	}
}

func (e *Exporter) work(ctx context.Context, id string) {
	l := log.WithField("container", id)
	l.Info("starting stats worker for container")
	defer l.Info("stats stream for container ended")

	docs, errc := e.streamer.StreamStats(ctx, id)
	for raw := range docs {
		e.handle(l, raw)
	}
	if err := <-errc; err != nil {
		l.WithField("error", err).Error("stats stream for container failed")
	}
}

// handle turns one stats document into a row. Documents that are missing a
// field, or whose percentages are undefined, are dropped without surfacing
// an error.
func (e *Exporter) handle(l *log.Entry, raw []byte) {
	sample, err := model.ParseSample(raw, e.iface)
	if err != nil {
		e.dropped.Add(1)
		l.WithField("reason", err.Error()).Debug("dropping incomplete stats sample")
		return
	}

	l.WithFields(log.Fields{
		"time": sample.Read,
		"name": sample.ContainerName,
	}).Info("sample received")

	row, err := model.Derive(sample)
	if err != nil {
		e.dropped.Add(1)
		l.WithField("reason", err.Error()).Debug("dropping stats sample")
		return
	}

	if err := e.sink.WriteRow(row); err != nil {
		e.failed.Add(1)
		l.WithField("error", err).Warn("failed to write stats row")
		return
	}
	e.rows.Add(1)
}
