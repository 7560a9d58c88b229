package monitor

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"emperror.dev/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rusenback/perfverse/internal/model"
)

// fakeStreamer replays canned documents per container.
type fakeStreamer struct {
	mu      sync.Mutex
	calls   []string
	docs    map[string][]string
	openErr map[string]error
}

func (f *fakeStreamer) StreamStats(ctx context.Context, id string) (<-chan []byte, <-chan error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()

	out := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		if err := f.openErr[id]; err != nil {
			errc <- err
			return
		}
		for _, d := range f.docs[id] {
			select {
			case out <- []byte(d):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errc
}

func (f *fakeStreamer) started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.calls...)
	sort.Strings(out)
	return out
}

// recordingSink keeps rows in memory.
type recordingSink struct {
	mu   sync.Mutex
	rows []model.Row
	err  error
}

func (r *recordingSink) WriteRow(row model.Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, row)
	return nil
}

func doc(id, name string, cpu, precpu, system, presystem, usage, cache, limit uint64) string {
	return fmt.Sprintf(`{
		"read": "2024-05-02T10:15:30Z",
		"id": %q,
		"name": "/%s",
		"cpu_stats": {"cpu_usage": {"total_usage": %d}, "system_cpu_usage": %d, "online_cpus": 2},
		"precpu_stats": {"cpu_usage": {"total_usage": %d}, "system_cpu_usage": %d},
		"memory_stats": {"usage": %d, "limit": %d, "stats": {"inactive_file": %d}},
		"networks": {"eth0": {"rx_bytes": 10, "tx_bytes": 20}}
	}`, id, name, cpu, system, precpu, presystem, usage, limit, cache)
}

const partialDoc = `{"read": "2024-05-02T10:15:29Z", "id": "a", "name": "/web",
	"cpu_stats": {"cpu_usage": {"total_usage": 1}, "system_cpu_usage": 1, "online_cpus": 2},
	"precpu_stats": {"cpu_usage": {}},
	"memory_stats": {"usage": 1, "limit": 1, "stats": {"inactive_file": 0}},
	"networks": {"eth0": {"rx_bytes": 1, "tx_bytes": 1}}}`

func TestExporter_OneWorkerPerContainer(t *testing.T) {
	fs := &fakeStreamer{docs: map[string][]string{
		"a": {doc("a", "web", 5000, 4000, 100000, 90000, 1000, 200, 2000)},
		"b": {doc("b", "db", 5000, 4000, 100000, 90000, 1000, 200, 2000)},
	}}
	sink := &recordingSink{}

	sum := NewExporter(fs, sink, "").Run(context.Background(), []string{"a", "b"})

	assert.Equal(t, []string{"a", "b"}, fs.started())
	assert.Equal(t, 2, sum.Workers)
	assert.Equal(t, uint64(2), sum.Rows)
	assert.Len(t, sink.rows, 2)
}

func TestExporter_DerivedRow(t *testing.T) {
	fs := &fakeStreamer{docs: map[string][]string{
		"a": {doc("a", "web", 5000, 4000, 100000, 90000, 1000, 200, 2000)},
	}}
	sink := &recordingSink{}

	NewExporter(fs, sink, "eth0").Run(context.Background(), []string{"a"})

	require.Len(t, sink.rows, 1)
	r := sink.rows[0]
	assert.Equal(t, "web", r.ContainerName)
	assert.Equal(t, int64(800), r.UsedMemory)
	assert.Equal(t, 40.0, r.MemoryPercent)
	assert.Equal(t, int64(1000), r.CPUDelta)
	assert.Equal(t, int64(10000), r.SystemCPUDelta)
	assert.Equal(t, 20.0, r.CPUPercent)
}

func TestExporter_DropsIncompleteSamples(t *testing.T) {
	fs := &fakeStreamer{docs: map[string][]string{
		"a": {
			partialDoc,
			`not json at all`,
			doc("a", "web", 1, 1, 5, 5, 1, 0, 1), // no system cpu movement
			doc("a", "web", 5000, 4000, 100000, 90000, 1000, 200, 2000),
		},
	}}
	sink := &recordingSink{}

	sum := NewExporter(fs, sink, "").Run(context.Background(), []string{"a"})

	assert.Equal(t, uint64(1), sum.Rows)
	assert.Equal(t, uint64(3), sum.Dropped)
	assert.Len(t, sink.rows, 1)
}

func TestExporter_OnlyIncompleteSamples(t *testing.T) {
	fs := &fakeStreamer{docs: map[string][]string{"a": {partialDoc}}}
	sink := &recordingSink{}

	assert.NotPanics(t, func() {
		NewExporter(fs, sink, "").Run(context.Background(), []string{"a"})
	})
	assert.Empty(t, sink.rows)
}

func TestExporter_StreamOpenFailureStopsOnlyThatWorker(t *testing.T) {
	fs := &fakeStreamer{
		docs: map[string][]string{
			"b": {doc("b", "db", 5000, 4000, 100000, 90000, 1000, 200, 2000)},
		},
		openErr: map[string]error{"a": errors.New("no such container: a")},
	}
	sink := &recordingSink{}

	sum := NewExporter(fs, sink, "").Run(context.Background(), []string{"a", "b"})

	assert.Equal(t, uint64(1), sum.Rows)
	require.Len(t, sink.rows, 1)
	assert.Equal(t, "db", sink.rows[0].ContainerName)
}

func TestExporter_SinkFailureIsCounted(t *testing.T) {
	fs := &fakeStreamer{docs: map[string][]string{
		"a": {doc("a", "web", 5000, 4000, 100000, 90000, 1000, 200, 2000)},
	}}
	sink := &recordingSink{err: errors.New("disk full")}

	sum := NewExporter(fs, sink, "").Run(context.Background(), []string{"a"})

	assert.Equal(t, uint64(0), sum.Rows)
	assert.Equal(t, uint64(1), sum.Failed)
}

func TestExporter_NoContainers(t *testing.T) {
	fs := &fakeStreamer{}
	sum := NewExporter(fs, &recordingSink{}, "").Run(context.Background(), nil)
	assert.Equal(t, Summary{}, sum)
	assert.Empty(t, fs.started())
}

func TestExporter_WritesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	sink, err := NewCSVSink(path)
	require.NoError(t, err)

	fs := &fakeStreamer{docs: map[string][]string{
		"a": {partialDoc, doc("a", "web", 5000, 4000, 100000, 90000, 1000, 200, 2000)},
		"b": {doc("b", "db", 5000, 4000, 100000, 90000, 1000, 200, 2000)},
	}}
	NewExporter(fs, sink, "").Run(context.Background(), []string{"a", "b"})
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, model.Header, records[0])
	for _, rec := range records[1:] {
		assert.Len(t, rec, 16)
		assert.Equal(t, "40.0", rec[12])
		assert.Equal(t, "20.0", rec[15])
	}
}
