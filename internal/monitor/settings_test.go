package monitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rusenback/perfverse/internal/config"
	"github.com/rusenback/perfverse/internal/model"
)

func TestSettingsFromEnv(t *testing.T) {
	t.Setenv(EnvOutputDir, "/tmp/dockermon")
	t.Setenv(EnvContainers, "a,b")
	t.Setenv(EnvAgentVersion, "9.7.0")
	t.Setenv(EnvTestTag, "baseline")
	t.Setenv(EnvInterface, "")
	t.Setenv(EnvSQLite, "")

	s := SettingsFromEnv()
	assert.Equal(t, "/tmp/dockermon", s.OutputDir)
	assert.Equal(t, []string{"a", "b"}, s.Containers)
	assert.Equal(t, "9.7.0", s.AgentVersion)
	assert.Equal(t, "baseline", s.TestTag)
	assert.Equal(t, "eth0", s.Interface)
	assert.Empty(t, s.SQLitePath)
	assert.NoError(t, s.Validate())
}

func TestPrepare_MissingOutputDir(t *testing.T) {
	t.Setenv(EnvOutputDir, "")
	cwd := t.TempDir()
	chdir(t, cwd)

	_, err := Prepare(SettingsFromEnv(), "host", time.Now())
	require.Error(t, err)
	assert.True(t, config.IsError(err))

	entries, err := os.ReadDir(cwd)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPrepare(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results", "run")
	now := time.Date(2024, 5, 2, 9, 4, 5, 0, time.Local)

	p, err := Prepare(Settings{OutputDir: dir}, "ci-runner-3", now)
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Equal(t, "docker-monitor-ci-runner-3-2024-05-02_09-04-05.csv", p.CSVName)
	assert.Equal(t, filepath.Join(dir, p.CSVName), p.CSV)
	assert.Equal(t, filepath.Join(dir, "metadata.json"), p.Metadata)

	// Running again against the same directory is fine.
	_, err = Prepare(Settings{OutputDir: dir}, "ci-runner-3", now)
	assert.NoError(t, err)
}

type fakeResolver struct {
	containers map[string]model.Container
}

func (f fakeResolver) RunningContainers(context.Context) ([]model.Container, error) {
	var out []model.Container
	for _, c := range f.containers {
		out = append(out, c)
	}
	return out, nil
}

func (f fakeResolver) InspectContainer(_ context.Context, id string) (model.Container, error) {
	c, ok := f.containers[id]
	if !ok {
		return model.Container{}, errors.New("no such container")
	}
	return c, nil
}

func TestWriteMetadata(t *testing.T) {
	dir := t.TempDir()
	s := Settings{OutputDir: dir, AgentVersion: "9.7.0", TestTag: "baseline"}
	paths, err := Prepare(s, "ci", time.Now())
	require.NoError(t, err)

	md := NewMetadata(s, []string{"a", "b"}, paths, time.Now())
	md.Containers = ResolveContainers(context.Background(), fakeResolver{containers: map[string]model.Container{
		"a": {ID: "a", Name: "web", Image: "ruby:3.3"},
	}}, []string{"a", "b"})
	md.Host = HostInfo{Hostname: "ci"}

	require.NoError(t, WriteMetadata(paths.Metadata, md))

	b, err := os.ReadFile(paths.Metadata)
	require.NoError(t, err)
	assert.Contains(t, string(b), "\n    \"run_id\"")

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "9.7.0", got["agent_version"])
	assert.Equal(t, "9.7.0_baseline", got["x_axis"])
	assert.Equal(t, "baseline", got["TEST_TAG"])
	assert.Equal(t, []any{"a", "b"}, got["container_ids"])
	assert.Equal(t, paths.CSV, got["output_file"])
	assert.Equal(t, paths.CSVName, got["output_file_name"])
	assert.NotEmpty(t, got["run_id"])

	containers := got["containers"].([]any)
	require.Len(t, containers, 2)
	assert.Equal(t, "web", containers[0].(map[string]any)["name"])
	assert.Equal(t, "b", containers[1].(map[string]any)["id"])
}

func TestDescribeHost(t *testing.T) {
	hi := DescribeHost(context.Background())
	assert.NotEmpty(t, hi.Hostname)
}

// chdir is a stand-in for testing.T.Chdir (Go 1.24+): it switches the working
// directory for the duration of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
