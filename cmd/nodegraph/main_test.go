package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		dumpType, resetYes, backendOverride, configPath = "", false, "", ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_MigrateStatsDumpReset(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	backend := "sqlite://" + filepath.Join(t.TempDir(), "graph.db")

	out, err := execute(t, "--backend", backend, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 1")

	out, err = execute(t, "--backend", backend, "stats")
	require.NoError(t, err)
	var stats struct {
		SchemaVersion int `json:"schema_version"`
		Statistics    struct {
			Nodes int64 `json:"nodes"`
		} `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.SchemaVersion)
	assert.Zero(t, stats.Statistics.Nodes)

	out, err = execute(t, "--backend", backend, "dump", "--type", "article")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))

	_, err = execute(t, "--backend", backend, "reset")
	assert.ErrorContains(t, err, "--yes")

	out, err = execute(t, "--backend", backend, "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "graph reset")
}

func TestCLI_BadBackend(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, err := execute(t, "--backend", "mysql://nowhere", "stats")
	assert.ErrorContains(t, err, "unsupported scheme")
}

func TestCLI_Tracing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	backend := "sqlite://" + filepath.Join(t.TempDir(), "graph.db")

	t.Setenv("NODEGRAPH_TRACING_EXPORTER", "zipkin")
	_, err := execute(t, "--backend", backend, "stats")
	assert.ErrorContains(t, err, "tracing exporter")

	t.Setenv("NODEGRAPH_TRACING_EXPORTER", "stdout")
	t.Setenv("NODEGRAPH_TRACING_SAMPLE_RATE", "0")
	_, err = execute(t, "--backend", backend, "stats")
	require.NoError(t, err)
}
