package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
backend: sqlite:///tmp/graph.db
blob_dir: /tmp/blobs
blob_compression: true
listen: 127.0.0.1:9000
log_level: debug
log_format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/graph.db", cfg.Backend)
	assert.Equal(t, "/tmp/blobs", cfg.BlobDir)
	assert.True(t, cfg.BlobCompression)
	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "listen: :9999\n"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Listen)
	assert.Equal(t, Default().Backend, cfg.Backend)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NODEGRAPH_BACKEND", "neo4j://localhost:7687")
	t.Setenv("NODEGRAPH_BLOB_COMPRESSION", "true")
	t.Setenv("NODEGRAPH_LOG_LEVEL", "warn")

	cfg, err := Load(writeFile(t, "backend: sqlite://file.db\n"))
	require.NoError(t, err)
	assert.Equal(t, "neo4j://localhost:7687", cfg.Backend)
	assert.True(t, cfg.BlobCompression)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeFile(t, "log_level: loud\n"))
	assert.ErrorContains(t, err, "log_level")

	_, err = Load(writeFile(t, "log_format: xml\n"))
	assert.ErrorContains(t, err, "log_format")

	_, err = Load(writeFile(t, "backend: [unterminated\n"))
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := Default()
	want.Listen = ":7000"
	require.NoError(t, Save(want, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoad_Tracing(t *testing.T) {
	cfg, err := Load(writeFile(t, "tracing:\n  exporter: stdout\n"))
	require.NoError(t, err)
	assert.Equal(t, "stdout", cfg.Tracing.Exporter)
	assert.Equal(t, "nodegraph", cfg.Tracing.ServiceName)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRate)

	t.Setenv("NODEGRAPH_TRACING_SAMPLE_RATE", "0.25")
	t.Setenv("NODEGRAPH_TRACING_SERVICE_NAME", "graph-api")
	cfg, err = Load(writeFile(t, "log_level: info\n"))
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRate)
	assert.Equal(t, "graph-api", cfg.Tracing.ServiceName)
}

func TestLoad_InvalidTracing(t *testing.T) {
	_, err := Load(writeFile(t, "tracing:\n  exporter: jaeger\n"))
	assert.ErrorContains(t, err, "tracing exporter")

	_, err = Load(writeFile(t, "tracing:\n  sample_rate: 2\n"))
	assert.ErrorContains(t, err, "sample_rate")
}
