package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/systemshift/nodegraph/internal/config"
)

func keepGlobalProvider(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestInit_None(t *testing.T) {
	keepGlobalProvider(t)
	before := otel.GetTracerProvider()

	tp, err := Init(context.Background(), config.Tracing{Exporter: "none"}, "test", &bytes.Buffer{})
	require.NoError(t, err)
	defer Shutdown(context.Background(), tp)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	assert.False(t, span.SpanContext().IsSampled())
	span.End()
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestInit_StdoutExportsOnShutdown(t *testing.T) {
	keepGlobalProvider(t)
	ctx := context.Background()
	var buf bytes.Buffer

	cfg := config.Tracing{Exporter: "stdout", ServiceName: "graph-test", SampleRate: 1}
	tp, err := Init(ctx, cfg, "1.2.3", &buf)
	require.NoError(t, err)
	assert.Same(t, tp, otel.GetTracerProvider())

	_, span := otel.Tracer("test").Start(ctx, "graph.scope")
	assert.True(t, span.SpanContext().IsSampled())
	span.End()

	require.NoError(t, Shutdown(ctx, tp))
	out := buf.String()
	assert.Contains(t, out, `"Name":"graph.scope"`)
	assert.Contains(t, out, "graph-test")
	assert.Contains(t, out, "1.2.3")
}

func TestInit_ZeroSampleRate(t *testing.T) {
	keepGlobalProvider(t)
	ctx := context.Background()
	var buf bytes.Buffer

	tp, err := Init(ctx, config.Tracing{Exporter: "stdout", SampleRate: 0}, "test", &buf)
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(ctx, "graph.scope")
	assert.False(t, span.SpanContext().IsSampled())
	span.End()

	require.NoError(t, Shutdown(ctx, tp))
	assert.Empty(t, buf.String())
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), config.Tracing{Exporter: "zipkin"}, "test", &bytes.Buffer{})
	assert.ErrorContains(t, err, "unsupported tracing exporter")
}

func TestShutdown_Nil(t *testing.T) {
	assert.NoError(t, Shutdown(context.Background(), nil))
}
