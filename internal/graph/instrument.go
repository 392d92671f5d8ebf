package graph

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/systemshift/nodegraph/internal/graph"

// Instrument wraps a backend so that every connection is traced from
// Connect to Disconnect and logged. Accessor factories pass through.
func Instrument(b Backend, tp trace.TracerProvider, logger *slog.Logger) Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &instrumented{
		Backend: b,
		tracer:  tp.Tracer(instrumentationName),
		logger:  logger,
	}
}

type instrumented struct {
	Backend
	tracer trace.Tracer
	logger *slog.Logger
}

type tracedConn struct {
	Conn
	span    trace.Span
	started time.Time
}

func unwrapConn(c Conn) Conn {
	if tc, ok := c.(*tracedConn); ok {
		return tc.Conn
	}
	return c
}

func (b *instrumented) Connect(ctx context.Context, readOnly bool) (Conn, error) {
	_, span := b.tracer.Start(ctx, "graph.scope",
		trace.WithAttributes(attribute.Bool("graph.read_only", readOnly)))
	conn, err := b.Backend.Connect(ctx, readOnly)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect failed")
		span.End()
		b.logger.ErrorContext(ctx, "backend connect failed", "read_only", readOnly, "error", err)
		return nil, err
	}
	return &tracedConn{Conn: conn, span: span, started: time.Now()}, nil
}

func (b *instrumented) Disconnect(ctx context.Context, conn Conn, errored bool) error {
	tc, ok := conn.(*tracedConn)
	if !ok {
		return b.Backend.Disconnect(ctx, conn, errored)
	}
	err := b.Backend.Disconnect(ctx, tc.Conn, errored)

	outcome := "commit"
	if errored {
		outcome = "rollback"
	}
	tc.span.SetAttributes(attribute.String("graph.outcome", outcome))
	if err != nil {
		tc.span.RecordError(err)
		tc.span.SetStatus(codes.Error, "disconnect failed")
		b.logger.ErrorContext(ctx, "backend disconnect failed", "outcome", outcome, "error", err)
	} else if errored {
		tc.span.SetStatus(codes.Error, "rolled back")
	}
	tc.span.End()
	b.logger.DebugContext(ctx, "backend scope closed",
		"outcome", outcome,
		"read_only", tc.ReadOnly(),
		"duration", time.Since(tc.started))
	return err
}

func (b *instrumented) Nodes(conn Conn) NodeAccessor {
	return b.Backend.Nodes(unwrapConn(conn))
}

func (b *instrumented) Attr(conn Conn, key, lang string) AttrAccessor {
	return b.Backend.Attr(unwrapConn(conn), key, lang)
}

func (b *instrumented) Content(conn Conn, key, lang string) ContentAccessor {
	return b.Backend.Content(unwrapConn(conn), key, lang)
}

func (b *instrumented) Tagset(conn Conn, name string) TagAccessor {
	return b.Backend.Tagset(unwrapConn(conn), name)
}

func (b *instrumented) Link(conn Conn, key string) LinkAccessor {
	return b.Backend.Link(unwrapConn(conn), key)
}

func (b *instrumented) Facet(conn Conn, name string) (Facet, error) {
	return b.Backend.Facet(unwrapConn(conn), name)
}

// Admin exposes the wrapped backend's maintenance operations, if any.
func (b *instrumented) Admin() (Admin, bool) {
	a, ok := b.Backend.(Admin)
	return a, ok
}

// AdminOf finds the maintenance interface of a backend, looking through
// instrumentation.
func AdminOf(b Backend) (Admin, bool) {
	if a, ok := b.(Admin); ok {
		return a, true
	}
	if ib, ok := b.(*instrumented); ok {
		return ib.Admin()
	}
	return nil, false
}
