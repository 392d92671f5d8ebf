// Package graph implements a transactional, schema-polymorphic node graph
// layered over a pluggable storage backend.
//
// A Graph owns one backend connection between Enter and Exit. Nodes are
// light handles (oid plus graph) and every node operation asks the graph
// for an accessor bound to the current connection. Exit commits on a clean
// scope and rolls back otherwise.
package graph

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
)

// Graph is the transaction boundary around one backend connection.
type Graph struct {
	backend  Backend
	schema   Schema
	readOnly bool
	logger   *slog.Logger

	conn Conn
}

// New creates a graph. It holds no connection until Enter.
func New(backend Backend, schema Schema, readOnly bool) *Graph {
	if schema == nil {
		schema = NoSchema{}
	}
	return &Graph{
		backend:  backend,
		schema:   schema,
		readOnly: readOnly,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger used for scope events.
func (g *Graph) WithLogger(logger *slog.Logger) *Graph {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// ReadOnly reports whether the graph rejects writes.
func (g *Graph) ReadOnly() bool { return g.readOnly }

// Schema returns the schema used for node construction.
func (g *Graph) Schema() Schema { return g.schema }

// Enter acquires a backend connection. A graph can hold only one
// connection at a time.
func (g *Graph) Enter(ctx context.Context) error {
	if g.conn != nil {
		return ErrAlreadyOpen
	}
	conn, err := g.backend.Connect(ctx, g.readOnly)
	if err != nil {
		return fmt.Errorf("connecting to backend: %w", err)
	}
	g.conn = conn
	g.logger.DebugContext(ctx, "graph scope opened", "read_only", g.readOnly)
	return nil
}

// Exit commits (errored false) or rolls back (errored true) and releases
// the connection. The connection is cleared even when Disconnect fails.
func (g *Graph) Exit(ctx context.Context, errored bool) error {
	if g.conn == nil {
		return ErrClosed
	}
	conn := g.conn
	g.conn = nil

	// Teardown must run even when the caller's context is already done.
	err := g.backend.Disconnect(context.WithoutCancel(ctx), conn, errored)
	if errored {
		g.logger.DebugContext(ctx, "graph scope rolled back", "read_only", g.readOnly)
	} else {
		g.logger.DebugContext(ctx, "graph scope committed", "read_only", g.readOnly)
	}
	if err != nil {
		return fmt.Errorf("disconnecting from backend: %w", err)
	}
	return nil
}

// Run executes fn inside a scope. The scope commits when fn returns nil
// and rolls back when fn returns an error or panics; a panic is re-raised
// after the rollback.
func (g *Graph) Run(ctx context.Context, fn func(*Graph) error) (err error) {
	if err := g.Enter(ctx); err != nil {
		return err
	}
	panicked := true
	defer func() {
		exitErr := g.Exit(ctx, panicked || err != nil)
		if panicked {
			return
		}
		if err == nil {
			err = exitErr
		} else if exitErr != nil {
			err = errors.Join(err, exitErr)
		}
	}()
	err = fn(g)
	panicked = false
	return err
}

func (g *Graph) ensureWritable() error {
	if g.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (g *Graph) live() (Conn, error) {
	if g.conn == nil {
		return nil, ErrClosed
	}
	return g.conn, nil
}

// Nodes returns the node accessor bound to the current connection.
func (g *Graph) Nodes() (NodeAccessor, error) {
	conn, err := g.live()
	if err != nil {
		return nil, err
	}
	return g.backend.Nodes(conn), nil
}

// Attr returns the accessor for one attribute slot.
func (g *Graph) Attr(key, lang string) (AttrAccessor, error) {
	conn, err := g.live()
	if err != nil {
		return nil, err
	}
	return g.backend.Attr(conn, key, lang), nil
}

// Content returns the accessor for one content slot.
func (g *Graph) Content(key, lang string) (ContentAccessor, error) {
	conn, err := g.live()
	if err != nil {
		return nil, err
	}
	return g.backend.Content(conn, key, lang), nil
}

// Tagset returns the accessor for one tagset.
func (g *Graph) Tagset(name string) (TagAccessor, error) {
	conn, err := g.live()
	if err != nil {
		return nil, err
	}
	return g.backend.Tagset(conn, name), nil
}

// Link returns the accessor for one link key.
func (g *Graph) Link(key string) (LinkAccessor, error) {
	conn, err := g.live()
	if err != nil {
		return nil, err
	}
	return g.backend.Link(conn, key), nil
}

// Facet returns the named facet. On a read-only graph the facet rejects
// writes with ErrReadOnly.
func (g *Graph) Facet(name string) (Facet, error) {
	conn, err := g.live()
	if err != nil {
		return nil, err
	}
	f, err := g.backend.Facet(conn, name)
	if err != nil {
		return nil, err
	}
	if g.readOnly {
		return readOnlyFacet{f}, nil
	}
	return f, nil
}

// List yields the nodes of one type. Each call starts a fresh backend scan.
func (g *Graph) List(ctx context.Context, ref TypeRef) iter.Seq2[Handle, error] {
	return func(yield func(Handle, error) bool) {
		class, typeName, err := g.schema.ClassAndType(ref)
		if err != nil {
			yield(nil, err)
			return
		}
		nodes, err := g.Nodes()
		if err != nil {
			yield(nil, err)
			return
		}
		for oid, err := range nodes.List(ctx, typeName) {
			if err != nil {
				yield(nil, err)
				return
			}
			h, err := g.schema.NodeFactory(g, oid, typeName, class)
			if !yield(h, err) || err != nil {
				return
			}
		}
	}
}

// All yields every node, each wrapped according to its stored type.
func (g *Graph) All(ctx context.Context) iter.Seq2[Handle, error] {
	return func(yield func(Handle, error) bool) {
		nodes, err := g.Nodes()
		if err != nil {
			yield(nil, err)
			return
		}
		for ref, err := range nodes.All(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			h, err := g.schema.NodeFactory(g, ref.OID, ref.Type, nil)
			if !yield(h, err) || err != nil {
				return
			}
		}
	}
}

// Node resolves one node.
//
// With class NodeClass the plain node is returned without touching the
// backend. Any other non-nil class is trusted as given: the stored type is
// not checked against it. With a nil class the stored type is read and
// resolved through the schema; a missing node yields a NotFoundError.
func (g *Graph) Node(ctx context.Context, oid OID, class *Class) (Handle, error) {
	if class == NodeClass {
		return &Node{graph: g, oid: oid}, nil
	}
	if class != nil {
		return class.wrap(&Node{graph: g, oid: oid}), nil
	}
	nodes, err := g.Nodes()
	if err != nil {
		return nil, err
	}
	typeName, ok, err := nodes.Type(ctx, oid)
	if err != nil {
		return nil, fmt.Errorf("reading type of node %d: %w", oid, err)
	}
	if !ok {
		return nil, &NotFoundError{OID: oid}
	}
	return g.schema.NodeFactory(g, oid, typeName, nil)
}

// NodeByUUID resolves a node from its portable uuid.
func (g *Graph) NodeByUUID(ctx context.Context, uuid string) (Handle, error) {
	nodes, err := g.Nodes()
	if err != nil {
		return nil, err
	}
	oid, ok, err := nodes.UUIDToOID(ctx, uuid)
	if err != nil {
		return nil, fmt.Errorf("resolving uuid %s: %w", uuid, err)
	}
	if !ok {
		return nil, &NotFoundError{UUID: uuid}
	}
	return g.Node(ctx, oid, nil)
}

// New creates a node of the referenced type.
func (g *Graph) New(ctx context.Context, ref TypeRef) (Handle, error) {
	if err := g.ensureWritable(); err != nil {
		return nil, err
	}
	class, typeName, err := g.schema.ClassAndType(ref)
	if err != nil {
		return nil, err
	}
	nodes, err := g.Nodes()
	if err != nil {
		return nil, err
	}
	oid, err := nodes.New(ctx, typeName)
	if err != nil {
		return nil, fmt.Errorf("creating %s node: %w", typeName, err)
	}
	return g.schema.NodeFactory(g, oid, typeName, class)
}

// Find returns the nodes whose attribute key equals value.
func (g *Graph) Find(ctx context.Context, key string, value any, opts ...Option) ([]Handle, error) {
	o := collect(opts)
	v, err := o.value(value)
	if err != nil {
		return nil, err
	}
	attr, err := g.Attr(key, o.lang)
	if err != nil {
		return nil, err
	}
	oids, err := attr.Nodes(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("finding nodes by %s: %w", key, err)
	}
	out := make([]Handle, 0, len(oids))
	for _, oid := range oids {
		h, err := g.Node(ctx, oid, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
