package graph

import (
	"context"
	"fmt"
	"reflect"
	"time"
)

// Option tunes attribute and content operations.
type Option func(*options)

type options struct {
	lang string
	typ  AttrType
}

// Lang selects the language of an attribute or content slot. The default
// language is the empty string.
func Lang(lang string) Option {
	return func(o *options) { o.lang = lang }
}

// As declares the attribute type instead of inferring it.
func As(t AttrType) Option {
	return func(o *options) { o.typ = t }
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) value(v any) (Value, error) {
	if o.typ == "" {
		return ValueOf(v)
	}
	return Coerce(v, o.typ)
}

// Node is the handle of one graph entity. It is only usable while its
// graph holds a connection.
type Node struct {
	graph *Graph
	oid   OID
}

// Base returns n itself; wrappers embedding *Node inherit it.
func (n *Node) Base() *Node { return n }

// OID returns the backend-local identifier.
func (n *Node) OID() OID { return n.oid }

// Graph returns the owning graph.
func (n *Node) Graph() *Graph { return n.graph }

func (n *Node) String() string { return fmt.Sprintf("node(%d)", n.oid) }

// Delete removes the node. Its attributes, contents, tag memberships and
// links go with it.
func (n *Node) Delete(ctx context.Context) error {
	if err := n.graph.ensureWritable(); err != nil {
		return err
	}
	nodes, err := n.graph.Nodes()
	if err != nil {
		return err
	}
	return nodes.Delete(ctx, n.oid)
}

// UUID reads the portable identifier.
func (n *Node) UUID(ctx context.Context) (string, error) {
	nodes, err := n.graph.Nodes()
	if err != nil {
		return "", err
	}
	return nodes.UUID(ctx, n.oid)
}

// Type reads the stored type name.
func (n *Node) Type(ctx context.Context) (string, error) {
	nodes, err := n.graph.Nodes()
	if err != nil {
		return "", err
	}
	t, ok, err := nodes.Type(ctx, n.oid)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &NotFoundError{OID: n.oid}
	}
	return t, nil
}

// CTime reads the creation time.
func (n *Node) CTime(ctx context.Context) (time.Time, error) {
	nodes, err := n.graph.Nodes()
	if err != nil {
		return time.Time{}, err
	}
	return nodes.CTime(ctx, n.oid)
}

// Get reads an attribute. It returns nil when the attribute is not set.
func (n *Node) Get(ctx context.Context, key string, opts ...Option) (Value, error) {
	o := collect(opts)
	attr, err := n.graph.Attr(key, o.lang)
	if err != nil {
		return nil, err
	}
	return attr.Get(ctx, n.oid, o.typ)
}

// Has reports whether an attribute is set.
func (n *Node) Has(ctx context.Context, key string, opts ...Option) (bool, error) {
	o := collect(opts)
	attr, err := n.graph.Attr(key, o.lang)
	if err != nil {
		return false, err
	}
	return attr.Has(ctx, n.oid)
}

// Set writes an attribute, replacing any previous value. The type is
// inferred from value unless As is given.
func (n *Node) Set(ctx context.Context, key string, value any, opts ...Option) error {
	if err := n.graph.ensureWritable(); err != nil {
		return err
	}
	o := collect(opts)
	v, err := o.value(value)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	attr, err := n.graph.Attr(key, o.lang)
	if err != nil {
		return err
	}
	return attr.Set(ctx, n.oid, v)
}

// Unset removes an attribute.
func (n *Node) Unset(ctx context.Context, key string, opts ...Option) error {
	if err := n.graph.ensureWritable(); err != nil {
		return err
	}
	o := collect(opts)
	attr, err := n.graph.Attr(key, o.lang)
	if err != nil {
		return err
	}
	return attr.Unset(ctx, n.oid)
}

// Content reads a content reference. It returns nil when none is stored.
func (n *Node) Content(ctx context.Context, key string, opts ...Option) (*Content, error) {
	o := collect(opts)
	acc, err := n.graph.Content(key, o.lang)
	if err != nil {
		return nil, err
	}
	return acc.Content(ctx, n.oid)
}

// Store puts data into the blob store and points the (key, lang) content
// slot at it, replacing the previous reference.
func (n *Node) Store(ctx context.Context, store BlobWriter, key string, data []byte, mimetype string, meta map[string]any, opts ...Option) (*Content, error) {
	if err := n.graph.ensureWritable(); err != nil {
		return nil, err
	}
	o := collect(opts)
	acc, err := n.graph.Content(key, o.lang)
	if err != nil {
		return nil, err
	}
	sum, err := store.Put(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("storing blob for %s: %w", key, err)
	}
	return acc.Store(ctx, n.oid, sum, int64(len(data)), mimetype, meta)
}

// Tag adds tags to a tagset membership.
func (n *Node) Tag(ctx context.Context, tagset string, tags ...string) error {
	if err := n.graph.ensureWritable(); err != nil {
		return err
	}
	acc, err := n.graph.Tagset(tagset)
	if err != nil {
		return err
	}
	return acc.Tag(ctx, n.oid, tags...)
}

// Untag removes tags from a tagset membership.
func (n *Node) Untag(ctx context.Context, tagset string, tags ...string) error {
	if err := n.graph.ensureWritable(); err != nil {
		return err
	}
	acc, err := n.graph.Tagset(tagset)
	if err != nil {
		return err
	}
	return acc.Untag(ctx, n.oid, tags...)
}

// Tags returns the sorted tags of a tagset.
func (n *Node) Tags(ctx context.Context, tagset string) ([]string, error) {
	acc, err := n.graph.Tagset(tagset)
	if err != nil {
		return nil, err
	}
	return acc.Tags(ctx, n.oid)
}

// IsTagged reports whether all given tags are present.
func (n *Node) IsTagged(ctx context.Context, tagset string, tags ...string) (bool, error) {
	acc, err := n.graph.Tagset(tagset)
	if err != nil {
		return false, err
	}
	return acc.IsTagged(ctx, n.oid, tags...)
}

// ToggleTags adds the given tags that are absent and removes those that
// are present.
func (n *Node) ToggleTags(ctx context.Context, tagset string, tags ...string) error {
	if err := n.graph.ensureWritable(); err != nil {
		return err
	}
	acc, err := n.graph.Tagset(tagset)
	if err != nil {
		return err
	}
	return ToggleTags(ctx, acc, n.oid, tags...)
}

// Link points the key edge at target, replacing any previous target.
// target must be a Handle or an oid.
func (n *Node) Link(ctx context.Context, key string, target any, meta map[string]any) error {
	if err := n.graph.ensureWritable(); err != nil {
		return err
	}
	var oid OID
	switch t := target.(type) {
	case Handle:
		base := baseOf(t)
		if base == nil {
			return typeMismatch("link target is a nil %T", target)
		}
		oid = base.oid
	case OID:
		oid = t
	case int64:
		oid = OID(t)
	case int:
		oid = OID(t)
	default:
		return typeMismatch("link target must be a node or an oid, got %T", target)
	}
	acc, err := n.graph.Link(key)
	if err != nil {
		return err
	}
	return acc.Link(ctx, n.oid, oid, meta)
}

// baseOf returns the *Node behind h, or nil when h is a nil pointer or
// wraps a nil node.
func baseOf(h Handle) *Node {
	if n, ok := h.(*Node); ok {
		return n
	}
	if rv := reflect.ValueOf(h); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}
	return h.Base()
}

// Unlink removes the key edge.
func (n *Node) Unlink(ctx context.Context, key string) error {
	if err := n.graph.ensureWritable(); err != nil {
		return err
	}
	acc, err := n.graph.Link(key)
	if err != nil {
		return err
	}
	return acc.Unlink(ctx, n.oid)
}

// LinkTarget resolves the key edge target. It returns nil when unlinked.
func (n *Node) LinkTarget(ctx context.Context, key string) (Handle, error) {
	acc, err := n.graph.Link(key)
	if err != nil {
		return nil, err
	}
	oid, ok, err := acc.Target(ctx, n.oid)
	if err != nil || !ok {
		return nil, err
	}
	return n.graph.Node(ctx, oid, nil)
}

// LinkSources resolves every node whose key edge points at n.
func (n *Node) LinkSources(ctx context.Context, key string) ([]Handle, error) {
	acc, err := n.graph.Link(key)
	if err != nil {
		return nil, err
	}
	oids, err := acc.Sources(ctx, n.oid)
	if err != nil {
		return nil, err
	}
	out := make([]Handle, 0, len(oids))
	for _, oid := range oids {
		h, err := n.graph.Node(ctx, oid, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// HasLink reports whether the key edge is set.
func (n *Node) HasLink(ctx context.Context, key string) (bool, error) {
	acc, err := n.graph.Link(key)
	if err != nil {
		return false, err
	}
	return acc.Has(ctx, n.oid)
}
