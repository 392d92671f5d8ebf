package graph

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"
)

// spyBackend records every call that reaches it.
type spyBackend struct {
	mu    sync.Mutex
	calls []string

	connectErr    error
	disconnectErr error
	// types maps oid to stored type for spyNodes.Type.
	types map[OID]string
}

type spyConn struct{ readOnly bool }

func (c *spyConn) ReadOnly() bool {
	return c.readOnly
}

func (b *spyBackend) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
}

func (b *spyBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *spyBackend) Connect(_ context.Context, readOnly bool) (Conn, error) {
	b.record("connect")
	if b.connectErr != nil {
		return nil, b.connectErr
	}
	return &spyConn{readOnly: readOnly}, nil
}

func (b *spyBackend) Disconnect(_ context.Context, _ Conn, errored bool) error {
	if errored {
		b.record("rollback")
	} else {
		b.record("commit")
	}
	return b.disconnectErr
}

func (b *spyBackend) Nodes(Conn) NodeAccessor {
	return &spyNodes{b}
}

func (b *spyBackend) Attr(Conn, string, string) AttrAccessor {
	return &spyAccessor{b}
}

func (b *spyBackend) Content(Conn, string, string) ContentAccessor {
	return &spyAccessor{b}
}

func (b *spyBackend) Tagset(Conn, string) TagAccessor {
	return &spyAccessor{b}
}

func (b *spyBackend) Link(Conn, string) LinkAccessor {
	return &spyAccessor{b}
}

func (b *spyBackend) Facet(Conn, string) (Facet, error) {
	return &spyAccessor{b}, nil
}

type spyNodes struct{ b *spyBackend }

func (n *spyNodes) All(context.Context) iter.Seq2[NodeRef, error] {
	n.b.record("nodes.all")
	return func(func(NodeRef, error) bool) {}
}

func (n *spyNodes) List(context.Context, string) iter.Seq2[OID, error] {
	n.b.record("nodes.list")
	return func(func(OID, error) bool) {}
}

func (n *spyNodes) New(context.Context, string) (OID, error) {
	n.b.record("nodes.new")
	return 1, nil
}

func (n *spyNodes) UUIDToOID(context.Context, string) (OID, bool, error) {
	n.b.record("nodes.uuid_to_oid")
	return 0, false, nil
}

func (n *spyNodes) Delete(context.Context, OID) error {
	n.b.record("nodes.delete")
	return nil
}

func (n *spyNodes) UUID(context.Context, OID) (string, error) {
	n.b.record("nodes.uuid")
	return "", nil
}

func (n *spyNodes) Type(_ context.Context, oid OID) (string, bool, error) {
	n.b.record("nodes.type")
	t, ok := n.b.types[oid]
	return t, ok, nil
}

func (n *spyNodes) CTime(context.Context, OID) (time.Time, error) {
	n.b.record("nodes.ctime")
	return time.Time{}, nil
}

func (n *spyNodes) Attributes(context.Context, OID) ([]AttrKey, error) {
	return nil, nil
}

func (n *spyNodes) Contents(context.Context, OID) ([]*Content, error) {
	return nil, nil
}

func (n *spyNodes) Tagsets(context.Context, OID) ([]string, error) {
	return nil, nil
}

func (n *spyNodes) Links(context.Context, OID) ([]*Link, error) {
	return nil, nil
}

// spyAccessor stands in for every slot accessor and for facets.
type spyAccessor struct{ b *spyBackend }

func (a *spyAccessor) Get(context.Context, OID, AttrType) (Value, error) {
	a.b.record("attr.get")
	return nil, nil
}

func (a *spyAccessor) Set(context.Context, OID, Value) error {
	a.b.record("attr.set")
	return nil
}

func (a *spyAccessor) Unset(context.Context, OID) error {
	a.b.record("attr.unset")
	return nil
}

func (a *spyAccessor) Has(context.Context, OID) (bool, error) {
	a.b.record("has")
	return false, nil
}

func (a *spyAccessor) Nodes(context.Context, Value) ([]OID, error) {
	a.b.record("attr.nodes")
	return nil, nil
}

func (a *spyAccessor) Content(context.Context, OID) (*Content, error) {
	a.b.record("content.get")
	return nil, nil
}

func (a *spyAccessor) Store(context.Context, OID, string, int64, string, map[string]any) (*Content, error) {
	a.b.record("content.store")
	return nil, nil
}

func (a *spyAccessor) Tag(context.Context, OID, ...string) error {
	a.b.record("tags.tag")
	return nil
}

func (a *spyAccessor) Untag(context.Context, OID, ...string) error {
	a.b.record("tags.untag")
	return nil
}

func (a *spyAccessor) Tags(context.Context, OID) ([]string, error) {
	a.b.record("tags.tags")
	return nil, nil
}

func (a *spyAccessor) IsTagged(context.Context, OID, ...string) (bool, error) {
	a.b.record("tags.is_tagged")
	return false, nil
}

func (a *spyAccessor) Link(context.Context, OID, OID, map[string]any) error {
	a.b.record("link.link")
	return nil
}

func (a *spyAccessor) Unlink(context.Context, OID) error {
	a.b.record("link.unlink")
	return nil
}

func (a *spyAccessor) Target(context.Context, OID) (OID, bool, error) {
	a.b.record("link.target")
	return 0, false, nil
}

func (a *spyAccessor) Sources(context.Context, OID) ([]OID, error) {
	a.b.record("link.sources")
	return nil, nil
}

func (a *spyAccessor) Insert(context.Context, OID, map[string]any) error {
	a.b.record("facet.insert")
	return nil
}

func (a *spyAccessor) Update(context.Context, OID, map[string]any) error {
	a.b.record("facet.update")
	return nil
}

func (a *spyAccessor) Select(context.Context, OID, ...string) ([]any, error) {
	a.b.record("facet.select")
	return []any{nil}, nil
}

// memBlobs is an in-memory BlobWriter.
type memBlobs struct{ puts int }

func (m *memBlobs) Put(context.Context, []byte) (string, error) {
	m.puts++
	return "", errors.New("memBlobs: not reached in these tests")
}
