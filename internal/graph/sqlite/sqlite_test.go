package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/nodegraph/internal/graph"
)

func openTest(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(context.Background(), filepath.Join(t.TempDir(), "graph.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestOpen_MigratesOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "graph.db")

	b, err := Open(ctx, path, nil)
	require.NoError(t, err)
	v, err := b.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, v)
	require.NoError(t, b.Close())

	b, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Migrate(ctx))
	assert.Equal(t, path, b.Path())
}

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, ":memory:", nil)
	require.NoError(t, err)
	defer b.Close()

	c, err := b.Connect(ctx, false)
	require.NoError(t, err)
	oid, err := b.Nodes(c).New(ctx, "note")
	require.NoError(t, err)
	require.NoError(t, b.Disconnect(ctx, c, false))

	c, err = b.Connect(ctx, true)
	require.NoError(t, err)
	typ, ok, err := b.Nodes(c).Type(ctx, oid)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "note", typ)
	require.NoError(t, b.Disconnect(ctx, c, false))
}

func TestReadOnlyConnection_RejectsWritesInSQLite(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)

	c, err := b.Connect(ctx, true)
	require.NoError(t, err)
	assert.True(t, c.ReadOnly())
	_, err = b.Nodes(c).New(ctx, "note")
	assert.Error(t, err)
	require.NoError(t, b.Disconnect(ctx, c, true))

	// query_only does not leak into the next scope on the pooled connection.
	c, err = b.Connect(ctx, false)
	require.NoError(t, err)
	_, err = b.Nodes(c).New(ctx, "note")
	require.NoError(t, err)
	require.NoError(t, b.Disconnect(ctx, c, false))
}

func TestDisconnect_Twice(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)

	c, err := b.Connect(ctx, false)
	require.NoError(t, err)
	require.NoError(t, b.Disconnect(ctx, c, false))
	assert.ErrorIs(t, b.Disconnect(ctx, c, false), graph.ErrClosed)

	_, err = b.Attr(c, "k", "").Has(ctx, 1)
	assert.ErrorIs(t, err, graph.ErrClosed)
}

func TestRollback(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)

	c, err := b.Connect(ctx, false)
	require.NoError(t, err)
	_, err = b.Nodes(c).New(ctx, "note")
	require.NoError(t, err)
	require.NoError(t, b.Disconnect(ctx, c, true))

	stats, err := b.Statistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Nodes)
}

func TestAttrNodes(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)

	c, err := b.Connect(ctx, false)
	require.NoError(t, err)
	defer b.Disconnect(ctx, c, false)

	nodes := b.Nodes(c)
	var oids []graph.OID
	for range 3 {
		oid, err := nodes.New(ctx, "n")
		require.NoError(t, err)
		oids = append(oids, oid)
	}
	attr := b.Attr(c, "rank", "")
	require.NoError(t, attr.Set(ctx, oids[0], graph.Int(1)))
	require.NoError(t, attr.Set(ctx, oids[1], graph.Float(1)))
	require.NoError(t, attr.Set(ctx, oids[2], graph.Int(1)))

	found, err := attr.Nodes(ctx, graph.Int(1))
	require.NoError(t, err)
	assert.Equal(t, []graph.OID{oids[0], oids[2]}, found)

	found, err = attr.Nodes(ctx, graph.Text("1"))
	require.NoError(t, err)
	assert.Empty(t, found)

	v, err := attr.Get(ctx, oids[1], "")
	require.NoError(t, err)
	assert.Equal(t, graph.Float(1), v)
}

func TestFacet(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)
	_, err := b.db.ExecContext(ctx, `CREATE TABLE doc_stats (oid INTEGER PRIMARY KEY, views INTEGER, label TEXT)`)
	require.NoError(t, err)

	c, err := b.Connect(ctx, false)
	require.NoError(t, err)
	defer b.Disconnect(ctx, c, false)

	oid, err := b.Nodes(c).New(ctx, "doc")
	require.NoError(t, err)

	f, err := b.Facet(c, "doc_stats")
	require.NoError(t, err)
	require.NoError(t, f.Insert(ctx, oid, map[string]any{"views": 1, "label": "x"}))
	require.NoError(t, graph.SetColumn(ctx, f, oid, "views", 5))

	views, err := graph.GetColumn(ctx, f, oid, "views")
	require.NoError(t, err)
	assert.Equal(t, int64(5), views)

	vals, err := f.Select(ctx, oid, "label", "views")
	require.NoError(t, err)
	assert.Equal(t, []any{"x", int64(5)}, vals)

	err = graph.SetColumn(ctx, f, oid+100, "views", 1)
	assert.True(t, graph.IsNotFound(err))
	_, err = f.Select(ctx, oid+100, "views")
	assert.True(t, graph.IsNotFound(err))

	assert.Error(t, f.Insert(ctx, oid, map[string]any{"views; DROP TABLE nodes": 1}))
	_, err = f.Select(ctx, oid)
	assert.Error(t, err)
	_, err = b.Facet(c, "doc_stats; --")
	assert.Error(t, err)
}

func TestResetAndStatistics(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)

	c, err := b.Connect(ctx, false)
	require.NoError(t, err)
	nodes := b.Nodes(c)
	a, err := nodes.New(ctx, "article")
	require.NoError(t, err)
	au, err := nodes.New(ctx, "author")
	require.NoError(t, err)
	require.NoError(t, b.Attr(c, "title", "").Set(ctx, a, graph.Text("t")))
	require.NoError(t, b.Tagset(c, "s").Tag(ctx, a, "x", "y"))
	require.NoError(t, b.Link(c, "by").Link(ctx, a, au, nil))
	_, err = b.Content(c, "body", "").Store(ctx, a, "ab", 2, "text/plain", nil)
	require.NoError(t, err)
	require.NoError(t, b.Disconnect(ctx, c, false))

	stats, err := b.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, &graph.Statistics{
		Nodes: 2, Attrs: 1, Contents: 1, Tags: 2, Links: 1,
		Types: map[string]int64{"article": 1, "author": 1},
	}, stats)

	require.NoError(t, b.Reset(ctx))
	stats, err = b.Statistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Nodes)
	assert.Empty(t, stats.Types)

	// Oids restart after a reset.
	c, err = b.Connect(ctx, false)
	require.NoError(t, err)
	oid, err := b.Nodes(c).New(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, graph.OID(1), oid)
	require.NoError(t, b.Disconnect(ctx, c, false))
}
