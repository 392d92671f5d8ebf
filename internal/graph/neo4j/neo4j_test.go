package neo4j

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/nodegraph/internal/graph"
)

// openTest connects to the server named by NEO4J_URI and wipes it.
func openTest(t *testing.T) *Backend {
	t.Helper()
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		t.Skip("NEO4J_URI not set")
	}
	ctx := context.Background()
	b, err := Open(ctx, Config{
		URI:      uri,
		Username: os.Getenv("NEO4J_USER"),
		Password: os.Getenv("NEO4J_PASSWORD"),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Reset(ctx))
	t.Cleanup(func() { b.Close(ctx) })
	return b
}

func TestNeo4j_Scenario(t *testing.T) {
	ctx := context.Background()
	store := graph.NewStore(openTest(t), nil, nil)

	var oid, authorOID graph.OID
	err := store.Update(ctx, func(g *graph.Graph) error {
		h, err := g.New(ctx, graph.TypeName("Article"))
		if err != nil {
			return err
		}
		a, err := g.New(ctx, graph.TypeName("Author"))
		if err != nil {
			return err
		}
		n := h.Base()
		oid, authorOID = n.OID(), a.Base().OID()
		if err := n.Set(ctx, "title", "Hello"); err != nil {
			return err
		}
		if err := n.Set(ctx, "rank", 3); err != nil {
			return err
		}
		if err := n.Tag(ctx, "pub", "draft", "new"); err != nil {
			return err
		}
		if err := n.ToggleTags(ctx, "pub", "new", "final"); err != nil {
			return err
		}
		return n.Link(ctx, "author", a, map[string]any{"role": "lead"})
	})
	require.NoError(t, err)

	err = store.View(ctx, func(g *graph.Graph) error {
		m, err := g.Node(ctx, oid, nil)
		require.NoError(t, err)
		n := m.Base()

		v, err := n.Get(ctx, "title")
		require.NoError(t, err)
		assert.Equal(t, graph.Text("Hello"), v)
		v, err = n.Get(ctx, "rank")
		require.NoError(t, err)
		assert.Equal(t, graph.Int(3), v)

		tags, err := n.Tags(ctx, "pub")
		require.NoError(t, err)
		assert.Equal(t, []string{"draft", "final"}, tags)

		target, err := n.LinkTarget(ctx, "author")
		require.NoError(t, err)
		require.NotNil(t, target)
		assert.Equal(t, authorOID, target.Base().OID())

		found, err := g.Find(ctx, "title", "Hello")
		require.NoError(t, err)
		require.Len(t, found, 1)

		_, err = g.Node(ctx, 999999, nil)
		assert.True(t, graph.IsNotFound(err))
		return nil
	})
	require.NoError(t, err)
}

func TestNeo4j_Rollback(t *testing.T) {
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

func TestNeo4j_FacetNotSupported(t *testing.T) {
	b := &Backend{}
	_, err := b.Facet(&conn{}, "anything")
	assert.ErrorIs(t, err, graph.ErrNotSupported)
}
