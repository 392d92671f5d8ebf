package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type article struct{ *Node }

type author struct{ *Node }

func TestRegistry(t *testing.T) {
	articleClass := NewClass("Article", func(n *Node) Handle { return &article{n} })
	authorClass := NewClass("Author", func(n *Node) Handle { return &author{n} })

	r, err := NewRegistry(Register("article", articleClass), Register("author", authorClass))
	require.NoError(t, err)

	class, err := r.NodeClass("author")
	require.NoError(t, err)
	assert.Same(t, authorClass, class)

	class, name, err := r.ClassAndType(articleClass)
	require.NoError(t, err)
	assert.Same(t, articleClass, class)
	assert.Equal(t, "article", name)

	class, name, err = r.ClassAndType(TypeName("author"))
	require.NoError(t, err)
	assert.Same(t, authorClass, class)
	assert.Equal(t, "author", name)

	_, err = r.NodeClass("nope")
	assert.ErrorIs(t, err, ErrUnknownType)
	_, _, err = r.ClassAndType(NewClass("Stray", nil))
	assert.ErrorIs(t, err, ErrUnknownType)

	h, err := r.NodeFactory(nil, 4, "article", nil)
	require.NoError(t, err)
	a, ok := h.(*article)
	require.True(t, ok)
	assert.Equal(t, OID(4), a.OID())
}

func TestRegistry_Duplicates(t *testing.T) {
	c := NewClass("A", nil)
	_, err := NewRegistry(Register("a", c), Register("b", c))
	assert.ErrorIs(t, err, ErrDuplicateRegistration)

	_, err = NewRegistry(Register("a", c), Register("a", NewClass("B", nil)))
	assert.ErrorIs(t, err, ErrDuplicateRegistration)

	_, err = NewRegistry(Register("a", nil))
	assert.Error(t, err)

	assert.Panics(t, func() { MustRegistry(Register("a", c), Register("a", c)) })
}

func TestNoSchema(t *testing.T) {
	var s NoSchema

	class, err := s.NodeClass("anything")
	require.NoError(t, err)
	assert.Same(t, NodeClass, class)

	class, name, err := s.ClassAndType(TypeName("note"))
	require.NoError(t, err)
	assert.Same(t, NodeClass, class)
	assert.Equal(t, "note", name)

	_, _, err = s.ClassAndType(NewClass("X", nil))
	assert.ErrorIs(t, err, ErrUnknownType)

	h, err := s.NodeFactory(nil, 9, "note", nil)
	require.NoError(t, err)
	assert.IsType(t, &Node{}, h)
	assert.Equal(t, "node(9)", h.Base().String())
}
