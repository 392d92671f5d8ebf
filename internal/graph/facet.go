package graph

import (
	"context"
	"fmt"
)

// Facet gives column access to an application table keyed by oid.
type Facet interface {
	Insert(ctx context.Context, oid OID, values map[string]any) error
	Update(ctx context.Context, oid OID, values map[string]any) error
	// Select returns the requested columns in order. A missing row
	// yields a NotFoundError.
	Select(ctx context.Context, oid OID, cols ...string) ([]any, error)
}

// GetColumn reads a single facet column.
func GetColumn(ctx context.Context, f Facet, oid OID, col string) (any, error) {
	vals, err := f.Select(ctx, oid, col)
	if err != nil {
		return nil, err
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("facet select returned %d columns, want 1", len(vals))
	}
	return vals[0], nil
}

// SetColumn updates a single facet column.
func SetColumn(ctx context.Context, f Facet, oid OID, col string, value any) error {
	return f.Update(ctx, oid, map[string]any{col: value})
}

// readOnlyFacet rejects writes made through a read-only graph.
type readOnlyFacet struct {
	Facet
}

func (readOnlyFacet) Insert(context.Context, OID, map[string]any) error { return ErrReadOnly }
func (readOnlyFacet) Update(context.Context, OID, map[string]any) error { return ErrReadOnly }
