package graph

import (
	"context"
	"log/slog"
)

// Store binds a backend to a schema and opens graphs on it.
type Store struct {
	backend Backend
	schema  Schema
	logger  *slog.Logger
}

// NewStore creates a store. A nil schema means NoSchema.
func NewStore(backend Backend, schema Schema, logger *slog.Logger) *Store {
	if schema == nil {
		schema = NoSchema{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, schema: schema, logger: logger}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

// Graph creates an unopened graph.
func (s *Store) Graph(readOnly bool) *Graph {
	return New(s.backend, s.schema, readOnly).WithLogger(s.logger)
}

// View runs fn in a read-only graph scope.
func (s *Store) View(ctx context.Context, fn func(*Graph) error) error {
	return s.Graph(true).Run(ctx, fn)
}

// Update runs fn in a read-write graph scope. Writes are committed only if
// fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(*Graph) error) error {
	return s.Graph(false).Run(ctx, fn)
}
