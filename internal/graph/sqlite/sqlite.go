// Package sqlite implements graph.Backend on SQLite.
//
// Each graph scope takes a dedicated pooled connection and runs one SQL
// transaction on it: BEGIN IMMEDIATE for writers, a deferred BEGIN with
// query_only set for readers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/systemshift/nodegraph/internal/graph"
)

// Backend implements graph.Backend and graph.Admin using SQLite
type Backend struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var (
	_ graph.Backend = (*Backend)(nil)
	_ graph.Admin   = (*Backend)(nil)
)

// dsn builds the connection string; pragmas are applied per connection.
func dsn(path string) string {
	params := make([]string, 0, len(allPragmas()))
	for _, p := range allPragmas() {
		params = append(params, "_pragma="+p)
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

// Open opens or creates the database at path and migrates its schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own database.
		db.SetMaxOpenConns(1)
	}

	// Verify connectivity
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}

	b := &Backend{db: db, path: path, logger: logger}
	if err := b.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// Close closes the SQLite connection pool
func (b *Backend) Close() error {
	return b.db.Close()
}

// Path returns the database path
func (b *Backend) Path() string {
	return b.path
}

// conn is one scoped connection with an open transaction.
type conn struct {
	c        *sql.Conn
	readOnly bool
	done     bool
}

func (c *conn) ReadOnly() bool { return c.readOnly }

// q returns the live connection, failing once the scope has ended.
func (c *conn) q() (*sql.Conn, error) {
	if c.done {
		return nil, fmt.Errorf("sqlite: %w", graph.ErrClosed)
	}
	return c.c, nil
}

func asConn(c graph.Conn) *conn {
	cn, ok := c.(*conn)
	if !ok {
		panic(fmt.Sprintf("sqlite: foreign connection %T", c))
	}
	return cn
}

// Connect takes a pooled connection and begins its transaction
func (b *Backend) Connect(ctx context.Context, readOnly bool) (graph.Conn, error) {
	c, err := b.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	begin := "BEGIN IMMEDIATE"
	if readOnly {
		if _, err := c.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			c.Close()
			return nil, fmt.Errorf("setting query_only: %w", err)
		}
		begin = "BEGIN"
	}
	if _, err := c.ExecContext(ctx, begin); err != nil {
		if readOnly {
			c.ExecContext(context.WithoutCancel(ctx), "PRAGMA query_only = OFF")
		}
		c.Close()
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &conn{c: c, readOnly: readOnly}, nil
}

// Disconnect commits or rolls back and returns the connection to the pool
func (b *Backend) Disconnect(ctx context.Context, gc graph.Conn, errored bool) error {
	cn := asConn(gc)
	if cn.done {
		return fmt.Errorf("sqlite: %w", graph.ErrClosed)
	}
	cn.done = true

	var txErr error
	if errored {
		_, txErr = cn.c.ExecContext(ctx, "ROLLBACK")
	} else if _, txErr = cn.c.ExecContext(ctx, "COMMIT"); txErr != nil {
		// A failed COMMIT leaves the transaction open.
		cn.c.ExecContext(ctx, "ROLLBACK")
		txErr = fmt.Errorf("committing: %w", txErr)
	}
	if cn.readOnly {
		if _, err := cn.c.ExecContext(ctx, "PRAGMA query_only = OFF"); err != nil {
			txErr = errors.Join(txErr, fmt.Errorf("clearing query_only: %w", err))
		}
	}
	return errors.Join(txErr, cn.c.Close())
}

func (b *Backend) Nodes(c graph.Conn) graph.NodeAccessor {
	return &nodeAccessor{conn: asConn(c)}
}

func (b *Backend) Attr(c graph.Conn, key, lang string) graph.AttrAccessor {
	return &attrAccessor{conn: asConn(c), key: key, lang: lang}
}

func (b *Backend) Content(c graph.Conn, key, lang string) graph.ContentAccessor {
	return &contentAccessor{conn: asConn(c), key: key, lang: lang}
}

func (b *Backend) Tagset(c graph.Conn, name string) graph.TagAccessor {
	return &tagAccessor{conn: asConn(c), tagset: name}
}

func (b *Backend) Link(c graph.Conn, key string) graph.LinkAccessor {
	return &linkAccessor{conn: asConn(c), key: key}
}

func (b *Backend) Facet(c graph.Conn, name string) (graph.Facet, error) {
	if !validIdent(name) {
		return nil, fmt.Errorf("invalid facet name %q", name)
	}
	return &facet{conn: asConn(c), table: name}, nil
}

// SchemaVersion returns the applied schema version
func (b *Backend) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := b.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// Migrate applies the schema when the database is behind
func (b *Backend) Migrate(ctx context.Context) error {
	current, err := b.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range allSchemaStatements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("setting schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	b.logger.InfoContext(ctx, "sqlite schema migrated", "path", b.path, "from", current, "to", schemaVersion)
	return nil
}

// Reset deletes every node and everything attached to it
func (b *Backend) Reset(ctx context.Context) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range dataTables() {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name IN ('nodes', 'contents')`); err != nil {
		return fmt.Errorf("resetting sequences: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	b.logger.WarnContext(ctx, "sqlite graph reset", "path", b.path)
	return nil
}

// Statistics counts rows per table and nodes per type
func (b *Backend) Statistics(ctx context.Context) (*graph.Statistics, error) {
	stats := &graph.Statistics{Types: make(map[string]int64)}
	counts := []struct {
		table string
		dst   *int64
	}{
		{"nodes", &stats.Nodes},
		{"attrs", &stats.Attrs},
		{"contents", &stats.Contents},
		{"tags", &stats.Tags},
		{"links", &stats.Links},
	}
	for _, c := range counts {
		if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}

	rows, err := b.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM nodes GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("counting types: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var n int64
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		stats.Types[typ] = n
	}
	return stats, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
