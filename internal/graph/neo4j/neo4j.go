// Package neo4j implements graph.Backend on a Neo4j database.
//
// Nodes are (:GraphNode) vertices; attributes, contents and tags are
// satellite vertices keyed by oid; links are [:LINK] relationships. Each
// graph scope is one explicit transaction on its own session.
package neo4j

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/systemshift/nodegraph/internal/graph"
)

const schemaVersion = 1

// Config holds Neo4j connection configuration
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Backend implements graph.Backend and graph.Admin using Neo4j
type Backend struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

var (
	_ graph.Backend = (*Backend)(nil)
	_ graph.Admin   = (*Backend)(nil)
)

// Open creates the driver, verifies connectivity and migrates the schema
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Database == "" {
		cfg.Database = "neo4j"
	}
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	// Verify connectivity
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connecting to neo4j: %w", err)
	}

	b := &Backend{driver: driver, database: cfg.Database, logger: logger}
	if err := b.Migrate(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}
	return b, nil
}

// Close closes the Neo4j driver
func (b *Backend) Close(ctx context.Context) error {
	return b.driver.Close(ctx)
}

type conn struct {
	session  neo4j.SessionWithContext
	tx       neo4j.ExplicitTransaction
	readOnly bool
	done     bool
}

func (c *conn) ReadOnly() bool { return c.readOnly }

// run executes one statement in the scope transaction and collects its
// records.
func (c *conn) run(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	if c.done {
		return nil, fmt.Errorf("neo4j: %w", graph.ErrClosed)
	}
	res, err := c.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return res.Collect(ctx)
}

func asConn(c graph.Conn) *conn {
	cn, ok := c.(*conn)
	if !ok {
		panic(fmt.Sprintf("neo4j: foreign connection %T", c))
	}
	return cn
}

// Connect opens a session and begins an explicit transaction
func (b *Backend) Connect(ctx context.Context, readOnly bool) (graph.Conn, error) {
	mode := neo4j.AccessModeWrite
	if readOnly {
		mode = neo4j.AccessModeRead
	}
	session := b.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: b.database, AccessMode: mode})
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		session.Close(ctx)
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &conn{session: session, tx: tx, readOnly: readOnly}, nil
}

// Disconnect commits or rolls back and closes the session
func (b *Backend) Disconnect(ctx context.Context, gc graph.Conn, errored bool) error {
	cn := asConn(gc)
	if cn.done {
		return fmt.Errorf("neo4j: %w", graph.ErrClosed)
	}
	cn.done = true

	var txErr error
	if errored {
		txErr = cn.tx.Rollback(ctx)
	} else if txErr = cn.tx.Commit(ctx); txErr != nil {
		txErr = fmt.Errorf("committing: %w", txErr)
	}
	return errors.Join(txErr, cn.session.Close(ctx))
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

// Facet is not available: Neo4j has no application tables.
func (b *Backend) Facet(graph.Conn, string) (graph.Facet, error) {
	return nil, fmt.Errorf("neo4j facets: %w", graph.ErrNotSupported)
}

// write runs one statement in a managed transaction outside any graph scope.
func (b *Backend) write(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := b.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: b.database})
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]*neo4j.Record), nil
}

func (b *Backend) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := b.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: b.database, AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]*neo4j.Record), nil
}

// SchemaVersion returns the version stored on the schema marker vertex
func (b *Backend) SchemaVersion(ctx context.Context) (int, error) {
	records, err := b.read(ctx, `MATCH (s:GraphSchema) RETURN s.version AS version`, nil)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	v, _ := records[0].Get("version")
	n, _ := v.(int64)
	return int(n), nil
}

// Migrate creates the uniqueness constraints and lookup indexes
func (b *Backend) Migrate(ctx context.Context) error {
	current, err := b.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}
	// Schema statements cannot share a transaction with data writes.
	for _, stmt := range schemaStatements {
		if _, err := b.write(ctx, stmt, nil); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	if _, err := b.write(ctx, `MERGE (s:GraphSchema) SET s.version = $version`,
		map[string]any{"version": schemaVersion}); err != nil {
		return fmt.Errorf("setting schema version: %w", err)
	}
	b.logger.InfoContext(ctx, "neo4j schema migrated", "database", b.database, "from", current, "to", schemaVersion)
	return nil
}

var schemaStatements = []string{
	`CREATE CONSTRAINT graph_node_oid IF NOT EXISTS FOR (n:GraphNode) REQUIRE n.oid IS UNIQUE`,
	`CREATE CONSTRAINT graph_node_uuid IF NOT EXISTS FOR (n:GraphNode) REQUIRE n.uuid IS UNIQUE`,
	`CREATE INDEX graph_node_type IF NOT EXISTS FOR (n:GraphNode) ON (n.type)`,
	`CREATE INDEX graph_attr_slot IF NOT EXISTS FOR (a:Attr) ON (a.oid, a.key, a.lang)`,
	`CREATE INDEX graph_attr_value IF NOT EXISTS FOR (a:Attr) ON (a.key, a.lang, a.type, a.value)`,
	`CREATE INDEX graph_content_slot IF NOT EXISTS FOR (c:Content) ON (c.oid, c.key, c.lang)`,
	`CREATE INDEX graph_tag_slot IF NOT EXISTS FOR (t:Tag) ON (t.oid, t.tagset)`,
}

// Reset deletes every graph vertex; the schema marker is kept
func (b *Backend) Reset(ctx context.Context) error {
	_, err := b.write(ctx, `
		MATCH (n)
		WHERE n:GraphNode OR n:Attr OR n:Content OR n:Tag OR n:GraphCounter
		DETACH DELETE n
	`, nil)
	if err != nil {
		return fmt.Errorf("resetting graph: %w", err)
	}
	b.logger.WarnContext(ctx, "neo4j graph reset", "database", b.database)
	return nil
}

// Statistics counts vertices per label and nodes per type
func (b *Backend) Statistics(ctx context.Context) (*graph.Statistics, error) {
	stats := &graph.Statistics{Types: make(map[string]int64)}
	counts := []struct {
		query string
		dst   *int64
	}{
		{`MATCH (n:GraphNode) RETURN count(n) AS n`, &stats.Nodes},
		{`MATCH (n:Attr) RETURN count(n) AS n`, &stats.Attrs},
		{`MATCH (n:Content) RETURN count(n) AS n`, &stats.Contents},
		{`MATCH (n:Tag) RETURN count(n) AS n`, &stats.Tags},
		{`MATCH (:GraphNode)-[l:LINK]->(:GraphNode) RETURN count(l) AS n`, &stats.Links},
	}
	for _, c := range counts {
		records, err := b.read(ctx, c.query, nil)
		if err != nil {
			return nil, fmt.Errorf("counting: %w", err)
		}
		if len(records) > 0 {
			*c.dst = int64Of(records[0], "n")
		}
	}

	records, err := b.read(ctx, `MATCH (n:GraphNode) RETURN n.type AS type, count(n) AS n`, nil)
	if err != nil {
		return nil, fmt.Errorf("counting types: %w", err)
	}
	for _, r := range records {
		stats.Types[stringOf(r, "type")] = int64Of(r, "n")
	}
	return stats, nil
}

func int64Of(r *neo4j.Record, key string) int64 {
	v, _ := r.Get(key)
	n, _ := v.(int64)
	return n
}

func stringOf(r *neo4j.Record, key string) string {
	v, _ := r.Get(key)
	s, _ := v.(string)
	return s
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

// Neo4j properties cannot hold nested maps, so meta is kept as JSON text.
func encodeMeta(meta map[string]any) (any, error) {
	if meta == nil {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling meta: %w", err)
	}
	return string(data), nil
}

func decodeMeta(v any) (map[string]any, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(s), &meta); err != nil {
		return nil, fmt.Errorf("unmarshaling meta: %w", err)
	}
	return meta, nil
}
