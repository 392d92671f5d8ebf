package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/systemshift/nodegraph/internal/graph"
)

type nodeAccessor struct {
	conn *conn
}

// All yields (oid, type) pairs in oid order. Rows are read up front so
// the caller may issue further queries while iterating.
func (a *nodeAccessor) All(ctx context.Context) iter.Seq2[graph.NodeRef, error] {
	return func(yield func(graph.NodeRef, error) bool) {
		db, err := a.conn.q()
		if err != nil {
			yield(graph.NodeRef{}, err)
			return
		}
		rows, err := db.QueryContext(ctx, `SELECT oid, type FROM nodes ORDER BY oid`)
		if err != nil {
			yield(graph.NodeRef{}, fmt.Errorf("listing nodes: %w", err))
			return
		}
		var refs []graph.NodeRef
		for rows.Next() {
			var ref graph.NodeRef
			if err := rows.Scan(&ref.OID, &ref.Type); err != nil {
				rows.Close()
				yield(graph.NodeRef{}, err)
				return
			}
			refs = append(refs, ref)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			yield(graph.NodeRef{}, err)
			return
		}
		for _, ref := range refs {
			if !yield(ref, nil) {
				return
			}
		}
	}
}

// List yields the oids of one type in oid order
func (a *nodeAccessor) List(ctx context.Context, typeName string) iter.Seq2[graph.OID, error] {
	return func(yield func(graph.OID, error) bool) {
		db, err := a.conn.q()
		if err != nil {
			yield(0, err)
			return
		}
		oids, err := queryOIDs(ctx, db, `SELECT oid FROM nodes WHERE type = ? ORDER BY oid`, typeName)
		if err != nil {
			yield(0, fmt.Errorf("listing %s nodes: %w", typeName, err))
			return
		}
		for _, oid := range oids {
			if !yield(oid, nil) {
				return
			}
		}
	}
}

// New inserts a node with a fresh uuid
func (a *nodeAccessor) New(ctx context.Context, typeName string) (graph.OID, error) {
	db, err := a.conn.q()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO nodes (uuid, type, created_at) VALUES (?, ?, ?)`,
		graph.NewUUID(), typeName, formatTime(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("inserting node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return graph.OID(id), nil
}

func (a *nodeAccessor) UUIDToOID(ctx context.Context, uuid string) (graph.OID, bool, error) {
	db, err := a.conn.q()
	if err != nil {
		return 0, false, err
	}
	var oid graph.OID
	err = db.QueryRowContext(ctx, `SELECT oid FROM nodes WHERE uuid = ?`, uuid).Scan(&oid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return oid, true, nil
}

// Delete removes the node row and every row that refers to it
func (a *nodeAccessor) Delete(ctx context.Context, oid graph.OID) error {
	db, err := a.conn.q()
	if err != nil {
		return err
	}
	stmts := []string{
		`DELETE FROM links WHERE oid = ?1 OR target = ?1`,
		`DELETE FROM tags WHERE oid = ?1`,
		`DELETE FROM contents WHERE oid = ?1`,
		`DELETE FROM attrs WHERE oid = ?1`,
		`DELETE FROM nodes WHERE oid = ?1`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt, oid); err != nil {
			return fmt.Errorf("deleting node %d: %w", oid, err)
		}
	}
	return nil
}

func (a *nodeAccessor) UUID(ctx context.Context, oid graph.OID) (string, error) {
	var uuid string
	if err := a.column(ctx, oid, "uuid", &uuid); err != nil {
		return "", err
	}
	return uuid, nil
}

func (a *nodeAccessor) Type(ctx context.Context, oid graph.OID) (string, bool, error) {
	var typ string
	err := a.column(ctx, oid, "type", &typ)
	if graph.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return typ, true, nil
}

func (a *nodeAccessor) CTime(ctx context.Context, oid graph.OID) (time.Time, error) {
	var created string
	if err := a.column(ctx, oid, "created_at", &created); err != nil {
		return time.Time{}, err
	}
	return parseTime(created)
}

// column reads one fixed column of the node row.
func (a *nodeAccessor) column(ctx context.Context, oid graph.OID, col string, dst any) error {
	db, err := a.conn.q()
	if err != nil {
		return err
	}
	err = db.QueryRowContext(ctx, `SELECT `+col+` FROM nodes WHERE oid = ?`, oid).Scan(dst)
	if errors.Is(err, sql.ErrNoRows) {
		return &graph.NotFoundError{OID: oid}
	}
	return err
}

func (a *nodeAccessor) Attributes(ctx context.Context, oid graph.OID) ([]graph.AttrKey, error) {
	db, err := a.conn.q()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT key, lang FROM attrs WHERE oid = ? ORDER BY key, lang`, oid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []graph.AttrKey
	for rows.Next() {
		var k graph.AttrKey
		if err := rows.Scan(&k.Key, &k.Lang); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (a *nodeAccessor) Contents(ctx context.Context, oid graph.OID) ([]*graph.Content, error) {
	db, err := a.conn.q()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, key, lang, sha256, size, mimetype, mtime, meta
		FROM contents
		WHERE oid = ?
		ORDER BY key, lang
	`, oid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*graph.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (a *nodeAccessor) Tagsets(ctx context.Context, oid graph.OID) ([]string, error) {
	db, err := a.conn.q()
	if err != nil {
		return nil, err
	}
	return queryStrings(ctx, db, `SELECT DISTINCT tagset FROM tags WHERE oid = ? ORDER BY tagset`, oid)
}

func (a *nodeAccessor) Links(ctx context.Context, oid graph.OID) ([]*graph.Link, error) {
	db, err := a.conn.q()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT key, target, meta FROM links WHERE oid = ? ORDER BY key`, oid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*graph.Link
	for rows.Next() {
		var l graph.Link
		var meta sql.NullString
		if err := rows.Scan(&l.Key, &l.Target, &meta); err != nil {
			return nil, err
		}
		if l.Meta, err = decodeMeta(meta); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanContent(s scanner) (*graph.Content, error) {
	var c graph.Content
	var mtime string
	var meta sql.NullString
	if err := s.Scan(&c.ID, &c.Key, &c.Lang, &c.SHA256, &c.Size, &c.MimeType, &mtime, &meta); err != nil {
		return nil, err
	}
	var err error
	if c.MTime, err = parseTime(mtime); err != nil {
		return nil, err
	}
	if c.Meta, err = decodeMeta(meta); err != nil {
		return nil, err
	}
	return &c, nil
}

func queryOIDs(ctx context.Context, db *sql.Conn, query string, args ...any) ([]graph.OID, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	oids := []graph.OID{}
	for rows.Next() {
		var oid graph.OID
		if err := rows.Scan(&oid); err != nil {
			return nil, err
		}
		oids = append(oids, oid)
	}
	return oids, rows.Err()
}

func queryStrings(ctx context.Context, db *sql.Conn, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func encodeMeta(meta map[string]any) (sql.NullString, error) {
	if meta == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshaling meta: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeMeta(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(s.String), &meta); err != nil {
		return nil, fmt.Errorf("unmarshaling meta: %w", err)
	}
	return meta, nil
}
