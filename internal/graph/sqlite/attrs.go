package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/systemshift/nodegraph/internal/graph"
)

type attrAccessor struct {
	conn      *conn
	key, lang string
}

func (a *attrAccessor) Get(ctx context.Context, oid graph.OID, want graph.AttrType) (graph.Value, error) {
	db, err := a.conn.q()
	if err != nil {
		return nil, err
	}
	var typ string
	var raw any
	err = db.QueryRowContext(ctx,
		`SELECT type, value FROM attrs WHERE oid = ? AND key = ? AND lang = ?`,
		oid, a.key, a.lang).Scan(&typ, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading attribute %s: %w", a.key, err)
	}
	return graph.Decode(graph.AttrType(typ), raw, want)
}

func (a *attrAccessor) Set(ctx context.Context, oid graph.OID, value graph.Value) error {
	db, err := a.conn.q()
	if err != nil {
		return err
	}
	typ, raw := graph.Encode(value)
	_, err = db.ExecContext(ctx, `
		INSERT INTO attrs (oid, key, lang, type, value) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (oid, key, lang) DO UPDATE SET type = excluded.type, value = excluded.value
	`, oid, a.key, a.lang, string(typ), raw)
	if err != nil {
		return fmt.Errorf("writing attribute %s: %w", a.key, err)
	}
	return nil
}

func (a *attrAccessor) Unset(ctx context.Context, oid graph.OID) error {
	db, err := a.conn.q()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM attrs WHERE oid = ? AND key = ? AND lang = ?`, oid, a.key, a.lang)
	return err
}

func (a *attrAccessor) Has(ctx context.Context, oid graph.OID) (bool, error) {
	db, err := a.conn.q()
	if err != nil {
		return false, err
	}
	var n int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attrs WHERE oid = ? AND key = ? AND lang = ?`,
		oid, a.key, a.lang).Scan(&n)
	return n > 0, err
}

func (a *attrAccessor) Nodes(ctx context.Context, value graph.Value) ([]graph.OID, error) {
	db, err := a.conn.q()
	if err != nil {
		return nil, err
	}
	typ, raw := graph.Encode(value)
	return queryOIDs(ctx, db,
		`SELECT oid FROM attrs WHERE key = ? AND lang = ? AND type = ? AND value = ? ORDER BY oid`,
		a.key, a.lang, string(typ), raw)
}
