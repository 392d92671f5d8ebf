package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/systemshift/nodegraph/internal/graph"
)

type linkAccessor struct {
	conn *conn
	key  string
}

func (a *linkAccessor) Link(ctx context.Context, oid graph.OID, target graph.OID, meta map[string]any) error {
	db, err := a.conn.q()
	if err != nil {
		return err
	}
	metaJSON, err := encodeMeta(meta)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO links (oid, key, target, meta) VALUES (?, ?, ?, ?)
		ON CONFLICT (oid, key) DO UPDATE SET target = excluded.target, meta = excluded.meta
	`, oid, a.key, target, metaJSON)
	if err != nil {
		return fmt.Errorf("linking %d -[%s]-> %d: %w", oid, a.key, target, err)
	}
	return nil
}

func (a *linkAccessor) Unlink(ctx context.Context, oid graph.OID) error {
	db, err := a.conn.q()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM links WHERE oid = ? AND key = ?`, oid, a.key)
	return err
}

func (a *linkAccessor) Target(ctx context.Context, oid graph.OID) (graph.OID, bool, error) {
	db, err := a.conn.q()
	if err != nil {
		return 0, false, err
	}
	var target graph.OID
	err = db.QueryRowContext(ctx, `SELECT target FROM links WHERE oid = ? AND key = ?`, oid, a.key).Scan(&target)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return target, true, nil
}

func (a *linkAccessor) Sources(ctx context.Context, target graph.OID) ([]graph.OID, error) {
	db, err := a.conn.q()
	if err != nil {
		return nil, err
	}
	return queryOIDs(ctx, db, `SELECT oid FROM links WHERE target = ? AND key = ? ORDER BY oid`, target, a.key)
}

func (a *linkAccessor) Has(ctx context.Context, oid graph.OID) (bool, error) {
	_, ok, err := a.Target(ctx, oid)
	return ok, err
}
