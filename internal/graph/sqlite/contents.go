package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/systemshift/nodegraph/internal/graph"
)

type contentAccessor struct {
	conn      *conn
	key, lang string
}

func (a *contentAccessor) Content(ctx context.Context, oid graph.OID) (*graph.Content, error) {
	db, err := a.conn.q()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `
		SELECT id, key, lang, sha256, size, mimetype, mtime, meta
		FROM contents
		WHERE oid = ? AND key = ? AND lang = ?
	`, oid, a.key, a.lang)
	c, err := scanContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading content %s: %w", a.key, err)
	}
	return c, nil
}

// Store upserts the reference; the record id is kept across updates
func (a *contentAccessor) Store(ctx context.Context, oid graph.OID, sha256 string, size int64, mimetype string, meta map[string]any) (*graph.Content, error) {
	db, err := a.conn.q()
	if err != nil {
		return nil, err
	}
	metaJSON, err := encodeMeta(meta)
	if err != nil {
		return nil, err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO contents (oid, key, lang, sha256, size, mimetype, mtime, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (oid, key, lang) DO UPDATE SET
			sha256 = excluded.sha256,
			size = excluded.size,
			mimetype = excluded.mimetype,
			mtime = excluded.mtime,
			meta = excluded.meta
	`, oid, a.key, a.lang, sha256, size, mimetype, formatTime(time.Now()), metaJSON)
	if err != nil {
		return nil, fmt.Errorf("storing content %s: %w", a.key, err)
	}
	return a.Content(ctx, oid)
}
