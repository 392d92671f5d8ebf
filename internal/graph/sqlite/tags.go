package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/systemshift/nodegraph/internal/graph"
)

type tagAccessor struct {
	conn   *conn
	tagset string
}

func (a *tagAccessor) Tag(ctx context.Context, oid graph.OID, tags ...string) error {
	db, err := a.conn.q()
	if err != nil {
		return err
	}
	for _, tag := range tags {
		if _, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO tags (oid, tagset, tag) VALUES (?, ?, ?)`,
			oid, a.tagset, tag); err != nil {
			return fmt.Errorf("tagging %s: %w", a.tagset, err)
		}
	}
	return nil
}

func (a *tagAccessor) Untag(ctx context.Context, oid graph.OID, tags ...string) error {
	db, err := a.conn.q()
	if err != nil {
		return err
	}
	for _, tag := range tags {
		if _, err := db.ExecContext(ctx,
			`DELETE FROM tags WHERE oid = ? AND tagset = ? AND tag = ?`,
			oid, a.tagset, tag); err != nil {
			return fmt.Errorf("untagging %s: %w", a.tagset, err)
		}
	}
	return nil
}

func (a *tagAccessor) Tags(ctx context.Context, oid graph.OID) ([]string, error) {
	db, err := a.conn.q()
	if err != nil {
		return nil, err
	}
	return queryStrings(ctx, db, `SELECT tag FROM tags WHERE oid = ? AND tagset = ? ORDER BY tag`, oid, a.tagset)
}

func (a *tagAccessor) IsTagged(ctx context.Context, oid graph.OID, tags ...string) (bool, error) {
	distinct := dedupe(tags)
	if len(distinct) == 0 {
		return false, nil
	}
	db, err := a.conn.q()
	if err != nil {
		return false, err
	}
	args := []any{oid, a.tagset}
	for _, t := range distinct {
		args = append(args, t)
	}
	query := `SELECT COUNT(*) FROM tags WHERE oid = ? AND tagset = ? AND tag IN (` +
		strings.TrimSuffix(strings.Repeat("?,", len(distinct)), ",") + `)`
	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n == len(distinct), nil
}

func dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
