package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/systemshift/nodegraph/internal/graph"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdent(s string) bool {
	return identRe.MatchString(s)
}

// facet maps onto an application table with an oid column.
type facet struct {
	conn  *conn
	table string
}

func sortedColumns(values map[string]any) ([]string, error) {
	cols := make([]string, 0, len(values))
	for col := range values {
		if !validIdent(col) || col == "oid" {
			return nil, fmt.Errorf("invalid facet column %q", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols, nil
}

func (f *facet) Insert(ctx context.Context, oid graph.OID, values map[string]any) error {
	db, err := f.conn.q()
	if err != nil {
		return err
	}
	cols, err := sortedColumns(values)
	if err != nil {
		return err
	}
	args := []any{oid}
	for _, c := range cols {
		args = append(args, values[c])
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		f.table,
		strings.Join(append([]string{"oid"}, cols...), ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)+1), ", "))
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting into facet %s: %w", f.table, err)
	}
	return nil
}

func (f *facet) Update(ctx context.Context, oid graph.OID, values map[string]any) error {
	db, err := f.conn.q()
	if err != nil {
		return err
	}
	cols, err := sortedColumns(values)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, values[c])
	}
	args = append(args, oid)
	res, err := db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s WHERE oid = ?`, f.table, strings.Join(sets, ", ")), args...)
	if err != nil {
		return fmt.Errorf("updating facet %s: %w", f.table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &graph.NotFoundError{OID: oid}
	}
	return nil
}

func (f *facet) Select(ctx context.Context, oid graph.OID, cols ...string) ([]any, error) {
	db, err := f.conn.q()
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errors.New("facet select needs at least one column")
	}
	for _, c := range cols {
		if !validIdent(c) {
			return nil, fmt.Errorf("invalid facet column %q", c)
		}
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	err = db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE oid = ?`, strings.Join(cols, ", "), f.table), oid).Scan(ptrs...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &graph.NotFoundError{OID: oid}
	}
	if err != nil {
		return nil, fmt.Errorf("selecting from facet %s: %w", f.table, err)
	}
	return vals, nil
}
