// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// ErrConflict is returned when an insert violates a unique constraint.
var ErrConflict = errors.New("record already exists")

// Kind declares how an entity type maps to its table: table name, key column,
// and an explicit column/accessor list. No runtime reflection is involved; the
// accessors return values (and scan destinations) in Cols order, key first.
type Kind[T any] struct {
	Table   string
	Key     string
	AutoKey bool // Key is database-assigned; omitted on insert and backfilled
	Cols    []string
	Values  func(*T) []any
	Dest    func(*T) []any
	SetKey  func(*T, int64)
}

// Repo is a generic repository over one entity kind.
type Repo[T any] struct {
	db   *sql.DB
	kind Kind[T]
}

// NewRepo creates a repository for the given kind.
func NewRepo[T any](db *sql.DB, kind Kind[T]) *Repo[T] {
	return &Repo[T]{db: db, kind: kind}
}

func (r *Repo[T]) selectClause() string {
	return `SELECT "` + strings.Join(r.kind.Cols, `", "`) + `" FROM "` + r.kind.Table + `"`
}

func (r *Repo[T]) scanRows(rows *sql.Rows) ([]*T, error) {
	defer rows.Close()

	var out []*T
	for rows.Next() {
		rec := new(T)
		if err := rows.Scan(r.kind.Dest(rec)...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.kind.Table, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FindAll returns every record of this kind.
func (r *Repo[T]) FindAll(ctx context.Context) ([]*T, error) {
	rows, err := r.db.QueryContext(ctx, r.selectClause())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.kind.Table, err)
	}
	return r.scanRows(rows)
}

// FindByKey returns the record with the given primary key, or nil when absent.
func (r *Repo[T]) FindByKey(ctx context.Context, key any) (*T, error) {
	rows, err := r.db.QueryContext(ctx, r.selectClause()+` WHERE "`+r.kind.Key+`" = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("query %s by key: %w", r.kind.Table, err)
	}
	recs, err := r.scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// FindBy returns records matching every column=value pair (equality AND).
func (r *Repo[T]) FindBy(ctx context.Context, where map[string]any) ([]*T, error) {
	if len(where) == 0 {
		return r.FindAll(ctx)
	}

	// Deterministic clause order keeps queries stable across runs.
	cols := make([]string, 0, len(where))
	for col := range where {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	clauses := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		clauses = append(clauses, `"`+col+`" = ?`)
		args = append(args, where[col])
	}

	rows, err := r.db.QueryContext(ctx, r.selectClause()+" WHERE "+strings.Join(clauses, " AND "), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.kind.Table, err)
	}
	return r.scanRows(rows)
}

// Insert adds records in a single transaction. A unique violation on any
// record aborts the batch and returns ErrConflict.
func (r *Repo[T]) Insert(ctx context.Context, recs ...*T) error {
	if len(recs) == 0 {
		return nil
	}

	cols := r.kind.Cols
	if r.kind.AutoKey {
		cols = cols[1:]
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt := `INSERT INTO "` + r.kind.Table + `" ("` + strings.Join(cols, `", "`) + `") VALUES (` + placeholders + `)`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		vals := r.kind.Values(rec)
		if r.kind.AutoKey {
			vals = vals[1:]
		}
		res, err := tx.ExecContext(ctx, stmt, vals...)
		if err != nil {
			var serr sqlite3.Error
			if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
				return fmt.Errorf("%w in %s", ErrConflict, r.kind.Table)
			}
			return fmt.Errorf("insert %s: %w", r.kind.Table, err)
		}
		if r.kind.AutoKey && r.kind.SetKey != nil {
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("insert %s id: %w", r.kind.Table, err)
			}
			r.kind.SetKey(rec, id)
		}
	}

	return tx.Commit()
}

// Update rewrites records by primary key in a single transaction.
func (r *Repo[T]) Update(ctx context.Context, recs ...*T) error {
	if len(recs) == 0 {
		return nil
	}

	sets := make([]string, 0, len(r.kind.Cols)-1)
	for _, col := range r.kind.Cols {
		if col == r.kind.Key {
			continue
		}
		sets = append(sets, `"`+col+`" = ?`)
	}
	stmt := `UPDATE "` + r.kind.Table + `" SET ` + strings.Join(sets, ", ") + ` WHERE "` + r.kind.Key + `" = ?`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		vals := r.kind.Values(rec)
		key := vals[0]
		args := append(vals[1:], key)
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("update %s: %w", r.kind.Table, err)
		}
	}

	return tx.Commit()
}

// Delete removes records by primary key in a single transaction.
func (r *Repo[T]) Delete(ctx context.Context, recs ...*T) error {
	if len(recs) == 0 {
		return nil
	}

	stmt := `DELETE FROM "` + r.kind.Table + `" WHERE "` + r.kind.Key + `" = ?`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		if _, err := tx.ExecContext(ctx, stmt, r.kind.Values(rec)[0]); err != nil {
			return fmt.Errorf("delete %s: %w", r.kind.Table, err)
		}
	}

	return tx.Commit()
}
