package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the part of *pgxpool.Pool the Postgres gateway needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres reads and writes rows as JSON so every table shares one code path:
// row_to_json on the way out, json_populate_record on the way in.
type Postgres struct {
	db Querier
}

func NewPostgres(db Querier) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) List(ctx context.Context, table string, q Query, dst any) error {
	sql, args, err := buildSelect(table, q)
	if err != nil {
		return wrap("list", table, err)
	}
	var raw []byte
	if err := p.db.QueryRow(ctx, sql, args...).Scan(&raw); err != nil {
		return wrap("list", table, err)
	}
	return wrap("list", table, decodeInto(raw, dst))
}

func (p *Postgres) Insert(ctx context.Context, table string, rec any, dst any) error {
	sql, arg, err := buildInsert(table, rec)
	if err != nil {
		return wrap("insert", table, err)
	}
	var raw []byte
	if err := p.db.QueryRow(ctx, sql, arg).Scan(&raw); err != nil {
		return wrap("insert", table, err)
	}
	return wrap("insert", table, decodeInto(raw, dst))
}

func (p *Postgres) Update(ctx context.Context, table, id string, patch any, dst any) error {
	sql, arg, err := buildUpdate(table, patch)
	if err != nil {
		return wrap("update", table, err)
	}
	var raw []byte
	if err := p.db.QueryRow(ctx, sql, arg, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return wrap("update", table, ErrNotFound)
		}
		return wrap("update", table, err)
	}
	return wrap("update", table, decodeInto(raw, dst))
}

func (p *Postgres) Delete(ctx context.Context, table, id string) error {
	if err := checkTable(table); err != nil {
		return wrap("delete", table, err)
	}
	tag, err := p.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE "id" = $1`, ident(table)), id)
	if err != nil {
		return wrap("delete", table, err)
	}
	if tag.RowsAffected() == 0 {
		return wrap("delete", table, ErrNotFound)
	}
	return nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func buildSelect(table string, q Query) (string, []any, error) {
	if err := checkQuery(table, q); err != nil {
		return "", nil, err
	}
	var (
		where []string
		args  []any
	)
	for _, f := range q.Filters {
		args = append(args, f.Value)
		where = append(where, fmt.Sprintf("%s = $%d", ident(f.Column), len(args)))
	}
	var order []string
	for _, s := range q.Sort {
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		order = append(order, "t."+ident(s.Column)+" "+dir)
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(ident(table))
	b.WriteString(" AS t")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if len(order) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(order, ", "))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}

	agg := "json_agg(t)"
	if len(order) > 0 {
		agg = "json_agg(t ORDER BY " + strings.Join(order, ", ") + ")"
	}
	return fmt.Sprintf("SELECT coalesce(%s, '[]'::json) FROM (%s) AS t", agg, b.String()), args, nil
}

func buildInsert(table string, rec any) (string, string, error) {
	if err := checkTable(table); err != nil {
		return "", "", err
	}
	obj, err := toObject(table, rec)
	if err != nil {
		return "", "", err
	}
	cols := quotedColumns(sortedKeys(obj))
	sql := fmt.Sprintf(
		`INSERT INTO %s AS t (%s) SELECT %s FROM json_populate_record(NULL::%s, $1::json) RETURNING row_to_json(t)`,
		ident(table), cols, cols, ident(table),
	)
	arg, err := marshalObject(obj)
	return sql, arg, err
}

func buildUpdate(table string, patch any) (string, string, error) {
	if err := checkTable(table); err != nil {
		return "", "", err
	}
	obj, err := toObject(table, patch)
	if err != nil {
		return "", "", err
	}
	if _, ok := obj["id"]; ok {
		return "", "", fmt.Errorf("id cannot be updated")
	}
	cols := quotedColumns(sortedKeys(obj))
	sql := fmt.Sprintf(
		`UPDATE %s AS t SET (%s) = (SELECT %s FROM json_populate_record(NULL::%s, $1::json)) WHERE t."id" = $2 RETURNING row_to_json(t)`,
		ident(table), cols, cols, ident(table),
	)
	arg, err := marshalObject(obj)
	return sql, arg, err
}

func quotedColumns(keys []string) string {
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = ident(k)
	}
	return strings.Join(quoted, ", ")
}
