// Package store is the data store gateway: generic record access over the
// menu_items, users and orders tables. It holds no business rules.
package store

import (
	"context"
	"errors"
	"fmt"
)

const (
	TableMenuItems = "menu_items"
	TableUsers     = "users"
	TableOrders    = "orders"
)

// columns lists the writable and filterable columns per table. Anything else is rejected
// before it reaches SQL or a query string.
var columns = map[string][]string{
	TableMenuItems: {"id", "name", "description", "price", "category", "image_url", "rating", "is_bestseller", "is_vegetarian", "is_spicy"},
	TableUsers:     {"id", "full_name", "mobile", "created_at"},
	TableOrders:    {"id", "user_id", "items", "total_amount", "pickup_time", "kitchen_note", "upi_transaction_id", "status", "created_at"},
}

// ErrNotFound is wrapped by Update and Delete when no record has the given id.
var ErrNotFound = errors.New("record not found")

// Error is returned by every gateway operation that fails; Err carries the cause.
type Error struct {
	Op    string
	Table string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Table: table, Err: err}
}

// Filter is an equality condition on one column.
type Filter struct {
	Column string
	Value  any
}

func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

type Sort struct {
	Column string
	Desc   bool
}

func Asc(column string) Sort  { return Sort{Column: column} }
func Desc(column string) Sort { return Sort{Column: column, Desc: true} }

// Query narrows a List call. Filters are ANDed; Limit 0 means no limit.
type Query struct {
	Filters []Filter
	Sort    []Sort
	Limit   int
}

// Gateway is the persistence contract consumed by the services. Records travel as
// JSON-shaped values: rec/patch are marshalled, results are unmarshalled into dst.
type Gateway interface {
	List(ctx context.Context, table string, q Query, dst any) error
	Insert(ctx context.Context, table string, rec any, dst any) error
	Update(ctx context.Context, table, id string, patch any, dst any) error
	Delete(ctx context.Context, table, id string) error
}

func checkTable(table string) error {
	if _, ok := columns[table]; !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}

func checkColumn(table, column string) error {
	for _, c := range columns[table] {
		if c == column {
			return nil
		}
	}
	return fmt.Errorf("unknown column %s.%s", table, column)
}

func checkQuery(table string, q Query) error {
	if err := checkTable(table); err != nil {
		return err
	}
	for _, f := range q.Filters {
		if err := checkColumn(table, f.Column); err != nil {
			return err
		}
	}
	for _, s := range q.Sort {
		if err := checkColumn(table, s.Column); err != nil {
			return err
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	return nil
}
