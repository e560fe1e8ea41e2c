package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process gateway for development and tests. Rows are kept as decoded
// JSON objects, so it round-trips records exactly like the remote backends do.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]map[string]any
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]map[string]any)}
}

func (m *Memory) List(ctx context.Context, table string, q Query, dst any) error {
	if err := checkQuery(table, q); err != nil {
		return wrap("list", table, err)
	}
	m.mu.RLock()
	var rows []map[string]any
	for _, row := range m.tables[table] {
		if matches(row, q.Filters) {
			rows = append(rows, row)
		}
	}
	if len(q.Sort) > 0 {
		sort.SliceStable(rows, func(i, j int) bool {
			for _, s := range q.Sort {
				c := compareValues(rows[i][s.Column], rows[j][s.Column])
				if c == 0 {
					continue
				}
				if s.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	raw, err := json.Marshal(rows)
	m.mu.RUnlock()
	if err != nil {
		return wrap("list", table, err)
	}
	return wrap("list", table, decodeInto(raw, dst))
}

func (m *Memory) Insert(ctx context.Context, table string, rec any, dst any) error {
	if err := checkTable(table); err != nil {
		return wrap("insert", table, err)
	}
	obj, err := toObject(table, rec)
	if err != nil {
		return wrap("insert", table, err)
	}
	row, err := decodeRow(obj)
	if err != nil {
		return wrap("insert", table, err)
	}
	if id, _ := row["id"].(string); id == "" {
		row["id"] = uuid.NewString()
	}

	m.mu.Lock()
	for _, existing := range m.tables[table] {
		if existing["id"] == row["id"] {
			m.mu.Unlock()
			return wrap("insert", table, fmt.Errorf("duplicate id %v", row["id"]))
		}
	}
	m.tables[table] = append(m.tables[table], row)
	raw, err := json.Marshal(row)
	m.mu.Unlock()
	if err != nil {
		return wrap("insert", table, err)
	}
	return wrap("insert", table, decodeInto(raw, dst))
}

func (m *Memory) Update(ctx context.Context, table, id string, patch any, dst any) error {
	if err := checkTable(table); err != nil {
		return wrap("update", table, err)
	}
	obj, err := toObject(table, patch)
	if err != nil {
		return wrap("update", table, err)
	}
	if _, ok := obj["id"]; ok {
		return wrap("update", table, fmt.Errorf("id cannot be updated"))
	}
	values, err := decodeRow(obj)
	if err != nil {
		return wrap("update", table, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.tables[table] {
		if row["id"] != id {
			continue
		}
		for k, v := range values {
			row[k] = v
		}
		raw, err := json.Marshal(row)
		if err != nil {
			return wrap("update", table, err)
		}
		return wrap("update", table, decodeInto(raw, dst))
	}
	return wrap("update", table, ErrNotFound)
}

func (m *Memory) Delete(ctx context.Context, table, id string) error {
	if err := checkTable(table); err != nil {
		return wrap("delete", table, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[table]
	for i, row := range rows {
		if row["id"] == id {
			m.tables[table] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return wrap("delete", table, ErrNotFound)
}

func decodeRow(obj map[string]json.RawMessage) (map[string]any, error) {
	row := make(map[string]any, len(obj))
	for k, raw := range obj {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode column %s: %w", k, err)
		}
		row[k] = v
	}
	return row, nil
}

func matches(row map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := row[f.Column]
		if !ok || v == nil {
			return false
		}
		if formatValue(v) != formatValue(f.Value) {
			return false
		}
	}
	return true
}

// compareValues orders nil first, numbers (including numeric strings such as decimal prices)
// numerically, timestamps chronologically and everything else by its text form.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	sa, sb := formatValue(a), formatValue(b)
	if ta, err := time.Parse(time.RFC3339Nano, sa); err == nil {
		if tb, err := time.Parse(time.RFC3339Nano, sb); err == nil {
			return ta.Compare(tb)
		}
	}
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

// asFloat reads v as a finite number. "NaN" and "Inf" spelled as text stay text.
func asFloat(v any) (float64, bool) {
	f, ok := parseFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	case bool:
		return 0, false
	default:
		f, err := strconv.ParseFloat(fmt.Sprint(v), 64)
		return f, err == nil
	}
}
