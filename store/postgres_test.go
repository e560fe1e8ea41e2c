package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sierra-preorder/db"
)

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name     string
		q        Query
		wantSQL  string
		wantArgs int
	}{
		{
			name:    "plain",
			q:       Query{},
			wantSQL: `SELECT coalesce(json_agg(t), '[]'::json) FROM (SELECT * FROM "menu_items" AS t) AS t`,
		},
		{
			name: "filter sort limit",
			q: Query{
				Filters: []Filter{Eq("category", "Mains")},
				Sort:    []Sort{Asc("category"), Asc("name")},
				Limit:   10,
			},
			wantSQL: `SELECT coalesce(json_agg(t ORDER BY t."category" ASC, t."name" ASC), '[]'::json) FROM ` +
				`(SELECT * FROM "menu_items" AS t WHERE "category" = $1 ORDER BY t."category" ASC, t."name" ASC LIMIT 10) AS t`,
			wantArgs: 1,
		},
	}
	for _, tt := range tests {
		sql, args, err := buildSelect(TableMenuItems, tt.q)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if sql != tt.wantSQL {
			t.Errorf("%s:\n got %s\nwant %s", tt.name, sql, tt.wantSQL)
		}
		if len(args) != tt.wantArgs {
			t.Errorf("%s: %d args, want %d", tt.name, len(args), tt.wantArgs)
		}
	}
}

func TestBuildSelectRejectsInjection(t *testing.T) {
	q := Query{Sort: []Sort{Desc(`name"; DROP TABLE users; --`)}}
	if _, _, err := buildSelect(TableMenuItems, q); err == nil {
		t.Error("want error for unknown sort column")
	}
	if _, _, err := buildSelect(`menu_items"--`, Query{}); err == nil {
		t.Error("want error for unknown table")
	}
}

func TestBuildInsert(t *testing.T) {
	rec := map[string]any{"full_name": "Asha", "mobile": "07700900123"}
	sql, arg, err := buildInsert(TableUsers, rec)
	if err != nil {
		t.Fatal(err)
	}
	want := `INSERT INTO "users" AS t ("full_name", "mobile") SELECT "full_name", "mobile" FROM json_populate_record(NULL::"users", $1::json) RETURNING row_to_json(t)`
	if sql != want {
		t.Errorf("sql:\n got %s\nwant %s", sql, want)
	}
	if arg != `{"full_name":"Asha","mobile":"07700900123"}` {
		t.Errorf("arg = %s", arg)
	}
}

func TestBuildUpdate(t *testing.T) {
	sql, arg, err := buildUpdate(TableOrders, map[string]string{"status": "confirmed"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(sql, `UPDATE "orders" AS t SET ("status") = (SELECT "status" FROM json_populate_record(NULL::"orders", $1::json))`) {
		t.Errorf("sql = %s", sql)
	}
	if !strings.Contains(sql, `WHERE t."id" = $2`) {
		t.Errorf("sql missing id predicate: %s", sql)
	}
	if arg != `{"status":"confirmed"}` {
		t.Errorf("arg = %s", arg)
	}
	if _, _, err := buildUpdate(TableOrders, map[string]string{"id": "x"}); err == nil {
		t.Error("patching id: want error")
	}
	if _, _, err := buildUpdate(TableOrders, map[string]string{"total": "1"}); err == nil {
		t.Error("unknown column: want error")
	}
}

// Integration test against a live database. Skips when db.Pool is nil or in -short mode.
func TestPostgres_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	if db.Pool == nil {
		t.Skip("skipping postgres integration test: no DB pool")
	}
	ctx := context.Background()
	pg := NewPostgres(db.Pool)

	var u struct {
		ID       string `json:"id"`
		FullName string `json:"full_name"`
	}
	mobile := "it-" + time.Now().Format("150405.000")
	if err := pg.Insert(ctx, TableUsers, map[string]any{"full_name": "Integration", "mobile": mobile}, &u); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected generated id")
	}
	if err := pg.Update(ctx, TableUsers, u.ID, map[string]any{"full_name": "Renamed"}, &u); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if u.FullName != "Renamed" {
		t.Errorf("full_name = %s, want Renamed", u.FullName)
	}
	if err := pg.Delete(ctx, TableUsers, u.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := pg.Delete(ctx, TableUsers, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}
