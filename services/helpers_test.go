package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"sierra-preorder/models"
	"sierra-preorder/store"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	butterChicken = models.MenuItem{ID: "bc", Name: "Butter Chicken", Description: "Creamy tomato curry", Price: dec("16.99"), Category: models.CategoryMains}
	samosa        = models.MenuItem{ID: "sm", Name: "Samosa", Description: "Crispy pastry with spiced potato", Price: dec("5.99"), Category: models.CategoryStarters}
	mangoLassi    = models.MenuItem{ID: "ml", Name: "Mango Lassi", Description: "Yoghurt drink", Price: dec("3.50"), Category: models.CategoryBeverages}
)

type recordingNotifier struct {
	placed  []models.Order
	changed []models.Order
}

func (r *recordingNotifier) OrderPlaced(ctx context.Context, o models.Order, u *models.User) {
	r.placed = append(r.placed, o)
}

func (r *recordingNotifier) OrderStatusChanged(ctx context.Context, o models.Order) {
	r.changed = append(r.changed, o)
}

func newTestOrders(t *testing.T, gw store.Gateway, initial string) *Orders {
	t.Helper()
	o, err := NewOrders(gw, initial)
	if err != nil {
		t.Fatalf("NewOrders: %v", err)
	}
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return o
}

func countRows(t *testing.T, gw store.Gateway, table string) int {
	t.Helper()
	var rows []map[string]any
	if err := gw.List(context.Background(), table, store.Query{}, &rows); err != nil {
		t.Fatalf("List(%s): %v", table, err)
	}
	return len(rows)
}
