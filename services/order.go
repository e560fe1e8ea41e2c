package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"sierra-preorder/models"
	"sierra-preorder/store"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// OrderStatuses lists every status in workflow order.
var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

var orderTransitions = map[string][]string{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusReady},
	OrderStatusReady:     {OrderStatusCompleted},
}

// AllowedNext returns the statuses an order in status from may move to.
func AllowedNext(from string) []string {
	next := orderTransitions[from]
	out := make([]string, len(next))
	copy(out, next)
	return out
}

// ValidStatusTransition reports whether from -> to is allowed.
func ValidStatusTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminalStatus(status string) bool {
	return status == OrderStatusCompleted || status == OrderStatusCancelled
}

// ParseOrderStatus normalizes s and checks it is a known status.
func ParseOrderStatus(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, st := range OrderStatuses {
		if st == s {
			return s, true
		}
	}
	return "", false
}

// OrderNotifier is told about new orders and status changes. Notifiers run synchronously
// on the caller's goroutine after the write succeeds, so a slow notifier delays the caller.
// Failures are the notifier's to log; they never undo or fail the write.
type OrderNotifier interface {
	OrderPlaced(ctx context.Context, o models.Order, u *models.User)
	OrderStatusChanged(ctx context.Context, o models.Order)
}

// Orders is the order lifecycle controller.
type Orders struct {
	store         store.Gateway
	initialStatus string
	now           func() time.Time
	notifiers     []OrderNotifier
}

// NewOrders returns a controller that creates orders in initialStatus, which must be
// pending or confirmed.
func NewOrders(gw store.Gateway, initialStatus string) (*Orders, error) {
	st, err := checkInitialStatus(initialStatus)
	if err != nil {
		return nil, err
	}
	return &Orders{store: gw, initialStatus: st, now: time.Now}, nil
}

func checkInitialStatus(s string) (string, error) {
	st, _ := ParseOrderStatus(s)
	if st != OrderStatusPending && st != OrderStatusConfirmed {
		return "", invalid("status", fmt.Sprintf("initial status must be %s or %s, got %q", OrderStatusPending, OrderStatusConfirmed, s))
	}
	return st, nil
}

func (o *Orders) InitialStatus() string { return o.initialStatus }

// AddNotifier registers n; it is called after every successful create or transition.
func (o *Orders) AddNotifier(n OrderNotifier) {
	o.notifiers = append(o.notifiers, n)
}

type CreateOrderInput struct {
	User        *models.User
	Lines       []models.OrderLine
	PickupTime  string
	KitchenNote string
	PaymentRef  string
	// InitialStatus overrides the configured initial status when set.
	InitialStatus string
}

// Create validates the input, prices the snapshot and persists the order.
func (o *Orders) Create(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if in.User == nil || in.User.ID == "" {
		return nil, invalid("user", "Please log in before placing an order.")
	}
	if len(in.Lines) == 0 {
		return nil, invalid("items", "Your cart is empty.")
	}
	for _, l := range in.Lines {
		if l.Quantity <= 0 {
			return nil, invalid("items", fmt.Sprintf("Invalid quantity for %s.", l.Name))
		}
		if l.Price.IsNegative() {
			return nil, invalid("items", fmt.Sprintf("Invalid price for %s.", l.Name))
		}
	}
	pickup := strings.TrimSpace(in.PickupTime)
	if pickup == "" {
		return nil, invalid("pickup_time", "Please select a pickup time")
	}
	ref := strings.TrimSpace(in.PaymentRef)
	if ref == "" {
		return nil, invalid("upi_transaction_id", "Please enter UPI transaction ID")
	}
	status := o.initialStatus
	if in.InitialStatus != "" {
		st, err := checkInitialStatus(in.InitialStatus)
		if err != nil {
			return nil, err
		}
		status = st
	}

	lines := make([]models.OrderLine, len(in.Lines))
	copy(lines, in.Lines)
	rec := models.Order{
		UserID:           in.User.ID,
		Items:            lines,
		TotalAmount:      PriceLines(lines).Total,
		PickupTime:       pickup,
		KitchenNote:      strings.TrimSpace(in.KitchenNote),
		UPITransactionID: ref,
		Status:           status,
		CreatedAt:        o.now().UTC(),
	}
	var created models.Order
	if err := o.store.Insert(ctx, store.TableOrders, rec, &created); err != nil {
		return nil, err
	}
	for _, n := range o.notifiers {
		n.OrderPlaced(ctx, created, in.User)
	}
	return &created, nil
}

// Transition moves order to target. On failure order is left as it was.
// Only the status column is written.
func (o *Orders) Transition(ctx context.Context, order *models.Order, target string) (*models.Order, error) {
	if !ValidStatusTransition(order.Status, target) {
		return nil, &InvalidTransitionError{From: order.Status, To: target}
	}
	var updated models.Order
	if err := o.store.Update(ctx, store.TableOrders, order.ID, map[string]string{"status": target}, &updated); err != nil {
		return nil, notFound(err)
	}
	for _, n := range o.notifiers {
		n.OrderStatusChanged(ctx, updated)
	}
	return &updated, nil
}

// TransitionByID loads the order and applies Transition.
func (o *Orders) TransitionByID(ctx context.Context, id, target string) (*models.Order, error) {
	order, err := o.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return o.Transition(ctx, order, target)
}

func (o *Orders) Get(ctx context.Context, id string) (*models.Order, error) {
	var rows []models.Order
	q := store.Query{Filters: []store.Filter{store.Eq("id", id)}, Limit: 1}
	if err := o.store.List(ctx, store.TableOrders, q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return &rows[0], nil
}

// ListForUser returns a customer's orders, newest first.
func (o *Orders) ListForUser(ctx context.Context, userID string) ([]models.Order, error) {
	var rows []models.Order
	q := store.Query{
		Filters: []store.Filter{store.Eq("user_id", userID)},
		Sort:    []store.Sort{store.Desc("created_at")},
	}
	if err := o.store.List(ctx, store.TableOrders, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// OrderFilter narrows the manager order list. Status "" or "All" means any status;
// Search matches the customer name, mobile or order id.
type OrderFilter struct {
	Status string
	Search string
}

// List returns orders newest first, each joined with its customer.
func (o *Orders) List(ctx context.Context, f OrderFilter) ([]models.OrderWithUser, error) {
	q := store.Query{Sort: []store.Sort{store.Desc("created_at")}}
	if f.Status != "" && !strings.EqualFold(f.Status, "all") {
		st, ok := ParseOrderStatus(f.Status)
		if !ok {
			return nil, invalid("status", fmt.Sprintf("Unknown status %q.", f.Status))
		}
		q.Filters = append(q.Filters, store.Eq("status", st))
	}
	var rows []models.Order
	if err := o.store.List(ctx, store.TableOrders, q, &rows); err != nil {
		return nil, err
	}

	users, err := usersByID(ctx, o.store, orderUserIDs(rows))
	if err != nil {
		return nil, err
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.OrderWithUser, 0, len(rows))
	for _, r := range rows {
		row := models.OrderWithUser{Order: r, User: users[r.UserID]}
		if search != "" && !orderMatches(row, search) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func orderMatches(o models.OrderWithUser, search string) bool {
	if strings.Contains(strings.ToLower(o.ID), search) {
		return true
	}
	if o.User == nil {
		return false
	}
	return strings.Contains(strings.ToLower(o.User.FullName), search) ||
		strings.Contains(strings.ToLower(o.User.Mobile), search)
}

func orderUserIDs(rows []models.Order) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range rows {
		if r.UserID != "" && !seen[r.UserID] {
			seen[r.UserID] = true
			ids = append(ids, r.UserID)
		}
	}
	sort.Strings(ids)
	return ids
}
