package flow

import (
	"context"
	"strings"
	"time"

	"sierra-preorder/models"
	"sierra-preorder/services"
)

type MenuEditor interface {
	Create(ctx context.Context, in services.MenuItemInput) (*models.MenuItem, error)
	Update(ctx context.Context, id string, in services.MenuItemInput) (*models.MenuItem, error)
	Delete(ctx context.Context, id string) error
}

type OrderTransitioner interface {
	TransitionByID(ctx context.Context, id, target string) (*models.Order, error)
}

// allStatuses disables the order status filter.
const allStatuses = "All"

// Manager is the manager flow: login, then menu management or the order board.
type Manager struct {
	Screen       Screen
	Session      *services.Session
	MenuCategory string
	MenuSearch   string
	OrderStatus  string
	OrderSearch  string
	Success      string
	Error        string
}

func NewManager() Manager {
	return Manager{Screen: ScreenLogin, MenuCategory: services.CategoryAll, OrderStatus: allStatuses}
}

func (m Manager) fail(err error) (Manager, error) {
	m.Success = ""
	m.Error = services.UserMessage(err)
	return m, err
}

func (m Manager) ok(success string) Manager {
	m.Error = ""
	m.Success = success
	return m
}

// LoggedIn reports whether the manager holds a session that has not expired at now.
func (m Manager) LoggedIn(now time.Time) bool {
	return m.Session != nil && now.Before(m.Session.ExpiresAt)
}

// Expired reports whether the manager logged in and the session has since run out.
func (m Manager) Expired(now time.Time) bool {
	return m.Session != nil && !now.Before(m.Session.ExpiresAt)
}

func (m Manager) Login(ctx context.Context, auth services.Authenticator, c services.Credentials) (Manager, error) {
	sess, err := auth.Authenticate(ctx, c)
	if err != nil {
		return m.fail(err)
	}
	m = m.ok("")
	m.Session = sess
	m.Screen = ScreenMenu
	return m, nil
}

func (m Manager) Logout() Manager {
	return NewManager()
}

func (m Manager) ShowMenu() (Manager, error) {
	if m.Session == nil {
		return m.fail(wrongScreen("menu", m.Screen))
	}
	m.Screen = ScreenMenu
	return m.ok(""), nil
}

func (m Manager) ShowOrders() (Manager, error) {
	if m.Session == nil {
		return m.fail(wrongScreen("orders", m.Screen))
	}
	m.Screen = ScreenOrders
	return m.ok(""), nil
}

func (m Manager) FilterMenu(category, search string) Manager {
	if category == "" {
		category = services.CategoryAll
	}
	m.MenuCategory = category
	m.MenuSearch = strings.TrimSpace(search)
	return m
}

func (m Manager) FilterOrders(status, search string) Manager {
	if status == "" {
		status = allStatuses
	}
	m.OrderStatus = status
	m.OrderSearch = strings.TrimSpace(search)
	return m
}

func (m Manager) MenuFilter() services.MenuFilter {
	return services.MenuFilter{Category: m.MenuCategory, Search: m.MenuSearch}
}

func (m Manager) OrderFilter() services.OrderFilter {
	return services.OrderFilter{Status: m.OrderStatus, Search: m.OrderSearch}
}

func (m Manager) requireScreen(action string, s Screen) error {
	if m.Session == nil || m.Screen != s {
		return wrongScreen(action, m.Screen)
	}
	return nil
}

func (m Manager) AddItem(ctx context.Context, menu MenuEditor, in services.MenuItemInput) (Manager, *models.MenuItem, error) {
	if err := m.requireScreen("add item", ScreenMenu); err != nil {
		m, err = m.fail(err)
		return m, nil, err
	}
	item, err := menu.Create(ctx, in)
	if err != nil {
		m, err = m.fail(err)
		return m, nil, err
	}
	return m.ok("Menu item added successfully"), item, nil
}

func (m Manager) UpdateItem(ctx context.Context, menu MenuEditor, id string, in services.MenuItemInput) (Manager, *models.MenuItem, error) {
	if err := m.requireScreen("update item", ScreenMenu); err != nil {
		m, err = m.fail(err)
		return m, nil, err
	}
	item, err := menu.Update(ctx, id, in)
	if err != nil {
		m, err = m.fail(err)
		return m, nil, err
	}
	return m.ok("Menu item updated successfully"), item, nil
}

func (m Manager) DeleteItem(ctx context.Context, menu MenuEditor, id string) (Manager, error) {
	if err := m.requireScreen("delete item", ScreenMenu); err != nil {
		return m.fail(err)
	}
	if err := menu.Delete(ctx, id); err != nil {
		return m.fail(err)
	}
	return m.ok("Menu item deleted successfully"), nil
}

// ApplyTransition moves an order on the order board.
func (m Manager) ApplyTransition(ctx context.Context, orders OrderTransitioner, orderID, status string) (Manager, *models.Order, error) {
	if err := m.requireScreen("update order", ScreenOrders); err != nil {
		m, err = m.fail(err)
		return m, nil, err
	}
	o, err := orders.TransitionByID(ctx, orderID, status)
	if err != nil {
		m, err = m.fail(err)
		return m, nil, err
	}
	return m.ok(services.StatusChangedMessage(o.Status)), o, nil
}
