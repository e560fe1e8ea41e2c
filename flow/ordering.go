// Package flow holds the customer and manager screen flows as plain values. Every
// transition is a method that returns the next value; the receiver is never modified,
// so HTTP handlers and bots can keep, compare and replay states freely.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sierra-preorder/models"
	"sierra-preorder/services"
)

type Screen string

const (
	ScreenLogin   Screen = "login"
	ScreenMenu    Screen = "menu"
	ScreenConfirm Screen = "confirm"
	ScreenPayment Screen = "payment"
	ScreenSuccess Screen = "success"
	ScreenOrders  Screen = "orders"
)

// ErrWrongScreen is returned when an action is not available on the current screen.
var ErrWrongScreen = errors.New("action not available on this screen")

func wrongScreen(action string, s Screen) error {
	return fmt.Errorf("%w: %s on %s", ErrWrongScreen, action, s)
}

type UserRegistry interface {
	Login(ctx context.Context, fullName, mobile string) (*models.User, error)
}

type OrderCreator interface {
	Create(ctx context.Context, in services.CreateOrderInput) (*models.Order, error)
}

// Ordering is the customer flow: login, menu and cart, pickup details, payment, success.
type Ordering struct {
	Screen      Screen
	User        *models.User
	Category    string
	Search      string
	PickupTime  string
	KitchenNote string
	PaymentRef  string
	Order       *models.Order
	Error       string

	cart *services.Cart
}

func NewOrdering() Ordering {
	return Ordering{Screen: ScreenLogin, Category: services.CategoryAll, cart: &services.Cart{}}
}

func (o Ordering) fail(err error) (Ordering, error) {
	o.Error = services.UserMessage(err)
	return o, err
}

func (o Ordering) clean() Ordering {
	o.Error = ""
	return o
}

// Cart returns a copy of the cart; changing it does not affect o.
func (o Ordering) Cart() *services.Cart {
	if o.cart == nil {
		return &services.Cart{}
	}
	return o.cart.Clone()
}

func (o Ordering) Totals() services.Totals {
	return services.PriceLines(o.Cart().Snapshot())
}

// Login registers the customer (or renames an existing mobile) and opens the menu.
func (o Ordering) Login(ctx context.Context, users UserRegistry, fullName, mobile string) (Ordering, error) {
	if o.Screen != ScreenLogin {
		return o.fail(wrongScreen("login", o.Screen))
	}
	u, err := users.Login(ctx, fullName, mobile)
	if err != nil {
		return o.fail(err)
	}
	o = o.clean()
	o.User = u
	o.Screen = ScreenMenu
	return o, nil
}

func (o Ordering) SelectCategory(category string) Ordering {
	if category == "" {
		category = services.CategoryAll
	}
	o.Category = category
	return o
}

func (o Ordering) SetSearch(q string) Ordering {
	o.Search = strings.TrimSpace(q)
	return o
}

func (o Ordering) MenuFilter() services.MenuFilter {
	return services.MenuFilter{Category: o.Category, Search: o.Search}
}

// VisibleItems applies the current category and search to menu.
func (o Ordering) VisibleItems(menu []models.MenuItem) []models.MenuItem {
	return services.FilterMenu(menu, o.MenuFilter())
}

func (o Ordering) AddItem(item models.MenuItem) Ordering {
	c := o.Cart()
	c.AddItem(item)
	o.cart = c
	return o.clean()
}

func (o Ordering) SetQuantity(itemID string, qty int) Ordering {
	c := o.Cart()
	c.SetQuantity(itemID, qty)
	o.cart = c
	return o.clean()
}

// Checkout moves from the menu to the pickup details screen. The cart must not be empty.
func (o Ordering) Checkout() (Ordering, error) {
	if o.Screen != ScreenMenu {
		return o.fail(wrongScreen("checkout", o.Screen))
	}
	if o.Cart().IsEmpty() {
		return o.fail(&services.ValidationError{Field: "items", Message: "Your cart is empty."})
	}
	o = o.clean()
	o.Screen = ScreenConfirm
	return o, nil
}

// ConfirmDetails records the pickup time and note and opens the payment screen.
func (o Ordering) ConfirmDetails(pickupTime, note string) (Ordering, error) {
	if o.Screen != ScreenConfirm {
		return o.fail(wrongScreen("confirm", o.Screen))
	}
	o.PickupTime = strings.TrimSpace(pickupTime)
	o.KitchenNote = strings.TrimSpace(note)
	if o.PickupTime == "" {
		return o.fail(&services.ValidationError{Field: "pickup_time", Message: "Please select a pickup time"})
	}
	o = o.clean()
	o.Screen = ScreenPayment
	return o, nil
}

// Back returns to the previous screen. Login and success have no previous screen.
func (o Ordering) Back() Ordering {
	switch o.Screen {
	case ScreenConfirm, ScreenOrders:
		o.Screen = ScreenMenu
	case ScreenPayment:
		o.Screen = ScreenConfirm
	}
	return o.clean()
}

// Pay places the order with the customer's UPI transaction reference.
// On failure the flow stays on the payment screen with the cart intact.
func (o Ordering) Pay(ctx context.Context, orders OrderCreator, paymentRef string) (Ordering, error) {
	if o.Screen != ScreenPayment {
		return o.fail(wrongScreen("pay", o.Screen))
	}
	o.PaymentRef = strings.TrimSpace(paymentRef)
	order, err := orders.Create(ctx, services.CreateOrderInput{
		User:        o.User,
		Lines:       o.Cart().Snapshot(),
		PickupTime:  o.PickupTime,
		KitchenNote: o.KitchenNote,
		PaymentRef:  o.PaymentRef,
	})
	if err != nil {
		return o.fail(err)
	}
	o = o.clean()
	o.Order = order
	o.cart = &services.Cart{}
	o.Screen = ScreenSuccess
	return o, nil
}

// ShowOrders opens the customer's order history.
func (o Ordering) ShowOrders() (Ordering, error) {
	if o.User == nil {
		return o.fail(wrongScreen("orders", o.Screen))
	}
	o = o.clean()
	o.Screen = ScreenOrders
	return o, nil
}

// Reset starts a new order for the same customer.
func (o Ordering) Reset() Ordering {
	if o.User == nil {
		return NewOrdering()
	}
	next := NewOrdering()
	next.User = o.User
	next.Screen = ScreenMenu
	return next
}

// SuccessMessage is shown once the order is placed.
func (o Ordering) SuccessMessage() string {
	if o.Screen != ScreenSuccess {
		return ""
	}
	return "Your order has been placed successfully. You'll receive an SMS with pickup details shortly."
}
