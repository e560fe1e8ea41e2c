package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderLine is a snapshot of a menu item taken at checkout. Later menu edits never touch it.
type OrderLine struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Order is a row from the orders table.
type Order struct {
	ID               string          `json:"id,omitempty"`
	UserID           string          `json:"user_id"`
	Items            []OrderLine     `json:"items"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PickupTime       string          `json:"pickup_time"`
	KitchenNote      string          `json:"kitchen_note"`
	UPITransactionID string          `json:"upi_transaction_id"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}

// OrderWithUser is an order joined with the customer who placed it (manager views).
type OrderWithUser struct {
	Order
	User *User `json:"user,omitempty"`
}
