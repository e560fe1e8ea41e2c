package services

import (
	"fmt"
	"strings"

	"sierra-preorder/models"
)

// OrderCardButton is one inline button (text + callback_data or url).
type OrderCardButton struct {
	Text         string
	CallbackData string
	URL          string // if set, use as URL button instead of callback
}

// OrderCardContent is the text and optional inline keyboard for an order card.
type OrderCardContent struct {
	Text    string
	Buttons [][]OrderCardButton
}

// StatusAction is a manager action that moves an order to Status.
type StatusAction struct {
	Status string `json:"status"`
	Label  string `json:"label"`
}

const orderStatusCallbackPrefix = "order_status:"

func StatusLabel(status string) string {
	switch status {
	case OrderStatusPending:
		return "Pending"
	case OrderStatusConfirmed:
		return "Confirmed"
	case OrderStatusPreparing:
		return "Preparing"
	case OrderStatusReady:
		return "Ready for pickup"
	case OrderStatusCompleted:
		return "Completed"
	case OrderStatusCancelled:
		return "Cancelled"
	default:
		return status
	}
}

func actionLabel(target string) string {
	switch target {
	case OrderStatusConfirmed:
		return "Accept"
	case OrderStatusPreparing:
		return "Start preparing"
	case OrderStatusReady:
		return "Mark ready"
	case OrderStatusCompleted:
		return "Complete"
	case OrderStatusCancelled:
		return "Cancel"
	default:
		return target
	}
}

// ManagerActions lists the buttons a manager sees for an order in status.
func ManagerActions(status string) []StatusAction {
	var out []StatusAction
	for _, next := range AllowedNext(status) {
		out = append(out, StatusAction{Status: next, Label: actionLabel(next)})
	}
	return out
}

// StatusChangedMessage is shown to the manager after a successful transition.
func StatusChangedMessage(status string) string {
	return fmt.Sprintf("Order %s successfully", status)
}

func OrderStatusCallback(orderID, status string) string {
	return orderStatusCallbackPrefix + orderID + ":" + status
}

// ParseOrderStatusCallback splits "order_status:<id>:<status>".
func ParseOrderStatusCallback(data string) (orderID, status string, ok bool) {
	rest, found := strings.CutPrefix(data, orderStatusCallbackPrefix)
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// ShortOrderID is the prefix of an order id used in chat messages.
func ShortOrderID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeLines(b *strings.Builder, items []models.OrderLine, symbol string) {
	for _, l := range items {
		fmt.Fprintf(b, "%d x %s  %s\n", l.Quantity, l.Name, FormatMoney(symbol, l.Price))
	}
}

// BuildManagerCard returns the card text and next-status buttons for the manager.
func BuildManagerCard(o models.OrderWithUser, symbol string) OrderCardContent {
	var b strings.Builder
	fmt.Fprintf(&b, "Order #%s\n", ShortOrderID(o.ID))
	if o.User != nil {
		fmt.Fprintf(&b, "Customer: %s (%s)\n", o.User.FullName, o.User.Mobile)
	}
	fmt.Fprintf(&b, "Pickup: %s\n\n", o.PickupTime)
	writeLines(&b, o.Items, symbol)
	fmt.Fprintf(&b, "\nTotal: %s\n", FormatMoney(symbol, o.TotalAmount))
	fmt.Fprintf(&b, "UPI ref: %s\n", o.UPITransactionID)
	if o.KitchenNote != "" {
		fmt.Fprintf(&b, "Note: %s\n", o.KitchenNote)
	}
	fmt.Fprintf(&b, "Status: %s", StatusLabel(o.Status))

	var buttons [][]OrderCardButton
	var row []OrderCardButton
	for _, a := range ManagerActions(o.Status) {
		row = append(row, OrderCardButton{Text: a.Label, CallbackData: OrderStatusCallback(o.ID, a.Status)})
	}
	if len(row) > 0 {
		buttons = append(buttons, row)
	}
	return OrderCardContent{Text: b.String(), Buttons: buttons}
}

// BuildCustomerCard returns the order summary shown to the customer. It has no buttons.
func BuildCustomerCard(o models.Order, symbol string) OrderCardContent {
	var b strings.Builder
	fmt.Fprintf(&b, "Order #%s\n\n", ShortOrderID(o.ID))
	writeLines(&b, o.Items, symbol)
	fmt.Fprintf(&b, "\nTotal: %s\n", FormatMoney(symbol, o.TotalAmount))
	fmt.Fprintf(&b, "Pickup time: %s\n", o.PickupTime)
	fmt.Fprintf(&b, "Status: %s", StatusLabel(o.Status))
	return OrderCardContent{Text: b.String()}
}

// CustomerMessageForOrderStatus is the notification a customer receives when the
// kitchen moves their order. Empty when the status needs no message.
func CustomerMessageForOrderStatus(o models.Order, symbol string) string {
	id := ShortOrderID(o.ID)
	switch o.Status {
	case OrderStatusConfirmed:
		return fmt.Sprintf("Your order #%s (%s) has been confirmed.", id, FormatMoney(symbol, o.TotalAmount))
	case OrderStatusPreparing:
		return fmt.Sprintf("Your order #%s is being prepared.", id)
	case OrderStatusReady:
		return fmt.Sprintf("Your order #%s is ready for pickup at %s.", id, o.PickupTime)
	case OrderStatusCompleted:
		return fmt.Sprintf("Order #%s completed. Thank you!", id)
	case OrderStatusCancelled:
		return fmt.Sprintf("Sorry, your order #%s has been cancelled.", id)
	default:
		return ""
	}
}
