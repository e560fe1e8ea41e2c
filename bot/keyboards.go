package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"sierra-preorder/models"
	"sierra-preorder/services"
)

// sender is the part of *tgbotapi.BotAPI the bots use to talk to Telegram.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Callback data. Categories are sent by index because names contain spaces and "&".
const (
	cbCategories = "cats"
	cbCategory   = "cat:"
	cbAdd        = "add:"
	cbInc        = "inc:"
	cbDec        = "dec:"
	cbCheckout   = "checkout"
	cbSkipNote   = "skip_note"
	cbBack       = "back"
	cbNoop       = "noop"
)

// categoryOptions is "All" followed by the fixed categories.
func categoryOptions() []string {
	return append([]string{services.CategoryAll}, models.Categories...)
}

func categoryCallback(category string) string {
	for i, c := range categoryOptions() {
		if c == category {
			return cbCategory + strconv.Itoa(i)
		}
	}
	return cbCategory + "0"
}

func categoryFromCallback(data string) (string, bool) {
	rest, found := strings.CutPrefix(data, cbCategory)
	if !found {
		return "", false
	}
	i, err := strconv.Atoi(rest)
	opts := categoryOptions()
	if err != nil || i < 0 || i >= len(opts) {
		return "", false
	}
	return opts[i], true
}

// cardMarkup converts OrderCardContent.Buttons to Telegram inline keyboard (URL vs callback).
func cardMarkup(c services.OrderCardContent) *tgbotapi.InlineKeyboardMarkup {
	if len(c.Buttons) == 0 {
		return nil
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range c.Buttons {
		var btns []tgbotapi.InlineKeyboardButton
		for _, btn := range row {
			if btn.URL != "" {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
			} else {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.CallbackData))
			}
		}
		rows = append(rows, btns)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// categoryKeyboard lays the categories out two per row, marking the selected one.
func categoryKeyboard(selected string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, c := range categoryOptions() {
		label := c
		if c == selected {
			label = "• " + c
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, categoryCallback(c)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// menuKeyboard lists items with their price. Items already in the cart get a -/+ row.
func menuKeyboard(items []models.MenuItem, cart *services.Cart, symbol string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, item := range items {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s  %s", item.Name, services.FormatMoney(symbol, item.Price)),
				cbAdd+item.ID,
			),
		))
		if qty := cart.Quantity(item.ID); qty > 0 {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("−", cbDec+item.ID),
				tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(qty), cbNoop),
				tgbotapi.NewInlineKeyboardButtonData("+", cbInc+item.ID),
			))
		}
	}
	if !cart.IsEmpty() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🛒 Checkout (%s)", services.FormatMoney(symbol, cart.Total())),
				cbCheckout,
			),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Categories", cbCategories),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func itemBadges(item models.MenuItem) string {
	var tags []string
	if item.IsBestseller {
		tags = append(tags, "bestseller")
	}
	if item.IsVegetarian {
		tags = append(tags, "veg")
	}
	if item.IsSpicy {
		tags = append(tags, "spicy")
	}
	if len(tags) == 0 {
		return ""
	}
	return " [" + strings.Join(tags, ", ") + "]"
}

// menuText is the message above the menu keyboard.
func menuText(category, search string, items []models.MenuItem, cart *services.Cart, symbol string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", category)
	if search != "" {
		fmt.Fprintf(&b, " (search: %q)", search)
	}
	b.WriteString("\n\n")
	if len(items) == 0 {
		b.WriteString("No dishes found.\n")
	}
	for _, item := range items {
		fmt.Fprintf(&b, "%s%s\n%s\n\n", item.Name, itemBadges(item), item.Description)
	}
	if !cart.IsEmpty() {
		b.WriteString(cartText(cart, symbol))
	}
	return strings.TrimRight(b.String(), "\n")
}

// cartText renders cart lines and totals. Amounts are rounded for display only.
func cartText(cart *services.Cart, symbol string) string {
	if cart.IsEmpty() {
		return "Your cart is empty."
	}
	var b strings.Builder
	b.WriteString("🛒 Cart:\n")
	for _, l := range cart.Lines() {
		fmt.Fprintf(&b, "• %s × %d  %s\n", l.Item.Name, l.Quantity,
			services.FormatMoney(symbol, l.Item.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))))
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\n", services.FormatMoney(symbol, cart.Subtotal()))
	fmt.Fprintf(&b, "Tax (5%%): %s\n", services.FormatMoney(symbol, cart.Tax()))
	fmt.Fprintf(&b, "Total: %s", services.FormatMoney(symbol, cart.Total()))
	return b.String()
}

// parsePickupTime accepts a 24-hour "HH:MM" and returns it zero padded.
func parsePickupTime(s string) (string, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return t.Format("15:04"), true
}

// parseNameAndMobile splits "Full Name, mobile" at the last comma.
func parseNameAndMobile(s string) (name, mobile string, ok bool) {
	i := strings.LastIndex(s, ",")
	if i < 0 {
		return "", "", false
	}
	name = strings.TrimSpace(s[:i])
	mobile = strings.TrimSpace(s[i+1:])
	return name, mobile, name != "" && mobile != ""
}

func contactName(c *tgbotapi.Contact) string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// parseItemInput reads "Name | Description | Price | Category | flags" where flags is an
// optional space separated list of bestseller, veg and spicy.
func parseItemInput(s string) (services.MenuItemInput, bool) {
	parts := strings.Split(s, "|")
	if len(parts) < 3 || len(parts) > 5 {
		return services.MenuItemInput{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	in := services.MenuItemInput{Name: parts[0], Description: parts[1], Price: parts[2]}
	if len(parts) > 3 {
		in.Category = parts[3]
	}
	if len(parts) > 4 {
		for _, f := range strings.Fields(strings.ToLower(parts[4])) {
			switch f {
			case "bestseller":
				in.IsBestseller = true
			case "veg", "vegetarian":
				in.IsVegetarian = true
			case "spicy":
				in.IsSpicy = true
			default:
				return services.MenuItemInput{}, false
			}
		}
	}
	return in, true
}

// orderHistoryText lists a customer's orders, newest first.
func orderHistoryText(orders []models.Order, symbol string) string {
	if len(orders) == 0 {
		return "You have no orders yet."
	}
	var b strings.Builder
	b.WriteString("Your orders:\n\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "#%s · %s · %s · pickup %s · %s\n",
			services.ShortOrderID(o.ID),
			services.StatusLabel(o.Status),
			services.FormatMoney(symbol, o.TotalAmount),
			o.PickupTime,
			o.CreatedAt.Format("2006-01-02"),
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

// managerMenuText lists items with full ids so they can be used with /update and /delete.
func managerMenuText(items []models.MenuItem, symbol string) string {
	if len(items) == 0 {
		return "No menu items."
	}
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "%s · %s · %s%s\nid: %s\n\n", item.Category, item.Name,
			services.FormatMoney(symbol, item.Price), itemBadges(item), item.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}
