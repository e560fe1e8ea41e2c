package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/crypto/bcrypt"

	"sierra-preorder/flow"
	"sierra-preorder/models"
	"sierra-preorder/services"
	"sierra-preorder/store"
)

// fakeAPI records everything the bots send to Telegram.
type fakeAPI struct {
	mu       sync.Mutex
	nextID   int
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func chattableText(c tgbotapi.Chattable) string {
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		return m.Text
	case tgbotapi.EditMessageTextConfig:
		return m.Text
	case tgbotapi.PhotoConfig:
		return m.Caption
	default:
		return ""
	}
}

func (f *fakeAPI) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return chattableText(f.sent[len(f.sent)-1])
}

func (f *fakeAPI) last() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

// lastCallbackText is the toast of the most recent callback answer.
func (f *fakeAPI) lastCallbackText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if cb, ok := f.requests[i].(tgbotapi.CallbackConfig); ok {
			return cb.Text
		}
	}
	return ""
}

func command(userID int64, text string) tgbotapi.Update {
	cmd := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: userID},
		From:      &tgbotapi.User{ID: userID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func textMessage(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		Chat:      &tgbotapi.Chat{ID: userID},
		From:      &tgbotapi.User{ID: userID},
		Text:      text,
	}}
}

func callback(userID int64, chatID int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cq",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: messageID, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

type fixture struct {
	gw     *store.Memory
	menu   *services.Menu
	users  *services.Users
	orders *services.Orders
	samosa *models.MenuItem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw := store.NewMemory()
	menu := services.NewMenu(gw, nil)
	orders, err := services.NewOrders(gw, services.OrderStatusPending)
	if err != nil {
		t.Fatal(err)
	}
	samosa, err := menu.Create(context.Background(), services.MenuItemInput{
		Name: "Samosa", Description: "Crispy pastry with spiced potato", Price: "5.99", Category: models.CategoryStarters,
	})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{gw: gw, menu: menu, users: services.NewUsers(gw), orders: orders, samosa: samosa}
}

func (fx *fixture) customerBot(api sender) *Bot {
	return newBot(api, CustomerDeps{
		Menu:           fx.menu,
		Users:          fx.users,
		Orders:         fx.orders,
		Payee:          services.UPIPayee{VPA: "sierra@okbank", Name: "Sri Sierra"},
		CurrencySymbol: "£",
	})
}

func TestCustomerOrderingOverChat(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	api := &fakeAPI{}
	b := fx.customerBot(api)
	const chat = int64(42)

	b.handleUpdate(ctx, command(chat, "/menu"))
	if !strings.Contains(api.lastText(), "Share your phone number") {
		t.Fatalf("menu before login: %q", api.lastText())
	}

	b.handleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:    &tgbotapi.Chat{ID: chat},
		From:    &tgbotapi.User{ID: chat},
		Contact: &tgbotapi.Contact{PhoneNumber: "07700 900123", FirstName: "Asha", LastName: "Patel"},
	}})
	st := b.state(chat)
	if st.flow.User == nil || st.flow.User.FullName != "Asha Patel" || st.flow.Screen != flow.ScreenMenu {
		t.Fatalf("after contact: %+v", st.flow)
	}

	b.handleUpdate(ctx, callback(chat, chat, 10, categoryCallback(models.CategoryStarters)))
	if !strings.Contains(api.lastText(), "Samosa") {
		t.Errorf("starters: %q", api.lastText())
	}

	b.handleUpdate(ctx, callback(chat, chat, 11, cbAdd+fx.samosa.ID))
	b.handleUpdate(ctx, callback(chat, chat, 11, cbInc+fx.samosa.ID))
	b.handleUpdate(ctx, callback(chat, chat, 11, cbInc+fx.samosa.ID))
	b.handleUpdate(ctx, callback(chat, chat, 11, cbDec+fx.samosa.ID))
	if q := b.state(chat).flow.Cart().Quantity(fx.samosa.ID); q != 2 {
		t.Fatalf("quantity = %d, want 2", q)
	}
	if _, ok := api.last().(tgbotapi.EditMessageTextConfig); !ok {
		t.Errorf("cart change should redraw the menu, got %T", api.last())
	}

	b.handleUpdate(ctx, callback(chat, chat, 11, cbCheckout))
	if b.state(chat).flow.Screen != flow.ScreenConfirm {
		t.Fatalf("screen = %s, want confirm", b.state(chat).flow.Screen)
	}

	b.handleUpdate(ctx, textMessage(chat, "7pm"))
	if !strings.Contains(api.lastText(), "Please select a pickup time") {
		t.Errorf("bad pickup time: %q", api.lastText())
	}
	b.handleUpdate(ctx, textMessage(chat, "18:30"))
	b.handleUpdate(ctx, callback(chat, chat, 12, cbSkipNote))
	photo, ok := api.last().(tgbotapi.PhotoConfig)
	if !ok {
		t.Fatalf("payment should send a QR photo, got %T", api.last())
	}
	if !strings.Contains(photo.Caption, "£12.58") {
		t.Errorf("payment caption = %q", photo.Caption)
	}

	b.handleUpdate(ctx, textMessage(chat, "   "))
	if api.lastText() != "Please enter UPI transaction ID" {
		t.Errorf("empty ref: %q", api.lastText())
	}
	if b.state(chat).flow.Screen != flow.ScreenPayment {
		t.Fatalf("failed payment left screen %s", b.state(chat).flow.Screen)
	}

	b.handleUpdate(ctx, textMessage(chat, "UPI-4471"))
	if !strings.Contains(api.lastText(), "Your order has been placed successfully") {
		t.Errorf("success: %q", api.lastText())
	}
	st = b.state(chat)
	if st.flow.Screen != flow.ScreenMenu || !st.flow.Cart().IsEmpty() {
		t.Errorf("after order: screen %s, cart %d", st.flow.Screen, st.flow.Cart().Count())
	}

	var orders []models.Order
	if err := fx.gw.List(ctx, store.TableOrders, store.Query{}, &orders); err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 {
		t.Fatalf("%d orders stored, want 1", len(orders))
	}
	o := orders[0]
	if o.PickupTime != "18:30" || o.UPITransactionID != "UPI-4471" || o.TotalAmount.String() != "12.579" {
		t.Errorf("stored order = %+v", o)
	}

	b.handleUpdate(ctx, command(chat, "/orders"))
	if got := api.lastText(); !strings.Contains(got, "Your orders") || !strings.Contains(got, "Pending") {
		t.Errorf("history: %q", got)
	}

	o.Status = services.OrderStatusReady
	b.OrderStatusChanged(ctx, o)
	if !strings.Contains(api.lastText(), "ready for pickup at 18:30") {
		t.Errorf("status notification: %q", api.lastText())
	}
}

func TestCustomerLoginByText(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	api := &fakeAPI{}
	b := fx.customerBot(api)

	b.handleUpdate(ctx, textMessage(7, "just a name"))
	if !strings.Contains(api.lastText(), "Share your phone number") {
		t.Errorf("no comma: %q", api.lastText())
	}
	b.handleUpdate(ctx, textMessage(7, "Ravi Kumar, 07700-900555"))
	st := b.state(7)
	if st.flow.User == nil || st.flow.User.Mobile != "07700900555" {
		t.Fatalf("login by text: %+v", st.flow.User)
	}

	// Free text on the menu is a search.
	b.handleUpdate(ctx, textMessage(7, "potato"))
	if !strings.Contains(api.lastText(), "Samosa") {
		t.Errorf("search: %q", api.lastText())
	}

	b.handleUpdate(ctx, callback(7, 7, 3, cbCheckout))
	if api.lastText() != "Your cart is empty." {
		t.Errorf("empty checkout: %q", api.lastText())
	}
}

func TestStatusChangeForUnknownCustomerIsSilent(t *testing.T) {
	api := &fakeAPI{}
	b := newFixture(t).customerBot(api)
	b.OrderStatusChanged(context.Background(), models.Order{ID: "o1", UserID: "nobody", Status: services.OrderStatusReady})
	if len(api.sent) != 0 {
		t.Errorf("sent %d messages for an unknown customer", len(api.sent))
	}
}

func newAuth(t *testing.T) services.Authenticator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("kitchen"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	tokens, err := services.NewTokens("test", 0)
	if err != nil {
		t.Fatal(err)
	}
	return services.NewManagerAuthenticator("manager", string(hash), tokens, nil)
}

func (fx *fixture) managerBot(t *testing.T, api sender, notify int64) *ManagerBot {
	m := newManagerBot(api, ManagerDeps{
		Auth:           newAuth(t),
		Menu:           fx.menu,
		Orders:         fx.orders,
		Users:          fx.users,
		NotifyChatID:   notify,
		CurrencySymbol: "£",
	})
	fx.orders.AddNotifier(m)
	return m
}

func loggedIn(m *ManagerBot, userID int64) bool {
	s, _ := m.session(userID)
	return s.LoggedIn(m.now())
}

func TestManagerLogin(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	api := &fakeAPI{}
	m := fx.managerBot(t, api, 0)

	m.handleUpdate(ctx, command(5, "/orders"))
	if !strings.Contains(api.lastText(), "Please log in first") {
		t.Errorf("orders before login: %q", api.lastText())
	}
	m.handleUpdate(ctx, command(5, "/login manager wrong"))
	if api.lastText() != "Invalid username or password." {
		t.Errorf("wrong password: %q", api.lastText())
	}
	if _, ok := api.requests[len(api.requests)-1].(tgbotapi.DeleteMessageConfig); !ok {
		t.Error("login message with password was not deleted")
	}
	m.handleUpdate(ctx, command(5, "/login manager kitchen"))
	if !strings.Contains(api.lastText(), "Too many attempts") {
		t.Errorf("retry during cooldown: %q", api.lastText())
	}
	if loggedIn(m, 5) {
		t.Error("session created after rejected login")
	}
}

func TestManagerMenuCommands(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	api := &fakeAPI{}
	m := fx.managerBot(t, api, 0)

	m.handleUpdate(ctx, command(5, "/login manager kitchen"))
	if !loggedIn(m, 5) {
		t.Fatalf("login failed: %q", api.lastText())
	}

	m.handleUpdate(ctx, command(5, "/add Paneer Tikka | Grilled cottage cheese | 7.50 | Starters | veg"))
	if !strings.HasPrefix(api.lastText(), "Menu item added successfully") {
		t.Fatalf("add: %q", api.lastText())
	}
	items, err := fx.menu.List(ctx, services.MenuFilter{Search: "paneer"})
	if err != nil || len(items) != 1 || !items[0].IsVegetarian {
		t.Fatalf("added item = %+v, %v", items, err)
	}
	id := items[0].ID

	m.handleUpdate(ctx, command(5, "/add Paneer Tikka | | 7.50"))
	if api.lastText() != "Description is required." {
		t.Errorf("add without description: %q", api.lastText())
	}
	m.handleUpdate(ctx, command(5, "/add only a name"))
	if !strings.HasPrefix(api.lastText(), "Please fill in all required fields") {
		t.Errorf("malformed add: %q", api.lastText())
	}

	m.handleUpdate(ctx, command(5, "/update "+id+" | Paneer Tikka | Grilled cottage cheese | 8.25 | Starters | veg spicy"))
	if !strings.HasPrefix(api.lastText(), "Menu item updated successfully") || !strings.Contains(api.lastText(), "£8.25") {
		t.Errorf("update: %q", api.lastText())
	}

	m.handleUpdate(ctx, command(5, "/menu Starters"))
	if got := api.lastText(); !strings.Contains(got, "Paneer Tikka") || !strings.Contains(got, "Samosa") {
		t.Errorf("menu listing: %q", got)
	}

	m.handleUpdate(ctx, command(5, "/delete "+id))
	if api.lastText() != "Menu item deleted successfully" {
		t.Errorf("delete: %q", api.lastText())
	}
	m.handleUpdate(ctx, command(5, "/delete "+id))
	if api.lastText() != "Not found." {
		t.Errorf("delete again: %q", api.lastText())
	}

	m.handleUpdate(ctx, command(5, "/logout"))
	if loggedIn(m, 5) {
		t.Error("still logged in after /logout")
	}
}

func TestManagerOrderCards(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	api := &fakeAPI{}
	const kitchen = int64(-100)
	m := fx.managerBot(t, api, kitchen)

	user, err := fx.users.Login(ctx, "Asha", "07700900123")
	if err != nil {
		t.Fatal(err)
	}
	order, err := fx.orders.Create(ctx, services.CreateOrderInput{
		User:       user,
		Lines:      []models.OrderLine{{ID: fx.samosa.ID, Name: "Samosa", Price: fx.samosa.Price, Quantity: 1}},
		PickupTime: "19:00",
		PaymentRef: "UPI1",
	})
	if err != nil {
		t.Fatal(err)
	}

	card, ok := api.last().(tgbotapi.MessageConfig)
	if !ok || card.ChatID != kitchen {
		t.Fatalf("new order card = %#v", api.last())
	}
	if !strings.Contains(card.Text, "Customer: Asha (07700900123)") {
		t.Errorf("card text = %q", card.Text)
	}
	kb, ok := card.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 1 || len(kb.InlineKeyboard[0]) != 2 {
		t.Fatalf("card keyboard = %#v", card.ReplyMarkup)
	}
	accept := kb.InlineKeyboard[0][0]
	if accept.Text != "Accept" || accept.CallbackData == nil {
		t.Fatalf("first button = %+v", accept)
	}
	cardMsgID := len(api.sent)

	// Buttons need a logged in manager.
	m.handleUpdate(ctx, callback(5, kitchen, cardMsgID, *accept.CallbackData))
	if !strings.Contains(api.lastCallbackText(), "Please log in first") {
		t.Errorf("anonymous press: %q", api.lastCallbackText())
	}

	m.handleUpdate(ctx, command(5, "/login manager kitchen"))
	m.handleUpdate(ctx, callback(5, kitchen, cardMsgID, *accept.CallbackData))
	if api.lastCallbackText() != "Order confirmed successfully" {
		t.Errorf("accept toast: %q", api.lastCallbackText())
	}
	edit, ok := api.last().(tgbotapi.EditMessageTextConfig)
	if !ok || edit.MessageID != cardMsgID || !strings.Contains(edit.Text, "Status: Confirmed") {
		t.Fatalf("card refresh = %#v", api.last())
	}

	skip := services.OrderStatusCallback(order.ID, services.OrderStatusCompleted)
	m.handleUpdate(ctx, callback(5, kitchen, cardMsgID, skip))
	if api.lastCallbackText() != "Order cannot be moved from confirmed to completed." {
		t.Errorf("invalid transition toast: %q", api.lastCallbackText())
	}
	got, err := fx.orders.Get(ctx, order.ID)
	if err != nil || got.Status != services.OrderStatusConfirmed {
		t.Errorf("status after rejected move = %v, %v", got, err)
	}

	m.handleUpdate(ctx, command(5, "/orders confirmed"))
	if c, ok := api.last().(tgbotapi.MessageConfig); !ok || !strings.Contains(c.Text, "Status: Confirmed") {
		t.Errorf("order board: %#v", api.last())
	}
	m.handleUpdate(ctx, command(5, "/orders cancelled"))
	if api.lastText() != "No orders." {
		t.Errorf("empty board: %q", api.lastText())
	}

	for _, st := range []string{services.OrderStatusPreparing, services.OrderStatusReady} {
		if _, err := fx.orders.TransitionByID(ctx, order.ID, st); err != nil {
			t.Fatal(err)
		}
	}
	if n := m.trackedCards(); n != 1 {
		t.Errorf("tracked cards while open = %d, want 1", n)
	}
	if _, err := fx.orders.TransitionByID(ctx, order.ID, services.OrderStatusCompleted); err != nil {
		t.Fatal(err)
	}
	if edit, ok := api.last().(tgbotapi.EditMessageTextConfig); !ok || !strings.Contains(edit.Text, "Status: Completed") {
		t.Errorf("final card refresh = %#v", api.last())
	}
	if n := m.trackedCards(); n != 0 {
		t.Errorf("tracked cards after completion = %d, want 0", n)
	}
}

func TestManagerSessionExpires(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	api := &fakeAPI{}
	m := fx.managerBot(t, api, 0)
	now := time.Now()
	m.now = func() time.Time { return now }

	m.handleUpdate(ctx, command(5, "/login manager kitchen"))
	if !loggedIn(m, 5) {
		t.Fatalf("login failed: %q", api.lastText())
	}
	m.handleUpdate(ctx, command(5, "/menu"))
	if !strings.Contains(api.lastText(), "Samosa") {
		t.Errorf("menu while logged in: %q", api.lastText())
	}

	// newAuth issues sessions for the default 12 hours.
	now = now.Add(13 * time.Hour)
	m.handleUpdate(ctx, command(5, "/menu"))
	if api.lastText() != sessionExpiredText {
		t.Errorf("menu after expiry: %q", api.lastText())
	}
	m.handleUpdate(ctx, command(5, "/menu"))
	if api.lastText() != "Please log in first: /login username password" {
		t.Errorf("second command after expiry: %q", api.lastText())
	}

	m.handleUpdate(ctx, command(5, "/login manager kitchen"))
	if !loggedIn(m, 5) {
		t.Errorf("login after expiry failed: %q", api.lastText())
	}
}
