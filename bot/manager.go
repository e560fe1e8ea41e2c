package bot

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sierra-preorder/flow"
	"sierra-preorder/logger"
	"sierra-preorder/models"
	"sierra-preorder/services"
)

type MenuManager interface {
	flow.MenuEditor
	List(ctx context.Context, f services.MenuFilter) ([]models.MenuItem, error)
}

type OrderBoard interface {
	flow.OrderTransitioner
	List(ctx context.Context, f services.OrderFilter) ([]models.OrderWithUser, error)
}

type UserLookup interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

type ManagerDeps struct {
	Auth   services.Authenticator
	Menu   MenuManager
	Orders OrderBoard
	Users  UserLookup
	// NotifyChatID receives a card for every new order. Zero disables it.
	NotifyChatID   int64
	CurrencySymbol string
	Log            *logger.Logger
}

// cardPointer is the message currently showing an order's card.
type cardPointer struct {
	chatID    int64
	messageID int
}

// ManagerBot is the kitchen bot (MESSAGE_TOKEN): order cards with status buttons and
// menu commands. Sessions are per Telegram user and live in memory.
type ManagerBot struct {
	api    sender
	poll   *tgbotapi.BotAPI
	auth   services.Authenticator
	menu   MenuManager
	orders OrderBoard
	users  UserLookup
	notify int64
	symbol string
	log    *logger.Logger
	now    func() time.Time

	sessions   map[int64]flow.Manager
	sessionsMu sync.Mutex

	cards   map[string]cardPointer
	cardsMu sync.Mutex

	orderLocks [orderLockStripes]sync.Mutex
}

// orderLockStripes bounds the card locks; orders sharing a stripe just serialize.
const orderLockStripes = 64

const sessionExpiredText = "Your session has expired. Please log in again: /login username password"

func NewManagerBot(token string, d ManagerDeps) (*ManagerBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	m := newManagerBot(api, d)
	m.poll = api
	return m, nil
}

func newManagerBot(api sender, d ManagerDeps) *ManagerBot {
	if d.Log == nil {
		d.Log = logger.Discard()
	}
	return &ManagerBot{
		api:      api,
		auth:     d.Auth,
		menu:     d.Menu,
		orders:   d.Orders,
		users:    d.Users,
		notify:   d.NotifyChatID,
		symbol:   d.CurrencySymbol,
		log:      d.Log.With("bot", "manager"),
		now:      time.Now,
		sessions: make(map[int64]flow.Manager),
		cards:    make(map[string]cardPointer),
	}
}

// session returns the user's flow. An expired session is dropped and reported.
func (m *ManagerBot) session(userID int64) (s flow.Manager, expired bool) {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return flow.NewManager(), false
	}
	if s.Expired(m.now()) {
		delete(m.sessions, userID)
		return flow.NewManager(), true
	}
	return s, false
}

func (m *ManagerBot) setSession(userID int64, s flow.Manager) {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	if !s.LoggedIn(m.now()) {
		delete(m.sessions, userID)
		return
	}
	m.sessions[userID] = s
}

func (m *ManagerBot) setBotCommands() error {
	cfg := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "login", Description: "Log in: /login username password"},
		tgbotapi.BotCommand{Command: "orders", Description: "Order board: /orders [status]"},
		tgbotapi.BotCommand{Command: "menu", Description: "Menu items: /menu [category]"},
		tgbotapi.BotCommand{Command: "add", Description: "Add an item"},
		tgbotapi.BotCommand{Command: "update", Description: "Update an item"},
		tgbotapi.BotCommand{Command: "delete", Description: "Delete an item"},
		tgbotapi.BotCommand{Command: "logout", Description: "Log out"},
	)
	_, err := m.api.Request(cfg)
	return err
}

// Start polls for updates until ctx is done.
func (m *ManagerBot) Start(ctx context.Context) {
	if err := m.setBotCommands(); err != nil {
		m.log.Warn("set_commands", "could not register bot commands", "error", err.Error())
	}
	if m.poll == nil {
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := m.poll.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			m.poll.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			m.handleUpdate(ctx, update)
		}
	}
}

func (m *ManagerBot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		m.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Chat != nil && update.Message.From != nil && update.Message.IsCommand():
		m.handleCommand(ctx, update.Message)
	}
}

func (m *ManagerBot) send(chatID int64, text string) {
	if _, err := m.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		m.log.Error("send_failed", "send message", err, "chat_id", chatID)
	}
}

const managerHelp = `Commands:
/login username password
/orders [status]  (All, pending, confirmed, preparing, ready, completed, cancelled)
/menu [category]
/add Name | Description | Price | Category | bestseller veg spicy
/update id | Name | Description | Price | Category | flags
/delete id
/logout`

func (m *ManagerBot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID, userID := msg.Chat.ID, msg.From.ID
	args := strings.TrimSpace(msg.CommandArguments())
	s, expired := m.session(userID)

	switch msg.Command() {
	case "start", "help":
		m.send(chatID, managerHelp)
		return
	case "login":
		// The password should not stay in the chat history.
		if _, err := m.api.Request(tgbotapi.NewDeleteMessage(chatID, msg.MessageID)); err != nil {
			m.log.Warn("delete_failed", "could not delete login message", "chat_id", chatID, "error", err.Error())
		}
		m.login(ctx, chatID, userID, s, args)
		return
	case "logout":
		m.setSession(userID, s.Logout())
		m.send(chatID, "Logged out.")
		return
	}

	if expired {
		m.log.Info("manager_session_expired", "manager session expired", "user_id", userID)
		m.send(chatID, sessionExpiredText)
		return
	}
	if !s.LoggedIn(m.now()) {
		m.send(chatID, "Please log in first: /login username password")
		return
	}
	switch msg.Command() {
	case "orders":
		m.showOrders(ctx, chatID, userID, s, args)
	case "menu":
		m.showMenu(ctx, chatID, userID, s, args)
	case "add":
		m.addItem(ctx, chatID, userID, s, args)
	case "update":
		m.updateItem(ctx, chatID, userID, s, args)
	case "delete":
		m.deleteItem(ctx, chatID, userID, s, args)
	default:
		m.send(chatID, managerHelp)
	}
}

func (m *ManagerBot) login(ctx context.Context, chatID, userID int64, s flow.Manager, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		m.send(chatID, "Please fill in all required fields: /login username password")
		return
	}
	next, err := s.Login(ctx, m.auth, services.Credentials{Username: fields[0], Password: fields[1]})
	if err != nil {
		m.log.Warn("manager_login_failed", "manager login rejected", "user_id", userID, "username", fields[0])
		m.send(chatID, next.Error)
		return
	}
	m.setSession(userID, next)
	m.log.Info("manager_login", "manager logged in", "user_id", userID, "username", next.Session.Subject)
	m.send(chatID, "Logged in. Use /orders for the order board or /menu to manage dishes.")
}

func (m *ManagerBot) showOrders(ctx context.Context, chatID, userID int64, s flow.Manager, status string) {
	next, err := s.ShowOrders()
	if err != nil {
		m.send(chatID, next.Error)
		return
	}
	next = next.FilterOrders(status, "")
	orders, err := m.orders.List(ctx, next.OrderFilter())
	if err != nil {
		m.send(chatID, services.UserMessage(err))
		return
	}
	m.setSession(userID, next)
	if len(orders) == 0 {
		m.send(chatID, "No orders.")
		return
	}
	for _, o := range orders {
		m.sendCard(o, chatID)
	}
}

func (m *ManagerBot) showMenu(ctx context.Context, chatID, userID int64, s flow.Manager, category string) {
	next, err := s.ShowMenu()
	if err != nil {
		m.send(chatID, next.Error)
		return
	}
	next = next.FilterMenu(category, "")
	items, err := m.menu.List(ctx, next.MenuFilter())
	if err != nil {
		m.send(chatID, services.UserMessage(err))
		return
	}
	m.setSession(userID, next)
	m.send(chatID, managerMenuText(items, m.symbol))
}

func (m *ManagerBot) addItem(ctx context.Context, chatID, userID int64, s flow.Manager, args string) {
	in, ok := parseItemInput(args)
	if !ok {
		m.send(chatID, "Please fill in all required fields: /add Name | Description | Price | Category")
		return
	}
	s, _ = s.ShowMenu()
	next, item, err := s.AddItem(ctx, m.menu, in)
	m.setSession(userID, next)
	if err != nil {
		m.send(chatID, next.Error)
		return
	}
	m.log.Info("menu_item_added", "menu item added", "item_id", item.ID, "user_id", userID)
	m.send(chatID, next.Success+"\n"+managerMenuText([]models.MenuItem{*item}, m.symbol))
}

func (m *ManagerBot) updateItem(ctx context.Context, chatID, userID int64, s flow.Manager, args string) {
	id, rest, found := strings.Cut(args, "|")
	id = strings.TrimSpace(id)
	in, ok := parseItemInput(rest)
	if !found || id == "" || !ok {
		m.send(chatID, "Please fill in all required fields: /update id | Name | Description | Price | Category")
		return
	}
	s, _ = s.ShowMenu()
	next, item, err := s.UpdateItem(ctx, m.menu, id, in)
	m.setSession(userID, next)
	if err != nil {
		m.send(chatID, next.Error)
		return
	}
	m.log.Info("menu_item_updated", "menu item updated", "item_id", item.ID, "user_id", userID)
	m.send(chatID, next.Success+"\n"+managerMenuText([]models.MenuItem{*item}, m.symbol))
}

func (m *ManagerBot) deleteItem(ctx context.Context, chatID, userID int64, s flow.Manager, id string) {
	if id == "" {
		m.send(chatID, "Please fill in all required fields: /delete id")
		return
	}
	s, _ = s.ShowMenu()
	next, err := s.DeleteItem(ctx, m.menu, id)
	m.setSession(userID, next)
	if err != nil {
		m.send(chatID, next.Error)
		return
	}
	m.log.Info("menu_item_deleted", "menu item deleted", "item_id", id, "user_id", userID)
	m.send(chatID, next.Success)
}

// AnswerCallbackQuery sends a short toast for the callback (no new message).
func (m *ManagerBot) AnswerCallbackQuery(callbackQueryID, text string) {
	if _, err := m.api.Request(tgbotapi.NewCallback(callbackQueryID, text)); err != nil {
		m.log.Warn("callback_answer", "could not answer callback", "error", err.Error())
	}
}

func (m *ManagerBot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	orderID, status, ok := services.ParseOrderStatusCallback(cq.Data)
	if !ok || cq.From == nil {
		m.AnswerCallbackQuery(cq.ID, "")
		return
	}
	s, expired := m.session(cq.From.ID)
	if expired {
		m.AnswerCallbackQuery(cq.ID, sessionExpiredText)
		return
	}
	if !s.LoggedIn(m.now()) {
		m.AnswerCallbackQuery(cq.ID, "Please log in first: /login username password")
		return
	}
	// The pressed card becomes the one that is kept up to date.
	if cq.Message != nil && cq.Message.Chat != nil {
		m.setCard(orderID, cardPointer{chatID: cq.Message.Chat.ID, messageID: cq.Message.MessageID})
	}
	s, _ = s.ShowOrders()
	next, order, err := s.ApplyTransition(ctx, m.orders, orderID, status)
	m.setSession(cq.From.ID, next)
	if err != nil {
		m.AnswerCallbackQuery(cq.ID, next.Error)
		return
	}
	m.log.Info("order_status_changed", "order moved", "order_id", order.ID, "status", order.Status, "user_id", cq.From.ID)
	m.AnswerCallbackQuery(cq.ID, next.Success)
}

func (m *ManagerBot) card(orderID string) (cardPointer, bool) {
	m.cardsMu.Lock()
	defer m.cardsMu.Unlock()
	p, ok := m.cards[orderID]
	return p, ok
}

func (m *ManagerBot) setCard(orderID string, p cardPointer) {
	m.cardsMu.Lock()
	defer m.cardsMu.Unlock()
	m.cards[orderID] = p
}

// lockOrder locks by orderID and returns an unlock function. Used to prevent concurrent edits of the same order card.
func (m *ManagerBot) lockOrder(orderID string) func() {
	h := fnv.New32a()
	h.Write([]byte(orderID))
	mu := &m.orderLocks[h.Sum32()%orderLockStripes]
	mu.Lock()
	return mu.Unlock
}

func (m *ManagerBot) dropCard(orderID string) {
	m.cardsMu.Lock()
	defer m.cardsMu.Unlock()
	delete(m.cards, orderID)
}

func (m *ManagerBot) trackedCards() int {
	m.cardsMu.Lock()
	defer m.cardsMu.Unlock()
	return len(m.cards)
}

// sendCard posts a fresh card for o in chatID and makes it the tracked card.
func (m *ManagerBot) sendCard(o models.OrderWithUser, chatID int64) {
	unlock := m.lockOrder(o.ID)
	defer unlock()
	content := services.BuildManagerCard(o, m.symbol)
	msg := tgbotapi.NewMessage(chatID, content.Text)
	if kb := cardMarkup(content); kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := m.api.Send(msg)
	if err != nil {
		m.log.Error("send_failed", "send order card", err, "order_id", o.ID, "chat_id", chatID)
		return
	}
	m.setCard(o.ID, cardPointer{chatID: chatID, messageID: sent.MessageID})
}

// UpsertOrderCard edits the tracked card of the order, or sends a new one to chatID when
// none is tracked. On "message not found" (e.g. deleted) a new card is sent to the same chat.
// On "message is not modified": ignore.
func (m *ManagerBot) UpsertOrderCard(o models.OrderWithUser, chatID int64) {
	p, ok := m.card(o.ID)
	if !ok {
		if chatID != 0 {
			m.sendCard(o, chatID)
		}
		return
	}
	unlock := m.lockOrder(o.ID)
	content := services.BuildManagerCard(o, m.symbol)
	edit := tgbotapi.NewEditMessageText(p.chatID, p.messageID, content.Text)
	if kb := cardMarkup(content); kb != nil {
		edit.ReplyMarkup = kb
	} else {
		emptyKb := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
		edit.ReplyMarkup = &emptyKb
	}
	_, err := m.api.Send(edit)
	unlock()
	if err == nil {
		return
	}
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "not modified"):
	case strings.Contains(errStr, "not found"):
		m.sendCard(o, p.chatID)
	default:
		m.log.Error("edit_failed", "edit order card", err, "order_id", o.ID, "chat_id", p.chatID)
	}
}

// OrderPlaced posts the new order to the kitchen chat.
func (m *ManagerBot) OrderPlaced(ctx context.Context, o models.Order, u *models.User) {
	if m.notify == 0 {
		return
	}
	m.UpsertOrderCard(models.OrderWithUser{Order: o, User: u}, m.notify)
}

// OrderStatusChanged refreshes the tracked card of the order, if any.
func (m *ManagerBot) OrderStatusChanged(ctx context.Context, o models.Order) {
	if _, ok := m.card(o.ID); !ok {
		return
	}
	u, err := m.users.Get(ctx, o.UserID)
	if err != nil {
		m.log.Warn("card_user", "could not load customer for card", "order_id", o.ID, "error", err.Error())
		u = nil
	}
	m.UpsertOrderCard(models.OrderWithUser{Order: o, User: u}, 0)
	// Completed and cancelled cards have no buttons left to press.
	if services.IsTerminalStatus(o.Status) {
		m.dropCard(o.ID)
	}
}
