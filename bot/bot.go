// Package bot serves the ordering and manager flows over Telegram.
package bot

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sierra-preorder/flow"
	"sierra-preorder/logger"
	"sierra-preorder/models"
	"sierra-preorder/services"
)

type MenuReader interface {
	List(ctx context.Context, f services.MenuFilter) ([]models.MenuItem, error)
	Get(ctx context.Context, id string) (*models.MenuItem, error)
}

type OrderBook interface {
	flow.OrderCreator
	ListForUser(ctx context.Context, userID string) ([]models.Order, error)
}

type CustomerDeps struct {
	Menu           MenuReader
	Users          flow.UserRegistry
	Orders         OrderBook
	Payee          services.UPIPayee
	CurrencySymbol string
	Log            *logger.Logger
}

// chatState is one customer chat: the ordering flow plus the pickup time typed
// before the kitchen note.
type chatState struct {
	flow   flow.Ordering
	pickup string
}

// Bot is the customer ordering bot (TOKEN). Updates are handled one at a time.
type Bot struct {
	api    sender
	poll   *tgbotapi.BotAPI
	menu   MenuReader
	users  flow.UserRegistry
	orders OrderBook
	payee  services.UPIPayee
	symbol string
	log    *logger.Logger

	chats   map[int64]chatState
	chatsMu sync.Mutex

	// userChats maps a user id to the chat that last logged in as that user.
	userChats   map[string]int64
	userChatsMu sync.RWMutex
}

func New(token string, d CustomerDeps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	b := newBot(api, d)
	b.poll = api
	return b, nil
}

func newBot(api sender, d CustomerDeps) *Bot {
	if d.Log == nil {
		d.Log = logger.Discard()
	}
	return &Bot{
		api:       api,
		menu:      d.Menu,
		users:     d.Users,
		orders:    d.Orders,
		payee:     d.Payee,
		symbol:    d.CurrencySymbol,
		log:       d.Log.With("bot", "customer"),
		chats:     make(map[int64]chatState),
		userChats: make(map[string]int64),
	}
}

func (b *Bot) state(chatID int64) chatState {
	b.chatsMu.Lock()
	defer b.chatsMu.Unlock()
	st, ok := b.chats[chatID]
	if !ok {
		st = chatState{flow: flow.NewOrdering()}
	}
	return st
}

func (b *Bot) setState(chatID int64, st chatState) {
	b.chatsMu.Lock()
	defer b.chatsMu.Unlock()
	b.chats[chatID] = st
}

func (b *Bot) rememberChat(userID string, chatID int64) {
	b.userChatsMu.Lock()
	defer b.userChatsMu.Unlock()
	b.userChats[userID] = chatID
}

func (b *Bot) chatForUser(userID string) (int64, bool) {
	b.userChatsMu.RLock()
	defer b.userChatsMu.RUnlock()
	id, ok := b.userChats[userID]
	return id, ok
}

func (b *Bot) setBotCommands() error {
	cfg := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Start ordering"},
		tgbotapi.BotCommand{Command: "menu", Description: "Browse the menu"},
		tgbotapi.BotCommand{Command: "cart", Description: "Show your cart"},
		tgbotapi.BotCommand{Command: "search", Description: "Search dishes"},
		tgbotapi.BotCommand{Command: "orders", Description: "My orders"},
		tgbotapi.BotCommand{Command: "cancel", Description: "Go back"},
	)
	_, err := b.api.Request(cfg)
	return err
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	if err := b.setBotCommands(); err != nil {
		b.log.Warn("set_commands", "could not register bot commands", "error", err.Error())
	}
	if b.poll == nil {
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.poll.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			b.poll.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Chat != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send_failed", "send message", err, "chat_id", chatID)
	}
}

func (b *Bot) sendWithMarkup(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send_failed", "send message", err, "chat_id", chatID)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	st := b.state(chatID)

	if msg.Contact != nil {
		b.login(ctx, chatID, st, contactName(msg.Contact), msg.Contact.PhoneNumber)
		return
	}
	text := strings.TrimSpace(msg.Text)
	if msg.IsCommand() {
		b.handleCommand(ctx, chatID, st, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
		return
	}

	switch st.flow.Screen {
	case flow.ScreenLogin:
		name, mobile, ok := parseNameAndMobile(text)
		if !ok {
			b.askLogin(chatID)
			return
		}
		b.login(ctx, chatID, st, name, mobile)
	case flow.ScreenConfirm:
		if st.pickup == "" {
			b.setPickup(chatID, st, text)
			return
		}
		b.confirmDetails(chatID, st, text)
	case flow.ScreenPayment:
		b.pay(ctx, chatID, st, text)
	default:
		// Free text on the menu is a search.
		st.flow = st.flow.SetSearch(text)
		b.setState(chatID, st)
		b.sendItems(ctx, chatID, st)
	}
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, st chatState, cmd, args string) {
	if cmd != "start" && st.flow.User == nil {
		b.askLogin(chatID)
		return
	}
	switch cmd {
	case "start":
		if st.flow.User == nil {
			b.askLogin(chatID)
			return
		}
		st = chatState{flow: st.flow.Reset()}
		b.setState(chatID, st)
		b.sendCategories(chatID, st)
	case "menu":
		st.flow = st.flow.SetSearch("")
		b.setState(chatID, st)
		b.sendCategories(chatID, st)
	case "cart":
		b.send(chatID, cartText(st.flow.Cart(), b.symbol))
	case "search":
		if args == "" {
			b.send(chatID, "Send /search followed by a dish name, for example /search paneer.")
			return
		}
		st.flow = st.flow.SetSearch(args)
		b.setState(chatID, st)
		b.sendItems(ctx, chatID, st)
	case "orders":
		b.showOrders(ctx, chatID, st)
	case "cancel":
		b.back(ctx, chatID, st)
	default:
		b.send(chatID, "Unknown command. Use /menu to order.")
	}
}

func (b *Bot) askLogin(chatID int64) {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact("📱 Share my phone number"),
		),
	)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	b.sendWithMarkup(chatID,
		"Welcome to Sri Sierra! Share your phone number, or send your name and mobile like this:\nPriya Sharma, 07700 900123",
		kb)
}

func (b *Bot) login(ctx context.Context, chatID int64, st chatState, name, mobile string) {
	next, err := st.flow.Login(ctx, b.users, name, mobile)
	if err != nil {
		b.send(chatID, next.Error)
		return
	}
	st.flow = next
	b.setState(chatID, st)
	b.rememberChat(next.User.ID, chatID)
	b.log.Info("customer_login", "customer logged in", "user_id", next.User.ID, "chat_id", chatID)
	b.sendWithMarkup(chatID, "Hello, "+next.User.FullName+"! What would you like today?", tgbotapi.NewRemoveKeyboard(true))
	b.sendCategories(chatID, st)
}

func (b *Bot) sendCategories(chatID int64, st chatState) {
	text := "Choose a category:"
	if cart := st.flow.Cart(); !cart.IsEmpty() {
		text += "\n\n" + cartText(cart, b.symbol)
	}
	b.sendWithMarkup(chatID, text, categoryKeyboard(st.flow.Category))
}

func (b *Bot) visibleItems(ctx context.Context, st chatState) ([]models.MenuItem, error) {
	return b.menu.List(ctx, st.flow.MenuFilter())
}

func (b *Bot) sendItems(ctx context.Context, chatID int64, st chatState) {
	items, err := b.visibleItems(ctx, st)
	if err != nil {
		b.log.Error("menu_list", "list menu", err, "chat_id", chatID)
		b.send(chatID, services.UserMessage(err))
		return
	}
	cart := st.flow.Cart()
	b.sendWithMarkup(chatID, menuText(st.flow.Category, st.flow.Search, items, cart, b.symbol),
		menuKeyboard(items, cart, b.symbol))
}

// refreshItems redraws the menu message the customer pressed a button on.
func (b *Bot) refreshItems(ctx context.Context, chatID int64, messageID int, st chatState) {
	items, err := b.visibleItems(ctx, st)
	if err != nil {
		b.log.Error("menu_list", "list menu", err, "chat_id", chatID)
		return
	}
	cart := st.flow.Cart()
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID,
		menuText(st.flow.Category, st.flow.Search, items, cart, b.symbol),
		menuKeyboard(items, cart, b.symbol))
	if _, err := b.api.Send(edit); err != nil && !strings.Contains(err.Error(), "not modified") {
		b.log.Warn("edit_failed", "could not redraw menu", "chat_id", chatID, "error", err.Error())
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.log.Warn("callback_answer", "could not answer callback", "error", err.Error())
	}
	if cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	chatID := cq.Message.Chat.ID
	st := b.state(chatID)
	if st.flow.User == nil {
		b.askLogin(chatID)
		return
	}
	data := cq.Data

	switch {
	case data == cbNoop:
	case data == cbCategories:
		b.sendCategories(chatID, st)
	case strings.HasPrefix(data, cbCategory):
		category, ok := categoryFromCallback(data)
		if !ok {
			return
		}
		st.flow = st.flow.SelectCategory(category).SetSearch("")
		b.setState(chatID, st)
		b.sendItems(ctx, chatID, st)
	case strings.HasPrefix(data, cbAdd), strings.HasPrefix(data, cbInc):
		id := strings.TrimPrefix(strings.TrimPrefix(data, cbAdd), cbInc)
		item, err := b.menu.Get(ctx, id)
		if err != nil {
			b.send(chatID, "Sorry, that dish is no longer available.")
			return
		}
		st.flow = st.flow.AddItem(*item)
		b.setState(chatID, st)
		b.refreshItems(ctx, chatID, cq.Message.MessageID, st)
	case strings.HasPrefix(data, cbDec):
		id := strings.TrimPrefix(data, cbDec)
		st.flow = st.flow.SetQuantity(id, st.flow.Cart().Quantity(id)-1)
		b.setState(chatID, st)
		b.refreshItems(ctx, chatID, cq.Message.MessageID, st)
	case data == cbCheckout:
		b.checkout(chatID, st)
	case data == cbSkipNote:
		if st.flow.Screen == flow.ScreenConfirm && st.pickup != "" {
			b.confirmDetails(chatID, st, "")
		}
	case data == cbBack:
		b.back(ctx, chatID, st)
	}
}

func (b *Bot) checkout(chatID int64, st chatState) {
	next, err := st.flow.Checkout()
	if err != nil {
		b.send(chatID, next.Error)
		return
	}
	st.flow = next
	st.pickup = ""
	b.setState(chatID, st)
	b.send(chatID, cartText(next.Cart(), b.symbol)+"\n\nWhat time will you pick up your order? Send it as HH:MM, for example 18:30.")
}

func (b *Bot) setPickup(chatID int64, st chatState, text string) {
	pickup, ok := parsePickupTime(text)
	if !ok {
		b.send(chatID, "Please select a pickup time. Send it as HH:MM, for example 18:30.")
		return
	}
	st.pickup = pickup
	b.setState(chatID, st)
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("No note", cbSkipNote),
			tgbotapi.NewInlineKeyboardButtonData("Back", cbBack),
		),
	)
	b.sendWithMarkup(chatID, "Pickup at "+pickup+". Anything the kitchen should know? Send a note or tap No note.", kb)
}

func (b *Bot) confirmDetails(chatID int64, st chatState, note string) {
	next, err := st.flow.ConfirmDetails(st.pickup, note)
	if err != nil {
		b.send(chatID, next.Error)
		return
	}
	st.flow = next
	b.setState(chatID, st)
	b.sendPayment(chatID, next)
}

// sendPayment shows the amount due, with a UPI QR code when a payee is configured.
func (b *Bot) sendPayment(chatID int64, o flow.Ordering) {
	total := o.Totals().Total
	caption := "Amount due: " + services.FormatMoney(b.symbol, total) +
		"\n\nPay by UPI, then send your UPI transaction ID here."
	if b.payee.VPA == "" {
		b.send(chatID, caption)
		return
	}
	png, err := b.payee.QRCode(total, "Sri Sierra pre-order", 512)
	if err != nil {
		b.log.Error("payment_qr", "render payment qr", err, "chat_id", chatID)
		b.send(chatID, caption)
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "upi.png", Bytes: png})
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		b.log.Error("send_failed", "send payment qr", err, "chat_id", chatID)
		b.send(chatID, caption)
	}
}

func (b *Bot) pay(ctx context.Context, chatID int64, st chatState, ref string) {
	next, err := st.flow.Pay(ctx, b.orders, ref)
	if err != nil {
		st.flow = next
		b.setState(chatID, st)
		b.send(chatID, next.Error)
		return
	}
	order := next.Order
	b.log.Info("order_placed", "customer placed order", "order_id", order.ID, "user_id", order.UserID, "chat_id", chatID)
	b.send(chatID, next.SuccessMessage()+"\n\n"+services.BuildCustomerCard(*order, b.symbol).Text)
	b.setState(chatID, chatState{flow: next.Reset()})
}

func (b *Bot) showOrders(ctx context.Context, chatID int64, st chatState) {
	next, err := st.flow.ShowOrders()
	if err != nil {
		b.send(chatID, next.Error)
		return
	}
	orders, err := b.orders.ListForUser(ctx, next.User.ID)
	if err != nil {
		b.log.Error("orders_list", "list customer orders", err, "user_id", next.User.ID)
		b.send(chatID, services.UserMessage(err))
		return
	}
	b.send(chatID, orderHistoryText(orders, b.symbol))
	// History is a one-shot view; the chat goes straight back to the menu.
	st.flow = next.Back()
	b.setState(chatID, st)
}

func (b *Bot) back(ctx context.Context, chatID int64, st chatState) {
	prev := st.flow.Screen
	st.flow = st.flow.Back()
	if st.flow.Screen == flow.ScreenConfirm {
		st.pickup = ""
	}
	b.setState(chatID, st)
	switch {
	case prev == flow.ScreenConfirm:
		b.sendItems(ctx, chatID, st)
	case st.flow.Screen == flow.ScreenConfirm:
		b.send(chatID, "What time will you pick up your order? Send it as HH:MM, for example 18:30.")
	default:
		b.sendCategories(chatID, st)
	}
}

// OrderPlaced is a no-op; the customer is answered by the surface that placed the order.
func (b *Bot) OrderPlaced(ctx context.Context, o models.Order, u *models.User) {}

// OrderStatusChanged tells the customer when the kitchen moves their order.
func (b *Bot) OrderStatusChanged(ctx context.Context, o models.Order) {
	chatID, ok := b.chatForUser(o.UserID)
	if !ok {
		return
	}
	if text := services.CustomerMessageForOrderStatus(o, b.symbol); text != "" {
		b.send(chatID, text)
	}
}
