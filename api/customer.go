package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"sierra-preorder/models"
	"sierra-preorder/services"
)

type loginRequest struct {
	FullName string `json:"full_name"`
	Mobile   string `json:"mobile"`
}

func (s *Server) customerLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body.")
		return
	}
	user, err := s.users.Login(c.Request.Context(), req.FullName, req.Mobile)
	if err != nil {
		s.fail(c, err)
		return
	}
	sess, err := s.tokens.Issue(user.ID, services.RoleCustomer)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"user": user, "token": sess.Token, "expires_at": sess.ExpiresAt})
}

func (s *Server) listCategories(c *gin.Context) {
	ok(c, gin.H{"categories": append([]string{services.CategoryAll}, models.Categories...)})
}

func (s *Server) listMenu(c *gin.Context) {
	items, err := s.menu.List(c.Request.Context(), services.MenuFilter{
		Category: c.Query("category"),
		Search:   c.Query("q"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"items": items})
}

type cartLineRequest struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type quoteRequest struct {
	Items []cartLineRequest `json:"items"`
}

type quoteResponse struct {
	Lines    []models.OrderLine `json:"lines"`
	Subtotal decimal.Decimal    `json:"subtotal"`
	Tax      decimal.Decimal    `json:"tax"`
	Total    decimal.Decimal    `json:"total"`
	Display  map[string]string  `json:"display"`
}

// buildCart prices the requested lines against the current catalog.
func (s *Server) buildCart(c *gin.Context, lines []cartLineRequest) (*services.Cart, error) {
	cart := &services.Cart{}
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		item, err := s.menu.Get(c.Request.Context(), l.ID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				return nil, &services.ValidationError{Field: "items", Message: fmt.Sprintf("Item %s is no longer available.", l.ID)}
			}
			return nil, err
		}
		prev := cart.Quantity(item.ID)
		cart.AddItem(*item)
		cart.SetQuantity(item.ID, prev+l.Quantity)
	}
	return cart, nil
}

func (s *Server) quote(cart *services.Cart) quoteResponse {
	t := services.PriceLines(cart.Snapshot())
	return quoteResponse{
		Lines:    cart.Snapshot(),
		Subtotal: t.Subtotal,
		Tax:      t.Tax,
		Total:    t.Total,
		Display: map[string]string{
			"subtotal": services.FormatMoney(s.symbol, t.Subtotal),
			"tax":      services.FormatMoney(s.symbol, t.Tax),
			"total":    services.FormatMoney(s.symbol, t.Total),
		},
	}
}

func (s *Server) quoteCart(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body.")
		return
	}
	cart, err := s.buildCart(c, req.Items)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, s.quote(cart))
}

type placeOrderRequest struct {
	Items            []cartLineRequest `json:"items"`
	PickupTime       string            `json:"pickup_time"`
	KitchenNote      string            `json:"kitchen_note"`
	UPITransactionID string            `json:"upi_transaction_id"`
}

func (s *Server) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body.")
		return
	}
	ctx := c.Request.Context()
	user, err := s.users.Get(ctx, c.GetString(ctxSubject))
	if err != nil {
		s.fail(c, err)
		return
	}
	cart, err := s.buildCart(c, req.Items)
	if err != nil {
		s.fail(c, err)
		return
	}
	order, err := s.orders.Create(ctx, services.CreateOrderInput{
		User:        user,
		Lines:       cart.Snapshot(),
		PickupTime:  req.PickupTime,
		KitchenNote: req.KitchenNote,
		PaymentRef:  req.UPITransactionID,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	created(c, gin.H{
		"order":   order,
		"message": "Your order has been placed successfully. You'll receive an SMS with pickup details shortly.",
	})
}

func (s *Server) myOrders(c *gin.Context) {
	orders, err := s.orders.ListForUser(c.Request.Context(), c.GetString(ctxSubject))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"orders": orders})
}

func (s *Server) paymentQR(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		badRequest(c, "Amount must be a number.")
		return
	}
	png, err := s.payee.QRCode(amount, c.Query("note"), 256)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
