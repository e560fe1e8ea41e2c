package api

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"

	"sierra-preorder/models"
	"sierra-preorder/services"
)

func (s *Server) managerLogin(c *gin.Context) {
	var creds services.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		badRequest(c, "Invalid request body.")
		return
	}
	sess, err := s.auth.Authenticate(c.Request.Context(), creds)
	if err != nil {
		s.log.Warn("manager_login_failed", "manager login rejected",
			"request_id", c.GetString(ctxRequestID), "username", creds.Username)
		s.fail(c, err)
		return
	}
	s.log.Info("manager_login", "manager logged in", "username", sess.Subject)
	ok(c, gin.H{"token": sess.Token, "expires_at": sess.ExpiresAt})
}

func (s *Server) managerMenu(c *gin.Context) {
	items, err := s.menu.List(c.Request.Context(), services.MenuFilter{
		Category: c.Query("category"),
		Search:   c.Query("q"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"items": items, "categories": append([]string{services.CategoryAll}, models.Categories...)})
}

// menuItemRequest accepts price as a JSON number or a string.
type menuItemRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Price        any    `json:"price"`
	Category     string `json:"category"`
	ImageURL     string `json:"image_url"`
	IsBestseller bool   `json:"is_bestseller"`
	IsVegetarian bool   `json:"is_vegetarian"`
	IsSpicy      bool   `json:"is_spicy"`
}

func (r menuItemRequest) input() services.MenuItemInput {
	return services.MenuItemInput{
		Name:         r.Name,
		Description:  r.Description,
		Price:        priceText(r.Price),
		Category:     r.Category,
		ImageURL:     r.ImageURL,
		IsBestseller: r.IsBestseller,
		IsVegetarian: r.IsVegetarian,
		IsSpicy:      r.IsSpicy,
	}
}

func priceText(v any) string {
	switch p := v.(type) {
	case nil:
		return ""
	case string:
		return p
	case float64:
		return strconv.FormatFloat(p, 'f', -1, 64)
	case json.Number:
		return p.String()
	default:
		// bools, arrays and objects are not prices
		return "invalid"
	}
}

func (s *Server) bindMenuItem(c *gin.Context) (services.MenuItemInput, bool) {
	var req menuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body.")
		return services.MenuItemInput{}, false
	}
	return req.input(), true
}

func (s *Server) createMenuItem(c *gin.Context) {
	in, valid := s.bindMenuItem(c)
	if !valid {
		return
	}
	item, err := s.menu.Create(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	created(c, gin.H{"item": item, "message": "Menu item added successfully"})
}

func (s *Server) updateMenuItem(c *gin.Context) {
	in, valid := s.bindMenuItem(c)
	if !valid {
		return
	}
	item, err := s.menu.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"item": item, "message": "Menu item updated successfully"})
}

func (s *Server) deleteMenuItem(c *gin.Context) {
	if err := s.menu.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"message": "Menu item deleted successfully"})
}

func (s *Server) uploadMenuImage(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "Please choose an image to upload.")
		return
	}
	if fh.Size > maxImageBytes {
		badRequest(c, "Image is too large.")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "Could not read the uploaded image.")
		return
	}
	defer f.Close()

	item, err := s.menu.UploadImage(c.Request.Context(), c.Param("id"), fh.Filename, fh.Header.Get("Content-Type"), f, fh.Size)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"item": item, "message": "Menu item updated successfully"})
}

func (s *Server) managerOrders(c *gin.Context) {
	orders, err := s.orders.List(c.Request.Context(), services.OrderFilter{
		Status: c.Query("status"),
		Search: c.Query("q"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	type row struct {
		models.OrderWithUser
		Actions []services.StatusAction `json:"actions"`
	}
	rows := make([]row, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, row{OrderWithUser: o, Actions: services.ManagerActions(o.Status)})
	}
	ok(c, gin.H{"orders": rows})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body.")
		return
	}
	target, known := services.ParseOrderStatus(req.Status)
	if !known {
		badRequest(c, "Unknown order status.")
		return
	}
	order, err := s.orders.TransitionByID(c.Request.Context(), c.Param("id"), target)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.log.Info("order_status_changed", "order moved", "order_id", order.ID, "status", order.Status)
	ok(c, gin.H{"order": order, "message": services.StatusChangedMessage(order.Status)})
}
