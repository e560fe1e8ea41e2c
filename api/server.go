// Package api is the HTTP JSON surface over the ordering and manager flows.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"sierra-preorder/logger"
	"sierra-preorder/services"
)

const maxImageBytes = 5 << 20

type Deps struct {
	Menu           *services.Menu
	Orders         *services.Orders
	Users          *services.Users
	Auth           services.Authenticator
	Tokens         *services.Tokens
	Payee          services.UPIPayee
	CurrencySymbol string
	RequestTimeout time.Duration
	CORSOrigins    []string
	Log            *logger.Logger
}

type Server struct {
	menu    *services.Menu
	orders  *services.Orders
	users   *services.Users
	auth    services.Authenticator
	tokens  *services.Tokens
	payee   services.UPIPayee
	symbol  string
	timeout time.Duration
	origins []string
	log     *logger.Logger
}

func NewServer(d Deps) *Server {
	if d.Log == nil {
		d.Log = logger.Discard()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 15 * time.Second
	}
	return &Server{
		menu:    d.Menu,
		orders:  d.Orders,
		users:   d.Users,
		auth:    d.Auth,
		tokens:  d.Tokens,
		payee:   d.Payee,
		symbol:  d.CurrencySymbol,
		timeout: d.RequestTimeout,
		origins: d.CORSOrigins,
		log:     d.Log,
	}
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.origins) == 0 || (len(s.origins) == 1 && s.origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.origins
	}
	return cfg
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.requestLogger(), cors.New(s.corsConfig()), s.withTimeout())
	r.MaxMultipartMemory = maxImageBytes

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	api := r.Group("/api")
	{
		api.POST("/login", s.customerLogin)
		api.GET("/categories", s.listCategories)
		api.GET("/menu", s.listMenu)
		api.POST("/cart/quote", s.quoteCart)
		api.GET("/payment/qr", s.paymentQR)
	}

	customer := api.Group("", s.requireRole(services.RoleCustomer))
	{
		customer.POST("/orders", s.placeOrder)
		customer.GET("/orders", s.myOrders)
	}

	api.POST("/manager/login", s.managerLogin)
	manager := api.Group("/manager", s.requireRole(services.RoleManager))
	{
		manager.GET("/menu", s.managerMenu)
		manager.POST("/menu", s.createMenuItem)
		manager.PUT("/menu/:id", s.updateMenuItem)
		manager.DELETE("/menu/:id", s.deleteMenuItem)
		manager.POST("/menu/:id/image", s.uploadMenuImage)
		manager.GET("/orders", s.managerOrders)
		manager.POST("/orders/:id/status", s.updateOrderStatus)
	}
	return r
}
