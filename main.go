package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"sierra-preorder/api"
	"sierra-preorder/bot"
	"sierra-preorder/config"
	"sierra-preorder/db"
	"sierra-preorder/logger"
	"sierra-preorder/services"
	"sierra-preorder/store"
)

const usage = `usage: sierra-preorder [serve | migrate | passwd [password]]`

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	// passwd needs no configuration.
	if cmd == "passwd" {
		runPasswd(os.Args[2:])
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New("sierra-preorder", cfg.Log.Level)

	switch cmd {
	case "serve":
		if err := serve(cfg, log); err != nil {
			log.Error("serve", "server stopped", err)
			os.Exit(1)
		}
	case "migrate":
		runMigrate(cfg, log)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func runMigrate(cfg *config.Config, log *logger.Logger) {
	ctx := context.Background()
	if err := db.Init(ctx, cfg.DB); err != nil {
		fmt.Fprintln(os.Stderr, "db:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := applyMigrations(ctx, log); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

// runPasswd prints a bcrypt hash for MANAGER_PASSWORD_HASH. Without an argument a random
// password is generated and printed too.
func runPasswd(args []string) {
	var plain string
	if len(args) > 0 {
		plain = args[0]
	} else {
		p, err := services.GenerateSecurePassword()
		if err != nil {
			fmt.Fprintln(os.Stderr, "passwd:", err)
			os.Exit(1)
		}
		plain = p
		fmt.Println("Password:", plain)
	}
	hash, err := services.HashPassword(plain)
	if err != nil {
		fmt.Fprintln(os.Stderr, "passwd:", err)
		os.Exit(1)
	}
	fmt.Println("MANAGER_PASSWORD_HASH=" + hash)
}

// openStore returns the configured gateway and a function releasing its resources.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Gateway, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		if err := db.Init(ctx, cfg.DB); err != nil {
			return nil, nil, fmt.Errorf("db: %w", err)
		}
		if cfg.DB.AutoMigrate {
			if err := applyMigrations(ctx, log); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return store.NewPostgres(db.Pool), db.Close, nil
	case "rest":
		return store.NewREST(cfg.Store.URL, cfg.Store.APIKey, nil), func() {}, nil
	default:
		log.Warn("store_memory", "using the in-memory store; data is lost on restart")
		return store.NewMemory(), func() {}, nil
	}
}

// withMenuCache puts the Redis list cache in front of gw when REDIS_ADDR is set.
// An unreachable Redis is logged and skipped.
func withMenuCache(ctx context.Context, gw store.Gateway, cfg *config.Config, log *logger.Logger) (store.Gateway, func()) {
	if cfg.Redis.Addr == "" {
		return gw, func() {}
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("cache_unavailable", "redis not reachable, menu cache disabled", "addr", cfg.Redis.Addr, "error", err.Error())
		_ = rdb.Close()
		return gw, func() {}
	}
	log.Info("cache_enabled", "menu cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.MenuCacheTTL.String())
	return store.NewCached(gw, rdb, cfg.Redis.MenuCacheTTL, log, store.TableMenuItems), func() { _ = rdb.Close() }
}

func serve(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	gw, closeCache := withMenuCache(ctx, gw, cfg, log)
	defer closeCache()

	var images services.ImageStore
	if cfg.Minio.Endpoint != "" {
		mi, err := services.NewMinioImages(ctx, cfg.Minio)
		if err != nil {
			log.Error("images_unavailable", "minio not available, image uploads disabled", err)
		} else {
			images = mi
		}
	}

	menu := services.NewMenu(gw, images)
	users := services.NewUsers(gw)
	orders, err := services.NewOrders(gw, cfg.Orders.InitialStatus)
	if err != nil {
		return fmt.Errorf("ORDER_INITIAL_STATUS: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Warn("jwt_secret", "JWT_SECRET not set; sessions end when the process restarts")
	}
	tokens, err := services.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}
	if cfg.Auth.ManagerPasswordHash == "" {
		log.Warn("manager_login", "MANAGER_PASSWORD_HASH not set; manager login is disabled (see `sierra-preorder passwd`)")
	}
	auth := services.NewManagerAuthenticator(cfg.Auth.ManagerUsername, cfg.Auth.ManagerPasswordHash, tokens, services.NewLoginThrottle())
	payee := services.UPIPayee{VPA: cfg.Payment.PayeeVPA, Name: cfg.Payment.PayeeName, Currency: cfg.Payment.Currency}

	if cfg.Telegram.Token != "" {
		b, err := bot.New(cfg.Telegram.Token, bot.CustomerDeps{
			Menu:           menu,
			Users:          users,
			Orders:         orders,
			Payee:          payee,
			CurrencySymbol: cfg.Payment.CurrencySymbol,
			Log:            log,
		})
		if err != nil {
			return fmt.Errorf("customer bot: %w", err)
		}
		orders.AddNotifier(b)
		go b.Start(ctx)
		log.Info("bot_started", "customer bot started")
	}
	if cfg.Telegram.MessageToken != "" {
		mb, err := bot.NewManagerBot(cfg.Telegram.MessageToken, bot.ManagerDeps{
			Auth:           auth,
			Menu:           menu,
			Orders:         orders,
			Users:          users,
			NotifyChatID:   cfg.Telegram.ManagerChatID,
			CurrencySymbol: cfg.Payment.CurrencySymbol,
			Log:            log,
		})
		if err != nil {
			return fmt.Errorf("manager bot: %w", err)
		}
		orders.AddNotifier(mb)
		go mb.Start(ctx)
		log.Info("bot_started", "manager bot started")
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := api.NewServer(api.Deps{
		Menu:           menu,
		Orders:         orders,
		Users:          users,
		Auth:           auth,
		Tokens:         tokens,
		Payee:          payee,
		CurrencySymbol: cfg.Payment.CurrencySymbol,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		Log:            log,
	})
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("http_started", "listening", "addr", httpSrv.Addr, "store", cfg.Store.Backend)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutdown", "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
