package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DB       DBConfig
	Store    StoreConfig
	HTTP     HTTPConfig
	Redis    RedisConfig
	Minio    MinioConfig
	Auth     AuthConfig
	Orders   OrdersConfig
	Payment  PaymentConfig
	Telegram TelegramConfig
	Log      LogConfig
}

type DBConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	AutoMigrate bool
}

// StoreConfig selects the data store backend: "postgres", "rest" or "memory".
type StoreConfig struct {
	Backend string
	URL     string // hosted REST endpoint, e.g. https://xyz.supabase.co
	APIKey  string
}

type HTTPConfig struct {
	Port           int
	CORSOrigins    []string
	RequestTimeout time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	MenuCacheTTL time.Duration
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

type AuthConfig struct {
	ManagerUsername     string
	ManagerPasswordHash string
	JWTSecret           string
	SessionTTL          time.Duration
}

type OrdersConfig struct {
	InitialStatus string
}

type PaymentConfig struct {
	PayeeVPA       string
	PayeeName      string
	Currency       string
	CurrencySymbol string
}

type TelegramConfig struct {
	Token         string // customer ordering bot
	MessageToken  string // manager bot: order notifications and status buttons
	ManagerChatID int64
}

type LogConfig struct {
	Level string
}

// Load reads configuration from the environment, after loading an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []string
	intVar := func(key, def string) int {
		n, err := strconv.Atoi(getEnv(key, def))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return n
	}
	int64Var := func(key, def string) int64 {
		n, err := strconv.ParseInt(getEnv(key, def), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return n
	}
	durationVar := func(key, def string) time.Duration {
		d, err := time.ParseDuration(getEnv(key, def))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return d
	}

	cfg := &Config{
		DB: DBConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        intVar("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", ""),
			Database:    getEnv("DB_NAME", "preorder"),
			AutoMigrate: boolEnv("AUTO_MIGRATE"),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", "postgres")),
			URL:     strings.TrimRight(getEnv("STORE_URL", ""), "/"),
			APIKey:  getEnv("STORE_API_KEY", ""),
		},
		HTTP: HTTPConfig{
			Port:           intVar("HTTP_PORT", "8080"),
			CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),
			RequestTimeout: durationVar("REQUEST_TIMEOUT", "15s"),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", ""),
			Password:     getEnv("REDIS_PASSWORD", ""),
			MenuCacheTTL: durationVar("MENU_CACHE_TTL", "5m"),
		},
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "menu-images"),
			UseSSL:    boolEnv("MINIO_USE_SSL"),
			PublicURL: strings.TrimRight(getEnv("MINIO_PUBLIC_URL", ""), "/"),
		},
		Auth: AuthConfig{
			ManagerUsername:     getEnv("MANAGER_USERNAME", "manager"),
			ManagerPasswordHash: getEnv("MANAGER_PASSWORD_HASH", ""),
			JWTSecret:           getEnv("JWT_SECRET", ""),
			SessionTTL:          durationVar("SESSION_TTL", "12h"),
		},
		Orders: OrdersConfig{
			InitialStatus: strings.ToLower(getEnv("ORDER_INITIAL_STATUS", "pending")),
		},
		Payment: PaymentConfig{
			PayeeVPA:       getEnv("UPI_PAYEE_VPA", ""),
			PayeeName:      getEnv("UPI_PAYEE_NAME", "Sri Sierra"),
			Currency:       getEnv("UPI_CURRENCY", "INR"),
			CurrencySymbol: getEnv("CURRENCY_SYMBOL", "£"),
		},
		Telegram: TelegramConfig{
			Token:         getEnv("TOKEN", ""),
			MessageToken:  getEnv("MESSAGE_TOKEN", ""),
			ManagerChatID: int64Var("MANAGER_CHAT_ID", "0"),
		},
		Log: LogConfig{
			Level: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		},
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	switch cfg.Store.Backend {
	case "postgres", "memory":
	case "rest":
		if cfg.Store.URL == "" || cfg.Store.APIKey == "" {
			return nil, fmt.Errorf("invalid configuration: STORE_URL and STORE_API_KEY are required for the rest backend")
		}
	default:
		return nil, fmt.Errorf("invalid configuration: unknown STORE_BACKEND %q", cfg.Store.Backend)
	}
	return cfg, nil
}

// DatabaseURL returns a PostgreSQL connection URL.
func (c DBConfig) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s",
		c.User, c.Password, c.Host, c.Port, c.Database,
	)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolEnv(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
