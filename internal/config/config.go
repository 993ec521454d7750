package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Env            string
	Port           string
	DatabaseURL    string
	RedisURL       string
	StoreDriver    string
	JWTSecret      string
	TokenTTL       time.Duration
	AuthTimeout    time.Duration
	EditWindow     time.Duration
	TypingTimeout  time.Duration
	SnapshotSize   int
	AccessCacheTTL time.Duration
	AllowedOrigins []string
	RollbarToken   string
}

// Load читает .env.local/.env (если есть) и переменные окружения
func Load() (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Println(".env not found, using environment variables")
		}
	}

	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("app_env", "development")
	v.SetDefault("port", "8080")
	v.SetDefault("store_driver", DriverPostgres)
	v.SetDefault("token_ttl", 24*time.Hour)
	v.SetDefault("auth_timeout", 10*time.Second)
	v.SetDefault("edit_window", 15*time.Minute)
	v.SetDefault("typing_timeout", 3*time.Second)
	v.SetDefault("snapshot_size", 50)
	v.SetDefault("access_cache_ttl", 30*time.Second)
	v.SetDefault("allowed_origins", "*")
	v.AutomaticEnv()
	return v
}

func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Env:            v.GetString("app_env"),
		Port:           v.GetString("port"),
		DatabaseURL:    v.GetString("database_url"),
		RedisURL:       v.GetString("redis_url"),
		StoreDriver:    strings.ToLower(v.GetString("store_driver")),
		JWTSecret:      v.GetString("jwt_secret"),
		TokenTTL:       v.GetDuration("token_ttl"),
		AuthTimeout:    v.GetDuration("auth_timeout"),
		EditWindow:     v.GetDuration("edit_window"),
		TypingTimeout:  v.GetDuration("typing_timeout"),
		SnapshotSize:   v.GetInt("snapshot_size"),
		AccessCacheTTL: v.GetDuration("access_cache_ttl"),
		AllowedOrigins: splitList(v.GetString("allowed_origins")),
		RollbarToken:   v.GetString("rollbar_token"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}

	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is not set")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.EditWindow <= 0 {
		return fmt.Errorf("EDIT_WINDOW must be positive")
	}
	if c.TypingTimeout <= 0 {
		return fmt.Errorf("TYPING_TIMEOUT must be positive")
	}
	if c.AuthTimeout <= 0 {
		return fmt.Errorf("AUTH_TIMEOUT must be positive")
	}
	if c.SnapshotSize <= 0 || c.SnapshotSize > 100 {
		return fmt.Errorf("SNAPSHOT_SIZE must be between 1 and 100")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// OriginAllowed проверяет Origin для апгрейда WebSocket
func (c *Config) OriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
