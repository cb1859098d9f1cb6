package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// データベースドライバ
const (
	DriverMongoDB  = "mongodb"
	DriverPostgres = "postgres"
)

// 実行環境
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseDriver string
	MongoURI       string
	MongoDatabase  string
	DatabaseURL    string

	// Session
	JWTSecret     string
	SessionMaxAge int
	BcryptCost    int

	// Revocation
	RedisURL string

	// Mail
	MailProvider   string
	SenderEmail    string
	MailgunDomain  string
	MailgunAPIKey  string
	SendGridAPIKey string

	// Rate Limit
	RateLimitAuth int

	// Server
	ServerPort string
	// TrustProxyHeaders がtrueの場合、X-Forwarded-For等からクライアントIPを決定する。
	// リバースプロキシ配下でのみ有効にすること。
	TrustProxyHeaders bool

	// CORS
	CORSAllowedOrigins []string
}

// IsProduction は本番環境で動作しているかどうかを返す。
// Cookieのsecure属性とsameSite属性の切り替えに使用する。
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// SessionTTL はセッショントークンの有効期間を返す。
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.DatabaseDriver = getEnvString("DATABASE_DRIVER", DriverMongoDB)
	switch cfg.DatabaseDriver {
	case DriverMongoDB:
		cfg.MongoURI = os.Getenv("MONGODB_URI")
		if cfg.MongoURI == "" {
			missing = append(missing, "MONGODB_URI")
		}
	case DriverPostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER: %q", cfg.DatabaseDriver)
	}

	cfg.MailProvider = getEnvString("MAIL_PROVIDER", "log")
	switch cfg.MailProvider {
	case "mailgun":
		cfg.MailgunDomain = os.Getenv("MAILGUN_DOMAIN")
		cfg.MailgunAPIKey = os.Getenv("MAILGUN_API_KEY")
		if cfg.MailgunDomain == "" {
			missing = append(missing, "MAILGUN_DOMAIN")
		}
		if cfg.MailgunAPIKey == "" {
			missing = append(missing, "MAILGUN_API_KEY")
		}
	case "sendgrid":
		cfg.SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")
		if cfg.SendGridAPIKey == "" {
			missing = append(missing, "SENDGRID_API_KEY")
		}
	case "log":
	default:
		return nil, fmt.Errorf("unsupported MAIL_PROVIDER: %q", cfg.MailProvider)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.Environment = getEnvString("APP_ENV", EnvDevelopment)
	cfg.MongoDatabase = getEnvString("MONGODB_DATABASE", "panchsetu")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.SenderEmail = getEnvString("SENDER_EMAIL", "no-reply@panchsetu.com")
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 20)
	cfg.ServerPort = getEnvString("SERVER_PORT", "4000")
	cfg.TrustProxyHeaders = getEnvBool("TRUST_PROXY_HEADERS", false)
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"})

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvList はカンマ区切りの環境変数を空要素を除いたスライスとして返す。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
