package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultJWTSecret     = "your-super-secret-key-change-in-production"
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin123"
)

type Config struct {
	Port string
	Env  string // dev|prod

	DbDriver    string // sqlite|postgres
	SqliteDb    string
	DatabaseURL string
	AnalyticsDb string

	JWTSecret         string
	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string
	SessionSecret     string

	Domain          string
	SiteName        string
	SiteAuthor      string
	SiteDescription string

	CacheDir    string
	CorsOrigins []string

	Log      string
	LogLevel string
	LogDir   string

	sessionSecretDerived bool
}

// LoadConfig reads .env (when present) and the environment, applying defaults.
// It does not log so that the logger can be built from its result.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	def := func(v, d string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return d
		}
		return v
	}

	cfg := &Config{
		Port: def(os.Getenv("PORT"), "8080"),
		Env:  strings.ToLower(def(os.Getenv("ENV"), "dev")),

		DbDriver:    strings.ToLower(def(os.Getenv("DB_DRIVER"), "sqlite")),
		SqliteDb:    def(os.Getenv("SQLITE_DB"), "data/portfolio.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		AnalyticsDb: os.Getenv("ANALYTICS_DB"),

		JWTSecret:         def(os.Getenv("JWT_SECRET"), DefaultJWTSecret),
		AdminUsername:     def(os.Getenv("ADMIN_USERNAME"), DefaultAdminUsername),
		AdminPassword:     def(os.Getenv("ADMIN_PASSWORD"), DefaultAdminPassword),
		AdminPasswordHash: strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH")),
		SessionSecret:     strings.TrimSpace(os.Getenv("SESSION_SECRET")),

		Domain:          strings.TrimSuffix(def(os.Getenv("DOMAIN"), "http://localhost:8080"), "/"),
		SiteName:        def(os.Getenv("SITE_NAME"), "Portfolio"),
		SiteAuthor:      def(os.Getenv("SITE_AUTHOR"), "Site Owner"),
		SiteDescription: def(os.Getenv("SITE_DESCRIPTION"), "Projects, experience and writing."),

		CacheDir:    def(os.Getenv("CACHE_DIR"), "cache"),
		CorsOrigins: splitList(def(os.Getenv("CORS_ORIGINS"), "http://localhost:3000")),

		Log:      strings.ToLower(def(os.Getenv("LOG"), "dev")),
		LogLevel: strings.ToLower(def(os.Getenv("LOGLEVEL"), "info")),
		LogDir:   def(os.Getenv("LOG_DIR"), "logs"),
	}

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = cfg.JWTSecret + "-session"
		cfg.sessionSecretDerived = true
	}

	return cfg, nil
}

// IsProd reports whether the app runs behind HTTPS in production.
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// CacheEnabled is false when CACHE_DIR is set to "off".
func (c *Config) CacheEnabled() bool {
	return c.CacheDir != "" && c.CacheDir != "off"
}

// Validate returns warnings and a fatal error when the config cannot work.
func (c *Config) Validate() (warnings []string, err error) {
	switch c.DbDriver {
	case "sqlite":
		if c.SqliteDb == "" {
			return nil, fmt.Errorf("SQLITE_DB is empty")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("DB_DRIVER=postgres requires DATABASE_URL")
		}
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q (expected sqlite or postgres)", c.DbDriver)
	}

	if c.JWTSecret == DefaultJWTSecret {
		warnings = append(warnings, "JWT_SECRET is not set, using the built-in default")
	}
	if c.AdminPasswordHash == "" && c.AdminPassword == DefaultAdminPassword {
		warnings = append(warnings, "ADMIN_PASSWORD is not set, using the built-in default")
	}
	if c.sessionSecretDerived {
		warnings = append(warnings, "SESSION_SECRET is empty, deriving it from JWT_SECRET")
	}
	if c.AnalyticsDb == "" {
		warnings = append(warnings, "ANALYTICS_DB is empty, read tracking is disabled")
	}

	return warnings, nil
}

// DSNSafe returns the database location with any password masked, for logs.
func (c *Config) DSNSafe() string {
	if c.DbDriver != "postgres" {
		return c.SqliteDb
	}
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return "postgres://(unparseable DSN)"
	}
	if u.User == nil {
		return u.String()
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
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
