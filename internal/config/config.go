package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string // json or console

	// Database
	DBDriver   string // postgres or sqlite
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// Application document store: sql (same database) or mongo
	ApplicationStore string
	MongoURI         string
	MongoDB          string

	// Token settings
	JWTSecret             string
	RefreshJWTSecret      string
	AccessTokenTTLMinutes string // minutes
	RefreshTokenTTLDays   string // days
	VerifyTokenTTLHours   string
	ResetTokenTTLMinutes  string
	PasswordMinLength     string
	RequireVerifiedEmail  string // gate the applications API on a confirmed address

	// Links in emails point here
	AppBaseURL string

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	NotionToken      string
	NotionDatabaseID string

	CORSAllowedOrigins string // comma separated; empty or * allows all

	SeedDemo     string
	DemoEmail    string
	DemoPassword string
}

func Load() *Config {
	return &Config{
		Port:      getenv("PORT", "8080"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		DBDriver:   getenv("DB_DRIVER", "postgres"),
		DBHost:     getenv("DB_HOST", "localhost"),
		DBPort:     getenv("DB_PORT", "5432"),
		DBUser:     getenv("DB_USER", "postgres"),
		DBPassword: getenv("DB_PASSWORD", "postgres"),
		DBName:     getenv("DB_NAME", "applytrack"),
		DBSSLMode:  getenv("DB_SSLMODE", "disable"),
		SQLitePath: getenv("SQLITE_PATH", "applytrack.db"),

		ApplicationStore: getenv("APPLICATION_STORE", "sql"),
		MongoURI:         getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:          getenv("MONGO_DB", "applytrack"),

		JWTSecret:             getenv("JWT_SECRET", "supersecret_change_me"),
		RefreshJWTSecret:      getenv("REFRESH_JWT_SECRET", getenv("JWT_SECRET", "supersecret_change_me")),
		AccessTokenTTLMinutes: getenv("ACCESS_TOKEN_TTL_MINUTES", "15"),
		RefreshTokenTTLDays:   getenv("REFRESH_TOKEN_TTL_DAYS", "30"),
		VerifyTokenTTLHours:   getenv("VERIFY_TOKEN_TTL_HOURS", "48"),
		ResetTokenTTLMinutes:  getenv("RESET_TOKEN_TTL_MINUTES", "60"),
		PasswordMinLength:     getenv("PASSWORD_MIN_LENGTH", "8"),
		RequireVerifiedEmail:  getenv("REQUIRE_VERIFIED_EMAIL", "false"),

		AppBaseURL: strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:3000"), "/"),

		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getenv("SMTP_PORT", "587"),
		SMTPUser:     getenv("SMTP_USER", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", "no-reply@applytrack.local"),

		NotionToken:      getenv("NOTION_TOKEN", ""),
		NotionDatabaseID: getenv("NOTION_DATABASE_ID", ""),

		CORSAllowedOrigins: getenv("CORS_ALLOWED_ORIGINS", "*"),

		SeedDemo:     getenv("SEED_DEMO", "false"),
		DemoEmail:    getenv("DEMO_EMAIL", "demo@example.com"),
		DemoPassword: getenv("DEMO_PASSWORD", "demo12345"),
	}
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(atoiDefault(c.AccessTokenTTLMinutes, 15)) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(atoiDefault(c.RefreshTokenTTLDays, 30)) * 24 * time.Hour
}

func (c *Config) VerifyTTL() time.Duration {
	return time.Duration(atoiDefault(c.VerifyTokenTTLHours, 48)) * time.Hour
}

func (c *Config) ResetTTL() time.Duration {
	return time.Duration(atoiDefault(c.ResetTokenTTLMinutes, 60)) * time.Minute
}

func (c *Config) MinPasswordLength() int {
	return atoiDefault(c.PasswordMinLength, 8)
}

func (c *Config) VerifiedEmailRequired() bool {
	return parseBool(c.RequireVerifiedEmail)
}

func (c *Config) SeedDemoEnabled() bool {
	return parseBool(c.SeedDemo)
}

// AllowedOrigins returns nil when every origin is allowed.
func (c *Config) AllowedOrigins() []string {
	raw := strings.TrimSpace(c.CORSAllowedOrigins)
	if raw == "" || raw == "*" {
		return nil
	}
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func atoiDefault(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "on":
		return true
	}
	return false
}
