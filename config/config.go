package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseDriver string
	DatabaseURL    string
	ServerPort     string

	JWTSecret    string
	SessionTTL   time.Duration
	CookieSecure bool

	// LegacyLoginEnabled keeps the deprecated email-only login reachable.
	LegacyLoginEnabled bool

	OTPTTL            time.Duration
	OTPResendInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	GoogleClientID     string
	GoogleTokenInfoURL string

	CORSOrigins []string

	SuperAdminEmail    string
	SuperAdminPassword string

	Log LogConfig
}

type LogConfig struct {
	Level  string
	Format string
	Output string
	File   string
}

var ErrWeakSecret = errors.New("JWT_SECRET must be at least 32 characters")

// LoadDotenv loads the first .env found in the working directory or its parents.
// Existing environment variables win.
func LoadDotenv() string {
	for _, p := range []string{".env", filepath.Join("..", ".env")} {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				return p
			}
		}
	}
	return ""
}

func Load() *Config {
	return &Config{
		DatabaseDriver:     getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseURL:        getEnv("DATABASE_URL", "postgresql://postgres@localhost:5432/eventhub"),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		JWTSecret:          getEnv("JWT_SECRET", "your-super-secret-key-change-in-production"),
		SessionTTL:         getDuration("SESSION_TTL", 7*24*time.Hour),
		CookieSecure:       getBool("COOKIE_SECURE", false),
		LegacyLoginEnabled: getBool("LEGACY_LOGIN_ENABLED", true),
		OTPTTL:             getDuration("OTP_TTL", 10*time.Minute),
		OTPResendInterval:  getDuration("OTP_RESEND_INTERVAL", 60*time.Second),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getInt("REDIS_DB", 0),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getInt("SMTP_PORT", 587),
		SMTPUser:           getEnv("SMTP_USER", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		MailFrom:           getEnv("MAIL_FROM", "no-reply@eventhub.local"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleTokenInfoURL: getEnv("GOOGLE_TOKENINFO_URL", "https://oauth2.googleapis.com/tokeninfo"),
		CORSOrigins:        getList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		SuperAdminEmail:    strings.ToLower(getEnv("SUPER_ADMIN_EMAIL", "admin@eventhub.local")),
		SuperAdminPassword: getEnv("SUPER_ADMIN_PASSWORD", "admin"),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
			File:   getEnv("LOG_FILE", "logs/eventhub.log"),
		},
	}
}

func (c *Config) Validate() error {
	if len(c.JWTSecret) < 32 {
		return ErrWeakSecret
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return errors.New("DATABASE_DRIVER must be postgres or sqlite")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if o := strings.TrimRight(strings.TrimSpace(p), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}
