package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	DatabaseURL string
	ServiceName string

	// Access and refresh tokens are signed with independent secrets so a
	// compromise of one class cannot forge the other.
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	OTPTTL         time.Duration
	OTPSendTimeout time.Duration
	OTPCooldown    time.Duration

	// SingleSessionAllFlows extends the password-login behaviour of revoking
	// prior active refresh tokens to OTP and federated sign-in.
	SingleSessionAllFlows bool

	AdminEmail    string
	AdminPassword string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NotifierBaseURL string
	NotifierAPIKey  string
	NotifierFrom    string

	IdentityVerifyURL string

	// NodeID distinguishes replicas when generating snowflake IDs.
	NodeID int64

	RateLimitRPM         int
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:           getEnv("APP_ENV", "development"),
		HTTPPort:              getEnv("HTTP_PORT", "8080"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		ServiceName:           getEnv("SERVICE_NAME", "habit-tracker-backend"),
		AccessTokenSecret:     os.Getenv("ACCESS_SECRET_KEY"),
		RefreshTokenSecret:    os.Getenv("REFRESH_SECRET_KEY"),
		AccessTokenTTL:        getDuration("ACCESS_TOKEN_TTL", 30*time.Minute),
		RefreshTokenTTL:       getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		OTPTTL:                getDuration("OTP_TTL", 5*time.Minute),
		OTPSendTimeout:        getDuration("OTP_SEND_TIMEOUT", 10*time.Second),
		OTPCooldown:           getDuration("OTP_COOLDOWN", 30*time.Second),
		SingleSessionAllFlows: getBool("SINGLE_SESSION_ALL_FLOWS", false),
		AdminEmail:            strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword:         strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),
		RedisAddr:             getEnv("REDIS_ADDR", ""),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getInt("REDIS_DB", 0),
		NotifierBaseURL:       os.Getenv("NOTIFIER_BASE_URL"),
		NotifierAPIKey:        os.Getenv("NOTIFIER_API_KEY"),
		NotifierFrom:          getEnv("NOTIFIER_FROM", "no-reply@habit-tracker.app"),
		IdentityVerifyURL:     os.Getenv("IDENTITY_VERIFY_URL"),
		NodeID:                int64(getInt("SNOWFLAKE_NODE_ID", 1)),
		RateLimitRPM:          getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:     getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:    getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:    getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		CORSAllowedHeaders:    getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials:  getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AccessTokenSecret == "" {
		return Config{}, fmt.Errorf("ACCESS_SECRET_KEY is required")
	}
	if cfg.RefreshTokenSecret == "" {
		return Config{}, fmt.Errorf("REFRESH_SECRET_KEY is required")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return Config{}, fmt.Errorf("ACCESS_SECRET_KEY and REFRESH_SECRET_KEY must differ")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
