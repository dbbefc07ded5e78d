package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort string

	DBDriver       string // "pgx" or "postgres"
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBSslMode      string
	DBMaxOpenConns int
	DBAutoMigrate  bool

	JWTSecret          string
	JWTExpirationHours time.Duration

	// AdminUsername and AdminPassword, when both set, provision an admin account at startup.
	AdminUsername string
	AdminPassword string

	// Location is used for "today" and "this month" in revenue reports.
	Location *time.Location

	LogLevel  string
	LogFormat string

	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string

	RedisURL                 string
	RedisNotificationChannel string

	KafkaBrokers      []string
	KafkaBookingTopic string

	AWSRegion          string
	SQSPaymentQueueURL string
	LPREnabled         bool

	ReceiptSigningKey string

	// StripeSecretKey enables card charges on RecordPayment.
	StripeSecretKey string
	StripeCurrency  string
}

var defaults = map[string]interface{}{
	"SERVER_PORT":                "8080",
	"DB_DRIVER":                  "pgx",
	"DB_HOST":                    "localhost",
	"DB_PORT":                    5432,
	"DB_USER":                    "parking",
	"DB_PASSWORD":                "parking",
	"DB_NAME":                    "parking_db",
	"DB_SSLMODE":                 "disable",
	"DB_MAX_OPEN_CONNS":          20,
	"DB_AUTO_MIGRATE":            true,
	"JWT_SECRET":                 "change-me-in-production",
	"JWT_EXPIRATION_HOURS":       24,
	"ADMIN_USERNAME":             "",
	"ADMIN_PASSWORD":             "",
	"TIME_ZONE":                  "UTC",
	"LOG_LEVEL":                  "info",
	"LOG_FORMAT":                 "text",
	"RATE_LIMIT_RPS":             10.0,
	"RATE_LIMIT_BURST":           20,
	"CORS_ALLOWED_ORIGINS":       "*",
	"REDIS_URL":                  "",
	"REDIS_NOTIFICATION_CHANNEL": "parking:notifications",
	"KAFKA_BROKERS":              "",
	"KAFKA_BOOKING_TOPIC":        "booking-events",
	"AWS_REGION":                 "ap-south-1",
	"SQS_PAYMENT_QUEUE_URL":      "",
	"LPR_ENABLED":                false,
	"RECEIPT_SIGNING_KEY":        "",
	"STRIPE_SECRET_KEY":          "",
	"STRIPE_CURRENCY":            "inr",
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: could not load .env file: %v", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	loc, err := time.LoadLocation(v.GetString("TIME_ZONE"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE %q: %w", v.GetString("TIME_ZONE"), err)
	}

	driver := v.GetString("DB_DRIVER")
	if driver != "pgx" && driver != "postgres" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (want pgx or postgres)", driver)
	}

	cfg := &Config{
		ServerPort: v.GetString("SERVER_PORT"),

		DBDriver:       driver,
		DBHost:         v.GetString("DB_HOST"),
		DBPort:         v.GetInt("DB_PORT"),
		DBUser:         v.GetString("DB_USER"),
		DBPassword:     v.GetString("DB_PASSWORD"),
		DBName:         v.GetString("DB_NAME"),
		DBSslMode:      v.GetString("DB_SSLMODE"),
		DBMaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		DBAutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),

		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTExpirationHours: time.Duration(v.GetInt("JWT_EXPIRATION_HOURS")) * time.Hour,

		AdminUsername: v.GetString("ADMIN_USERNAME"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),

		Location: loc,

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		RateLimitRPS:       v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:     v.GetInt("RATE_LIMIT_BURST"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),

		RedisURL:                 v.GetString("REDIS_URL"),
		RedisNotificationChannel: v.GetString("REDIS_NOTIFICATION_CHANNEL"),

		KafkaBrokers:      splitList(v.GetString("KAFKA_BROKERS")),
		KafkaBookingTopic: v.GetString("KAFKA_BOOKING_TOPIC"),

		AWSRegion:          v.GetString("AWS_REGION"),
		SQSPaymentQueueURL: v.GetString("SQS_PAYMENT_QUEUE_URL"),
		LPREnabled:         v.GetBool("LPR_ENABLED"),

		ReceiptSigningKey: v.GetString("RECEIPT_SIGNING_KEY"),

		StripeSecretKey: v.GetString("STRIPE_SECRET_KEY"),
		StripeCurrency:  v.GetString("STRIPE_CURRENCY"),
	}
	if cfg.ReceiptSigningKey == "" {
		cfg.ReceiptSigningKey = cfg.JWTSecret
	}
	return cfg, nil
}

// NeedsAWS reports whether any AWS-backed component is switched on.
func (c *Config) NeedsAWS() bool {
	return c.SQSPaymentQueueURL != "" || c.LPREnabled
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
