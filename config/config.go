package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string

	SendGridAPIKey string
	FromName       string
	FromEmail      string

	RedisURL      string
	CloudinaryURL string
	JWTSecret     string

	StripeSecretKey string
	PremiumPriceID  string

	TelegramBotToken string

	BulkEmailDelay time.Duration
}

// New sets up all config related services
func New() *Config {

	//setup zap logger and replace default logger
	logger, err := setLogger(os.Getenv("APP_ENV"))
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:              os.Getenv("DB_URI"),
		DatabaseName:     os.Getenv("DB_NAME"),
		BaseURL:          os.Getenv("BASE_URL"),
		Port:             os.Getenv("PORT"),
		SendGridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
		FromName:         getEnvDefault("MAIL_FROM_NAME", "FormGate"),
		FromEmail:        getEnvDefault("MAIL_FROM_EMAIL", "no-reply@formgate.dev"),
		RedisURL:         os.Getenv("REDIS_URL"),
		CloudinaryURL:    os.Getenv("CLOUDINARY_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		StripeSecretKey:  os.Getenv("STRIPE_SECRET_KEY"),
		PremiumPriceID:   os.Getenv("STRIPE_PREMIUM_PRICE_ID"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		BulkEmailDelay:   getEnvDuration("BULK_EMAIL_DELAY_MS", 500*time.Millisecond),
	}

}

// setLogger builds the zap logger for the given environment
func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "development":
		return zap.NewDevelopment()
	case "production":
		return zap.NewProduction()
	default:
		return zap.NewExample(), nil
	}
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		zap.S().Warnw("invalid duration env value, using default", "key", key, "value", v)
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
}
