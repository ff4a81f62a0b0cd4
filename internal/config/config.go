package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	LogLevel              string
	ResetTokenTTL         time.Duration
	FrontendBaseURL       string
	MailgunDomain         string
	MailgunAPIKey         string
	MailSender            string
	HouseStoreName        string
	LoginRatePerMinute    int
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Variables already set in the process win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL := positiveInt("ACCESS_TOKEN_TTL_MINUTES", 480)
	resetTTL := positiveInt("RESET_TOKEN_TTL_MINUTES", 60)

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:5173"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		ResetTokenTTL:         time.Duration(resetTTL) * time.Minute,
		FrontendBaseURL:       strings.TrimRight(getEnv("FRONTEND_BASE_URL", "http://127.0.0.1:5173"), "/"),
		MailgunDomain:         strings.TrimSpace(os.Getenv("MAILGUN_DOMAIN")),
		MailgunAPIKey:         strings.TrimSpace(os.Getenv("MAILGUN_API_KEY")),
		MailSender:            getEnv("MAIL_SENDER", "Salestrack <no-reply@salestrack.local>"),
		HouseStoreName:        getEnv("HOUSE_STORE_NAME", "AJ8"),
		LoginRatePerMinute:    positiveInt("LOGIN_RATE_PER_MINUTE", 5),
	}

	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// MailgunEnabled reports whether both Mailgun credentials are present.
func (c Config) MailgunEnabled() bool {
	return c.MailgunDomain != "" && c.MailgunAPIKey != ""
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func positiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
