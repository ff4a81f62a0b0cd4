package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"salestrack/backend/internal/cache"
	"salestrack/backend/internal/config"
	"salestrack/backend/internal/httpapi"
	"salestrack/backend/internal/logging"
	"salestrack/backend/internal/notify"
	"salestrack/backend/internal/service"
	"salestrack/backend/internal/store"
	"salestrack/backend/internal/store/memory"
	pgstore "salestrack/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal("apply schema", zap.Error(err))
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		logger.Info("repository: in-memory")
	}

	var resetTokens cache.ResetTokens = cache.NewMemoryResetTokens(cfg.ResetTokenTTL)
	if cfg.RedisAddr != "" {
		redisTokens := cache.NewRedisResetTokens(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisTokens.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, keeping reset tokens in memory", zap.Error(err))
			_ = redisTokens.Close()
		} else {
			resetTokens = redisTokens
			closers = append(closers, redisTokens.Close)
			logger.Info("reset tokens: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		logger.Info("reset tokens: in-memory")
	}

	var mailer notify.Mailer = notify.NewLogMailer(logger)
	if cfg.MailgunEnabled() {
		mailer = notify.NewMailgunMailer(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailSender, logger)
		logger.Info("mailer: mailgun", zap.String("domain", cfg.MailgunDomain))
	} else {
		logger.Info("mailer: log only")
	}

	svc := service.New(repo, resetTokens, mailer, logger, service.Options{
		HouseStoreName:  cfg.HouseStoreName,
		ResetTokenTTL:   cfg.ResetTokenTTL,
		FrontendBaseURL: cfg.FrontendBaseURL,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin:      cfg.AllowedOrigin,
		LoginRatePerMinute: cfg.LoginRatePerMinute,
		Logger:             logger,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("sales backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if err := validateSecretStrength(cfg.AuthSecret); err != nil {
		return fmt.Errorf("AUTH_SECRET is too weak: %w", err)
	}
	if (cfg.MailgunDomain == "") != (cfg.MailgunAPIKey == "") {
		return fmt.Errorf("MAILGUN_DOMAIN and MAILGUN_API_KEY must be set together")
	}
	if cfg.AllowedOrigin == "*" && cfg.DatabaseURL != "" {
		return fmt.Errorf("ALLOWED_ORIGIN must name a concrete origin when DATABASE_URL is set")
	}
	return nil
}

// validateSecretStrength rejects secrets built from a single repeated
// character or left at a well-known placeholder.
func validateSecretStrength(secret string) error {
	lower := strings.ToLower(secret)
	for _, placeholder := range []string{"change-me", "changeme", "replace-me", "your-secret"} {
		if strings.Contains(lower, placeholder) {
			return fmt.Errorf("placeholder secret not allowed")
		}
	}

	allSame := true
	for i := 1; i < len(secret); i++ {
		if secret[i] != secret[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("single-character secret not allowed")
	}
	return nil
}
