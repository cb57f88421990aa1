package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"buffetpos/internal/cache"
	"buffetpos/internal/config"
	"buffetpos/internal/httpapi"
	"buffetpos/internal/logger"
	"buffetpos/internal/metrics"
	"buffetpos/internal/receipt"
	"buffetpos/internal/service"
	"buffetpos/internal/store"
	"buffetpos/internal/store/memory"
	pgstore "buffetpos/internal/store/postgres"
	"buffetpos/internal/xid"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Env: cfg.Env, Level: cfg.LogLevel})

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = ephemeralSecret()
		log.Warn().Msg("JWT_SECRET not set; using an ephemeral secret, tokens will not survive a restart")
	}
	if len(cfg.AllowedOrigins) == 0 && !cfg.IsProduction() {
		cfg.AllowedOrigins = []string{"*"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		if cfg.MigrateOnBoot {
			if err := pg.Migrate(log); err != nil {
				log.Fatal().Err(err).Msg("apply migrations")
			}
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info().Str("repository", "postgres").Msg("storage ready")
	} else {
		repo = memory.NewSeeded(memory.SeedCredentials{
			AdminPassword:   cfg.SeedAdminPassword,
			ManagerPassword: cfg.SeedManagerPassword,
			CashierPassword: cfg.SeedCashierPassword,
		})
		log.Info().Str("repository", "memory").Msg("storage ready")
	}

	productCache := cache.ProductCache(cache.NoopProductCache{})
	denylist := cache.TokenDenylist(cache.NewMemoryDenylist())
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-process cache")
		} else {
			productCache = redisCache
			denylist = redisCache
			closers = append(closers, redisCache.Close)
			log.Info().Str("cache", "redis").Msg("cache ready")
		}
	} else {
		log.Info().Str("cache", "noop").Msg("cache ready")
	}

	prom := metrics.NewPrometheus()
	svc := service.New(repo, service.Options{
		Cache:    productCache,
		CacheTTL: cfg.CacheTTL,
		Printer:  newPrinter(cfg, log),
		Metrics:  prom,
		Logger:   log,
		Invoices: xid.NewInvoiceGenerator(),
	})

	if cfg.BootstrapAdminUsername != "" {
		created, err := svc.EnsureAdmin(ctx, cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("bootstrap admin")
		}
		if created {
			log.Info().Str("username", cfg.BootstrapAdminUsername).Msg("bootstrap admin created")
		}
	}

	auth := httpapi.NewAuthManager(cfg.JWTSecret, time.Duration(cfg.JWTTTLMinutes)*time.Minute, repo, denylist)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Logger:         log,
		Metrics:        prom,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("env", cfg.Env).Msg("buffet POS listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

// newPrinter returns nil when no printer is configured so checkouts skip printing.
func newPrinter(cfg config.Config, log zerolog.Logger) receipt.Printer {
	if cfg.PrinterAddr == "" {
		log.Info().Msg("no receipt printer configured")
		return nil
	}
	log.Info().Str("printer", cfg.PrinterAddr).Msg("receipt printer configured")
	return receipt.NewNetworkPrinter(cfg.PrinterAddr, cfg.PrinterTimeout)
}

var weakSecrets = map[string]bool{
	"secret":     true,
	"changeme":   true,
	"change-me":  true,
	"password":   true,
	"jwt-secret": true,
}

func validateSecurityConfig(cfg config.Config) error {
	secret := strings.TrimSpace(cfg.JWTSecret)
	if weakSecrets[strings.ToLower(secret)] {
		return fmt.Errorf("JWT_SECRET is a well-known placeholder")
	}
	if cfg.IsProduction() && len(secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be set and at least 32 characters in production")
	}
	if cfg.BootstrapAdminUsername != "" && len(cfg.BootstrapAdminPassword) < 8 {
		return fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD must be at least 8 characters")
	}
	if cfg.IsProduction() && cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	return nil
}

func ephemeralSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
