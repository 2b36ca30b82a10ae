package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"snappy-license-server/config"
	"snappy-license-server/internal/api"
	"snappy-license-server/internal/auth"
	"snappy-license-server/internal/cache"
	"snappy-license-server/internal/database"
	"snappy-license-server/internal/email"
	"snappy-license-server/internal/events"
	"snappy-license-server/internal/license"
	"snappy-license-server/internal/vault"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := newLogger(cfg.LoggingConfig)
	logger.Info().Msg("Structured logging initialized")

	// Initialize event bus
	eventBus := events.NewEventBus()
	logger.Info().Msg("Event bus initialized")

	// Initialize database
	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Run database migrations
	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	repo := database.NewRepository(db)

	// Bootstrap secrets from Vault when enabled; environment values
	// stay in effect otherwise.
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Vault client")
	}
	if vaultClient.Enabled() {
		if secret, err := vaultClient.GetJWTSecret(ctx); err != nil {
			logger.Warn().Err(err).Msg("Vault JWT secret unavailable, using configured value")
		} else {
			cfg.AuthConfig.JWTSecret = secret
		}
		if creds, err := vaultClient.GetSMTPCredentials(ctx); err != nil {
			logger.Warn().Err(err).Msg("Vault SMTP credentials unavailable, using configured values")
		} else {
			cfg.SMTPConfig.Username = creds.Username
			cfg.SMTPConfig.Password = creds.Password
			if creds.From != "" {
				cfg.SMTPConfig.From = creds.From
			}
		}
		logger.Info().Msg("Vault secret bootstrap complete")
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize email service
	mailer := email.NewService(email.SMTPConfig{
		Host:     cfg.SMTPConfig.Host,
		Port:     cfg.SMTPConfig.Port,
		Username: cfg.SMTPConfig.Username,
		Password: cfg.SMTPConfig.Password,
		From:     cfg.SMTPConfig.From,
		FromName: cfg.SMTPConfig.FromName,
	}, logger)
	if !mailer.IsConfigured() {
		logger.Warn().Msg("SMTP not configured, activation emails will fail until it is")
	}

	// Initialize Redis-backed dashboard cache when enabled
	var dashboardCache *cache.DashboardCache
	if cfg.RedisConfig.Enabled {
		cacheService, err := cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, continuing without cache")
		} else {
			dashboardCache = cache.NewDashboardCache(cacheService, eventBus)
			logger.Info().Msg("Dashboard cache initialized")
		}
	}

	// Initialize auth
	jwtManager := auth.NewJWTManager(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.AccessTokenDuration)
	passwordManager := auth.NewPasswordManager(cfg.AuthConfig.BcryptCost, cfg.AuthConfig.MinPasswordLength)
	authService := auth.NewService(repo, jwtManager, passwordManager, mailer, eventBus, logger)

	// Seed the admin account
	if cfg.AdminConfig.Email != "" && cfg.AdminConfig.Password != "" {
		if err := auth.SeedAdminUser(ctx, db, cfg.AdminConfig.Email, cfg.AdminConfig.Password, logger); err != nil {
			logger.Fatal().Err(err).Msg("Failed to seed admin user")
		}
	} else {
		logger.Warn().Msg("ADMIN_EMAIL/ADMIN_PASSWORD not set, no admin account seeded")
	}

	// Initialize license pipeline
	pricing := license.PlanPricing{
		StarterPaise:    cfg.PricingConfig.StarterPaise,
		ProPaise:        cfg.PricingConfig.ProPaise,
		EnterprisePaise: cfg.PricingConfig.EnterprisePaise,
	}
	licenseService := license.NewService(repo, mailer, eventBus, pricing, logger)

	// Initialize web server
	server := api.NewServer(
		api.ServerConfig{
			Port:           cfg.ServerConfig.Port,
			Host:           cfg.ServerConfig.Host,
			AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
			ProductionMode: true,
		},
		repo,
		licenseService,
		authService,
		jwtManager,
		eventBus,
		dashboardCache,
		vaultClient,
		cfg.PaymentConfig,
		pricing,
		logger,
	)

	// Start web server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start web server")
		}
	}()

	logger.Info().
		Str("host", cfg.ServerConfig.Host).
		Int("port", cfg.ServerConfig.Port).
		Msg("License server running")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down...")

	// Graceful shutdown
	shutdownTimeout := time.Duration(cfg.ServerConfig.ShutdownTimeout) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down web server")
	}

	logger.Info().Msg("Shutdown complete")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.JSONFormat {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
