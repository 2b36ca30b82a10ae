package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Info().Str("component", "database").Str("database", cfg.Database).Msg("connected to PostgreSQL")

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Info().Str("component", "database").Msg("database connection closed")
	}
}

// RunMigrations executes database migrations.
//
// The UNIQUE constraints on licenses.license_key and
// licenses.payment_reference are the authoritative uniqueness
// guarantees; application-level duplicate checks only exist to produce
// clean early error messages.
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Info().Str("component", "database").Msg("running database migrations")

	migrations := []string{
		// Website accounts
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL,
			phone VARCHAR(20),
			is_admin BOOLEAN DEFAULT FALSE,
			last_login_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,

		// Licenses
		`CREATE TABLE IF NOT EXISTS licenses (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id),
			license_key VARCHAR(32) NOT NULL UNIQUE,
			plan VARCHAR(20) NOT NULL,
			payment_reference VARCHAR(100) NOT NULL UNIQUE,
			amount BIGINT NOT NULL,
			status VARCHAR(30) NOT NULL DEFAULT 'pending_verification',
			admin_verified BOOLEAN NOT NULL DEFAULT FALSE,
			email_sent BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMP,
			expires_at TIMESTAMP,
			verified_at TIMESTAMP,
			admin_notes TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT valid_status CHECK (status IN ('pending_verification', 'active', 'rejected')),
			CONSTRAINT valid_plan CHECK (plan IN ('starter', 'pro', 'enterprise')),
			CONSTRAINT email_requires_verification CHECK (NOT email_sent OR admin_verified)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_licenses_user ON licenses(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_licenses_status ON licenses(status)`,
		`CREATE INDEX IF NOT EXISTS idx_licenses_verified ON licenses(admin_verified)`,
		`CREATE INDEX IF NOT EXISTS idx_licenses_created_at ON licenses(created_at)`,

		// Append-only payment audit log, patched with outcomes
		`CREATE TABLE IF NOT EXISTS payment_logs (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id),
			license_id UUID NOT NULL REFERENCES licenses(id) ON DELETE CASCADE,
			payment_reference VARCHAR(100) NOT NULL,
			amount BIGINT NOT NULL,
			status VARCHAR(30) NOT NULL DEFAULT 'pending_verification',
			admin_verified BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_logs_license ON payment_logs(license_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_logs_user ON payment_logs(user_id)`,

		// updated_at trigger
		`CREATE OR REPLACE FUNCTION update_updated_at_column()
		RETURNS TRIGGER AS $$
		BEGIN
			NEW.updated_at = CURRENT_TIMESTAMP;
			RETURN NEW;
		END;
		$$ language 'plpgsql'`,

		`DROP TRIGGER IF EXISTS update_users_updated_at ON users`,
		`CREATE TRIGGER update_users_updated_at BEFORE UPDATE ON users
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,

		`DROP TRIGGER IF EXISTS update_licenses_updated_at ON licenses`,
		`CREATE TRIGGER update_licenses_updated_at BEFORE UPDATE ON licenses
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,

		`DROP TRIGGER IF EXISTS update_payment_logs_updated_at ON payment_logs`,
		`CREATE TRIGGER update_payment_logs_updated_at BEFORE UPDATE ON payment_logs
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Info().Str("component", "database").Msg("database migrations completed")
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
