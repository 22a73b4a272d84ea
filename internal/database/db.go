package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"dataportal/internal/config"
	"dataportal/internal/logger"
)

// SystemDSN is the connection string of the portal's own database.
func SystemDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"postgres://%s@%s:%s/%s?sslmode=disable",
		url.UserPassword(cfg.User, cfg.Password).String(),
		cfg.Host,
		cfg.Port,
		url.PathEscape(cfg.Name),
	)
}

// EnsureDatabaseExists creates the system database through the admin
// account when it is missing. Without admin credentials it does nothing.
func EnsureDatabaseExists(ctx context.Context, cfg config.DatabaseConfig, lggr logger.Logger) error {
	if cfg.AdminUser == "" {
		lggr.Debug("No admin user configured, skipping database creation check")
		return nil
	}

	dsn := fmt.Sprintf(
		"postgres://%s@%s:%s/postgres?sslmode=disable",
		url.UserPassword(cfg.AdminUser, cfg.AdminPassword).String(),
		cfg.Host,
		cfg.Port,
	)

	lggr.Infow("Checking if database exists", "database", cfg.Name)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)"
	if err := pool.QueryRow(ctx, query, cfg.Name).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}

	if exists {
		lggr.Infow("Database already exists", "database", cfg.Name)
		return nil
	}

	// CREATE DATABASE cannot run inside a transaction
	lggr.Infow("Database does not exist, creating it", "database", cfg.Name)
	if _, err := pool.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{cfg.Name}.Sanitize()); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	lggr.Infow("Database created", "database", cfg.Name)
	return nil
}

// Connect opens the pgx pool of the system database and pings it.
func Connect(ctx context.Context, cfg config.DatabaseConfig, lggr logger.Logger) (*pgxpool.Pool, error) {
	lggr.Infof("Connecting to database: postgres://%s:***@%s:%s/%s", cfg.User, cfg.Host, cfg.Port, cfg.Name)

	poolCfg, err := pgxpool.ParseConfig(SystemDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string (check your .env file): %w", err)
	}

	poolCfg.MaxConns = 25
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 5 * time.Minute
	poolCfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	lggr.Info("Database connection pool established successfully")
	return pool, nil
}

// OpenGorm opens a gorm handle on the system database.
func OpenGorm(cfg config.DatabaseConfig) (*gorm.DB, error) {
	return OpenGormDSN(SystemDSN(cfg))
}

func OpenGormDSN(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}
	return db, nil
}
