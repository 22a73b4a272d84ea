package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"dataportal/internal/logger"
)

// RunMigrations brings the system database schema up to date. Every
// statement is idempotent.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, lggr logger.Logger) error {
	migrations := []string{
		createUsersTable,
		addAccessLevelToUsers,
		createQueryHistoryTable,
		createPageConfigurationsTable,
	}

	for i, migration := range migrations {
		lggr.Debugf("Running migration %d/%d", i+1, len(migrations))
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	lggr.Info("All migrations completed successfully")
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  last_login_at TIMESTAMP WITH TIME ZONE
);

CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
`

const addAccessLevelToUsers = `
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1 FROM information_schema.columns
    WHERE table_name = 'users' AND column_name = 'access_level'
  ) THEN
    ALTER TABLE users ADD COLUMN access_level TEXT NOT NULL DEFAULT 'view';
  END IF;

  IF NOT EXISTS (
    SELECT 1 FROM information_schema.columns
    WHERE table_name = 'users' AND column_name = 'token'
  ) THEN
    ALTER TABLE users ADD COLUMN token TEXT;
    CREATE UNIQUE INDEX IF NOT EXISTS idx_users_token ON users(token);
  END IF;
END$$;
`

const createQueryHistoryTable = `
CREATE TABLE IF NOT EXISTS query_history (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  database_name TEXT NOT NULL,
  user_id UUID REFERENCES users(id) ON DELETE SET NULL,
  query_text TEXT NOT NULL,
  executed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  success BOOLEAN NOT NULL,
  execution_time_ms INT NOT NULL,
  error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_query_history_database_name ON query_history(database_name);
CREATE INDEX IF NOT EXISTS idx_query_history_user_id ON query_history(user_id);
CREATE INDEX IF NOT EXISTS idx_query_history_executed_at ON query_history(executed_at);
`

const createPageConfigurationsTable = `
CREATE TABLE IF NOT EXISTS page_configurations (
  id UUID PRIMARY KEY,
  page_id TEXT NOT NULL,
  page_type TEXT NOT NULL,
  body TEXT NOT NULL,
  updated_by UUID REFERENCES users(id) ON DELETE SET NULL,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_page_configurations_page_id ON page_configurations(page_id);
`
