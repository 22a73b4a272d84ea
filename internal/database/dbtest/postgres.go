// Package dbtest starts throwaway PostgreSQL servers for integration tests.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rubenv/pgtest"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage    = "postgres:16-alpine"
	postgresUser     = "postgres"
	postgresPassword = "postgres"
	postgresDB       = "dataportal_test"
)

// Postgres returns the DSN of a fresh database. A local postgres binary is
// started in a temporary directory when one is installed; otherwise a
// container is used. The test is skipped when neither is available, and
// the server is removed on cleanup.
func Postgres(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	if dsn, ok := localPostgres(t); ok {
		return dsn
	}
	return containerPostgres(t)
}

func localPostgres(t *testing.T) (string, bool) {
	t.Helper()

	pg, err := pgtest.Start()
	if err != nil {
		t.Logf("local postgres unavailable, falling back to a container: %v", err)
		return "", false
	}
	t.Cleanup(func() {
		if err := pg.Stop(); err != nil {
			t.Logf("failed to stop local postgres: %v", err)
		}
	})

	var user, dbName, sockets, port string
	err = pg.DB.QueryRow(`SELECT current_user, current_database(),
		current_setting('unix_socket_directories'), current_setting('port')`).Scan(&user, &dbName, &sockets, &port)
	if err != nil {
		t.Fatalf("failed to read local postgres settings: %v", err)
	}
	host := strings.TrimSpace(strings.Split(sockets, ",")[0])
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable", host, port, user, dbName), true
}

func containerPostgres(t *testing.T) string {
	t.Helper()

	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		postgresImage,
		postgres.WithDatabase(postgresDB),
		postgres.WithUsername(postgresUser),
		postgres.WithPassword(postgresPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	return dsn
}
