package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"dataportal/internal/database/dbtest"
	"dataportal/internal/logger"
	"dataportal/internal/models"
)

func TestConnectionProviderDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  models.ConnectionConfig
		want string
	}{
		{
			name: "explicit url",
			cfg:  models.ConnectionConfig{Database: "shop", URL: "postgres://x@y/z"},
			want: "postgres://x@y/z",
		},
		{
			name: "postgres fields",
			cfg: models.ConnectionConfig{Database: "shop", Driver: "postgres", Host: "db", User: "app",
				Password: "p@ss", DBName: "shop"},
			want: "postgres://app:p%40ss@db:5432/shop?sslmode=disable",
		},
		{
			name: "mysql fields",
			cfg: models.ConnectionConfig{Database: "legacy", Driver: "mysql", Host: "db", Port: 3307,
				User: "root", Password: "pw", DBName: "legacy"},
			want: "root:pw@tcp(db:3307)/legacy?parseTime=true",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := NewConnectionProvider(tt.cfg, logger.Test(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.DSN())
		})
	}
}

func TestConnectionProviderDefaults(t *testing.T) {
	t.Parallel()

	p, err := NewConnectionProvider(models.ConnectionConfig{Database: "shop"}, logger.Test(t))
	require.NoError(t, err)
	assert.Equal(t, "pgx", p.Config().Driver)
	assert.Equal(t, StatusUnknown, p.Status())
	assert.Empty(t, p.ErrorMessage())
	assert.Nil(t, p.DB())

	_, err = p.ReadModel(context.Background())
	require.ErrorIs(t, err, ErrNotConnected)

	_, err = NewConnectionProvider(models.ConnectionConfig{Database: "x", Driver: "sqlite"}, logger.Test(t))
	require.Error(t, err)
}

func TestConnectionProviderTestFailure(t *testing.T) {
	t.Parallel()

	lggr, logs := logger.TestObserved(t, zapcore.WarnLevel)
	p, err := NewConnectionProvider(models.ConnectionConfig{
		Database: "down",
		Driver:   "pgx",
		Host:     "127.0.0.1",
		Port:     1,
		User:     "nobody",
		DBName:   "none",
	}, lggr)
	require.NoError(t, err)
	p.WithRetry(2, 10*time.Millisecond)
	t.Cleanup(func() { _ = p.Close() })

	err = p.Test(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusError, p.Status())
	assert.NotEmpty(t, p.ErrorMessage())
	assert.False(t, p.TestedAt().IsZero())
	assert.Equal(t, 1, logs.FilterMessage("Connection test failed").Len())
}

func TestConnectionProviderReadModel(t *testing.T) {
	dsn := dbtest.Postgres(t)
	ctx := context.Background()

	p, err := NewConnectionProvider(models.ConnectionConfig{Database: "shop", Driver: "pgx", URL: dsn}, logger.Test(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	require.NoError(t, p.Test(ctx))
	assert.Equal(t, StatusConnected, p.Status())

	_, err = p.DB().ExecContext(ctx, `
		CREATE TABLE customers (id serial PRIMARY KEY, email varchar(80) NOT NULL);
		CREATE TABLE orders (
			id bigserial PRIMARY KEY,
			customer_id int NOT NULL,
			total numeric(10,2),
			CONSTRAINT fk_orders_customer FOREIGN KEY (customer_id) REFERENCES customers(id) ON DELETE CASCADE
		);
	`)
	require.NoError(t, err)

	db, err := p.ReadModel(ctx)
	require.NoError(t, err)
	require.Len(t, db.Schemas, 1)

	m := &models.Model{Databases: []*models.Database{db}}
	require.Empty(t, m.Init())

	customers := m.FindTableByQualifiedName("shop.public.customers")
	require.NotNil(t, customers)
	assert.True(t, customers.FindColumnByName("id").AutoIncrement)
	assert.Equal(t, 80, customers.FindColumnByName("email").Length)
	assert.False(t, customers.FindColumnByName("email").Nullable)

	orders := m.FindTableByQualifiedName("shop.public.orders")
	require.NotNil(t, orders)
	assert.Equal(t, models.KindDecimal, orders.FindColumnByName("total").Kind())
	require.Len(t, orders.ForeignKeys, 1)
	assert.Equal(t, customers, orders.ForeignKeys[0].ActualToTable())
	assert.Equal(t, "CASCADE", orders.ForeignKeys[0].OnDelete)
}
