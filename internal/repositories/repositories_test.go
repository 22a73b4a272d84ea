package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataportal/internal/database"
	"dataportal/internal/database/dbtest"
	"dataportal/internal/logger"
	"dataportal/internal/models"
)

func systemDB(t *testing.T) (string, *pgxpool.Pool) {
	t.Helper()
	dsn := dbtest.Postgres(t)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.RunMigrations(ctx, pool, logger.Test(t)))
	return dsn, pool
}

func TestRepositories(t *testing.T) {
	dsn, pool := systemDB(t)
	ctx := context.Background()

	users := NewUserRepository(pool)
	token := "api-token"
	user := &models.User{Email: " dev@example.com ", PasswordHash: "hash", Token: &token, AccessLevel: "develop"}
	require.NoError(t, users.Create(ctx, user))
	assert.NotEqual(t, uuid.Nil, user.ID)

	t.Run("users", func(t *testing.T) {
		byEmail, err := users.FindUserByEmail(ctx, "dev@example.com")
		require.NoError(t, err)
		require.NotNil(t, byEmail)
		assert.Equal(t, user.ID, byEmail.ID)
		assert.Equal(t, models.AccessDevelop, byEmail.Level())
		assert.Nil(t, byEmail.LastLoginAt)

		byToken, err := users.FindUserByToken(ctx, token)
		require.NoError(t, err)
		require.NotNil(t, byToken)
		assert.Equal(t, user.ID, byToken.ID)

		missing, err := users.FindUserByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, missing)

		require.NoError(t, users.UpdateLastLogin(ctx, user.ID))
		byID, err := users.FindUserByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.NotNil(t, byID.LastLoginAt)

		require.NoError(t, users.UpdateToken(ctx, user.ID, nil))
		byToken, err = users.FindUserByToken(ctx, token)
		require.NoError(t, err)
		assert.Nil(t, byToken)

		n, err := users.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("query history", func(t *testing.T) {
		history := NewQueryHistoryRepository(pool)
		failure := "syntax error"
		require.NoError(t, history.Create(ctx, &models.QueryHistory{DatabaseName: "shop", UserID: &user.ID, QueryText: "SELECT 1", Success: true, ExecutionTimeMs: 3}))
		require.NoError(t, history.Create(ctx, &models.QueryHistory{DatabaseName: "shop", QueryText: "SELEC", ErrorMessage: &failure}))
		require.NoError(t, history.Create(ctx, &models.QueryHistory{DatabaseName: "crm", QueryText: "SELECT 2", Success: true}))

		all, err := history.List(ctx, "", nil, 0)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		shop, err := history.List(ctx, "shop", nil, 10)
		require.NoError(t, err)
		assert.Len(t, shop, 2)

		mine, err := history.List(ctx, "shop", &user.ID, 10)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, "SELECT 1", mine[0].QueryText)
		assert.True(t, mine[0].Success)
	})

	t.Run("page configurations", func(t *testing.T) {
		db, err := database.OpenGormDSN(dsn)
		require.NoError(t, err)
		confs := NewPageConfigurationRepository(db)

		missing, err := confs.FindByPageID(ctx, "sales")
		require.NoError(t, err)
		assert.Nil(t, missing)

		require.NoError(t, confs.Save(ctx, &models.PageConfiguration{PageID: "sales", PageType: "chart", Body: "name: Sales\n", UpdatedBy: &user.ID}))
		require.NoError(t, confs.Save(ctx, &models.PageConfiguration{PageID: "sales", PageType: "chart", Body: "name: Revenue\n"}))

		list, err := confs.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "name: Revenue\n", list[0].Body)
		assert.Nil(t, list[0].UpdatedBy)

		found, err := confs.FindByPageID(ctx, "sales")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "chart", found.PageType)
	})
}
