package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataportal/internal/logger"
	"dataportal/internal/models"
	"dataportal/internal/utils"
)

type memoryUsers struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*models.User
	logins int
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[uuid.UUID]*models.User{}}
}

func (m *memoryUsers) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.Prepare()
	m.users[user.ID] = user
	return nil
}

func (m *memoryUsers) find(match func(*models.User) bool) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return u
		}
	}
	return nil
}

func (m *memoryUsers) FindUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id }), nil
}

func (m *memoryUsers) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email }), nil
}

func (m *memoryUsers) FindUserByToken(_ context.Context, token string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Token != nil && *u.Token == token }), nil
}

func (m *memoryUsers) UpdateLastLogin(context.Context, uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins++
	return nil
}

type memoryTokens struct {
	mu          sync.Mutex
	sessions    map[string]string
	blacklisted map[string]bool
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{sessions: map[string]string{}, blacklisted: map[string]bool{}}
}

func (m *memoryTokens) StoreSession(_ context.Context, jti, userId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[jti] = userId
	return nil
}

func (m *memoryTokens) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blacklisted[jti], nil
}

func (m *memoryTokens) Blacklist(_ context.Context, jti string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blacklisted[jti] = true
	return nil
}

func (m *memoryTokens) DeleteSession(_ context.Context, jti string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, jti)
	return nil
}

func testTokenConfig() utils.TokenConfig {
	return utils.TokenConfig{
		AccessTokenSecret:  []byte("access-secret"),
		RefreshTokenSecret: []byte("refresh-secret"),
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
	}
}

func newAuthService(t *testing.T) (*AuthService, *memoryUsers, *memoryTokens) {
	t.Helper()
	users, tokens := newMemoryUsers(), newMemoryTokens()
	return NewAuthService(users, tokens, testTokenConfig(), logger.Test(t)), users, tokens
}

func TestAuthLogin(t *testing.T) {
	t.Parallel()

	svc, users, tokens := newAuthService(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, "dev@example.com", "password1", models.AccessDevelop)
	require.NoError(t, err)
	assert.NotEqual(t, "password1", created.PasswordHash)

	_, err = svc.CreateUser(ctx, "dev@example.com", "other", models.AccessView)
	require.ErrorIs(t, err, ErrUserExists)

	_, _, err = svc.Login(ctx, "dev@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody@example.com", "password1")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	user, pair, err := svc.Login(ctx, "dev@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, 1, users.logins)
	assert.Len(t, tokens.sessions, 1)

	claims, err := svc.VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.AccessDevelop, claims.Level())

	_, err = svc.VerifyAccessToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthRefreshRotatesTokens(t *testing.T) {
	t.Parallel()

	svc, _, tokens := newAuthService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "dev@example.com", "password1", models.AccessEdit)
	require.NoError(t, err)
	_, pair, err := svc.Login(ctx, "dev@example.com", "password1")
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	assert.Len(t, tokens.sessions, 1)

	// The rotated pair is revoked.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.VerifyAccessToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.VerifyAccessToken(ctx, next.AccessToken)
	require.NoError(t, err)
}

func TestAuthLogout(t *testing.T) {
	t.Parallel()

	svc, _, tokens := newAuthService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "dev@example.com", "password1", models.AccessView)
	require.NoError(t, err)
	_, pair, err := svc.Login(ctx, "dev@example.com", "password1")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	assert.Empty(t, tokens.sessions)

	_, err = svc.VerifyAccessToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	require.ErrorIs(t, svc.Logout(ctx, "garbage"), ErrInvalidToken)
}

func TestAuthFindUsers(t *testing.T) {
	t.Parallel()

	svc, users, _ := newAuthService(t)
	ctx := context.Background()

	token := "api-token"
	require.NoError(t, users.Create(ctx, &models.User{Email: "bot@example.com", Token: &token}))

	byToken, err := svc.FindUserByToken(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, byToken)
	assert.Equal(t, "bot@example.com", byToken.Email)

	byEmail, err := svc.FindUserByEmail(ctx, "bot@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, byToken.ID, byEmail.ID)

	missing, err := svc.FindUserByToken(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
