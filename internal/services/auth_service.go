package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"dataportal/internal/logger"
	"dataportal/internal/models"
	"dataportal/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserExists         = errors.New("user already exists")
)

// UserStore is the part of the user repository the services need.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByToken(ctx context.Context, token string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
}

// TokenStore tracks issued refresh tokens and revoked token ids.
type TokenStore interface {
	StoreSession(ctx context.Context, jti string, userId string) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	Blacklist(ctx context.Context, jti string) error
	DeleteSession(ctx context.Context, jti string) error
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type AuthService struct {
	users  UserStore
	tokens TokenStore
	cfg    utils.TokenConfig
	lggr   logger.Logger
}

func NewAuthService(users UserStore, tokens TokenStore, cfg utils.TokenConfig, lggr logger.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		cfg:    cfg,
		lggr:   lggr.Named("AuthService"),
	}
}

// CreateUser registers a user with an argon2id hash of password.
func (s *AuthService) CreateUser(ctx context.Context, email, password string, level models.AccessLevel) (*models.User, error) {
	existing, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hashedPassword, err := utils.Hash(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        email,
		PasswordHash: string(hashedPassword),
		AccessLevel:  level.String(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.lggr.Infow("User created", "email", user.Email, "accessLevel", user.AccessLevel)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrInvalidCredentials
	}

	if err := utils.VerifyPassword(user.PasswordHash, password); err != nil {
		s.lggr.Debugw("Password mismatch", "email", email)
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.lggr.Warnw("Failed to update last login", "user", user.ID, "err", err)
	}
	return user, pair, nil
}

// Refresh validates a refresh token, revokes it and issues a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.verify(ctx, refreshToken, s.cfg.RefreshTokenSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.userFromClaims(ctx, claims)
	if err != nil {
		return nil, err
	}

	s.revoke(ctx, claims.ID)
	return s.issue(ctx, user)
}

// Logout revokes the token pair the refresh token belongs to.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := utils.VerifyJWT(refreshToken, s.cfg.RefreshTokenSecret)
	if err != nil {
		return ErrInvalidToken
	}
	if err := s.tokens.Blacklist(ctx, claims.ID); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if err := s.tokens.DeleteSession(ctx, claims.ID); err != nil {
		s.lggr.Warnw("Failed to delete session", "jti", claims.ID, "err", err)
	}
	return nil
}

// VerifyAccessToken validates an access token that has not been revoked.
func (s *AuthService) VerifyAccessToken(ctx context.Context, accessToken string) (*utils.Claims, error) {
	return s.verify(ctx, accessToken, s.cfg.AccessTokenSecret)
}

func (s *AuthService) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.FindUserByID(ctx, id)
}

func (s *AuthService) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.users.FindUserByEmail(ctx, email)
}

func (s *AuthService) FindUserByToken(ctx context.Context, token string) (*models.User, error) {
	return s.users.FindUserByToken(ctx, token)
}

func (s *AuthService) verify(ctx context.Context, token string, secret []byte) (*utils.Claims, error) {
	claims, err := utils.VerifyJWT(token, secret)
	if err != nil {
		return nil, ErrInvalidToken
	}
	revoked, err := s.tokens.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token: %w", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) userFromClaims(ctx context.Context, claims *utils.Claims) (*models.User, error) {
	id, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.users.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*TokenPair, error) {
	access, refresh, jti, err := utils.GenerateTokens(s.cfg, user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}
	if err := s.tokens.StoreSession(ctx, jti, user.ID.String()); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) revoke(ctx context.Context, jti string) {
	if err := s.tokens.Blacklist(ctx, jti); err != nil {
		s.lggr.Warnw("Failed to revoke token", "jti", jti, "err", err)
	}
	if err := s.tokens.DeleteSession(ctx, jti); err != nil {
		s.lggr.Warnw("Failed to delete session", "jti", jti, "err", err)
	}
}
