package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chat-relay/internal/models"
	"chat-relay/internal/repositories/postgres"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type UserStore interface {
	UserLookup
	Create(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
}

type AuthService struct {
	users  UserStore
	tokens *TokenManager
}

func NewAuthService(users UserStore, tokens *TokenManager) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
	}
}

// Register handles user registration
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.UserResponse, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, postgres.ErrUsernameTaken) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	slog.Info("User registered", "userID", user.ID, "username", user.Username)
	return &models.UserResponse{ID: user.ID, Username: user.Username}, nil
}

// Login checks the password and issues an access token
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error) {
	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &models.TokenResponse{AccessToken: token, TokenType: "bearer"}, nil
}

func (s *AuthService) DeleteAccount(ctx context.Context, userID uint) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	slog.Info("User deleted", "userID", userID)
	return nil
}
