package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chat-relay/internal/models"
	"chat-relay/internal/repositories/postgres"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid authentication token")
	ErrUserNotFound = errors.New("user not found")
)

// Identity is who a token belongs to. It is resolved once per connection.
type Identity struct {
	UserID   uint
	Username string
}

// Claims carries the username as the subject, the same way tokens were always
// issued for this service, plus the numeric id for convenience.
type Claims struct {
	UserID uint `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

type UserLookup interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	users  UserLookup
}

func NewTokenManager(secret string, ttl time.Duration, users UserLookup) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		users:  users,
	}
}

func (m *TokenManager) Issue(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse validates signature, algorithm and expiry.
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token does not contain username", ErrInvalidToken)
	}
	return claims, nil
}

// Resolve maps a token to the identity of a user that still exists.
func (m *TokenManager) Resolve(ctx context.Context, tokenString string) (Identity, error) {
	claims, err := m.Parse(tokenString)
	if err != nil {
		return Identity{}, err
	}

	user, err := m.users.FindByUsername(ctx, claims.Subject)
	if errors.Is(err, postgres.ErrUserNotFound) {
		return Identity{}, ErrUserNotFound
	}
	if err != nil {
		return Identity{}, fmt.Errorf("failed to load user: %w", err)
	}

	return Identity{UserID: user.ID, Username: user.Username}, nil
}
