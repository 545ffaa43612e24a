// Package jwt implements session tokens as HS256-signed JWTs.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/news-portal/internal/domain"
	"github.com/bissquit/news-portal/internal/identity"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "newsportal"

// Config contains token settings.
type Config struct {
	SecretKey     string
	TokenDuration time.Duration
}

// UserFinder loads the user a token was issued for.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*domain.User, bool, error)
}

// Claims are the custom claims carried by a session token.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and validates session tokens.
type Authenticator struct {
	config Config
	users  UserFinder
	now    func() time.Time
}

// NewAuthenticator creates a new JWT authenticator.
func NewAuthenticator(config Config, users UserFinder) *Authenticator {
	return &Authenticator{
		config: config,
		users:  users,
		now:    time.Now,
	}
}

// GenerateToken issues a token for user.
func (a *Authenticator) GenerateToken(_ context.Context, user *domain.User) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.config.TokenDuration)

	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// ValidateToken checks the token signature and expiry and reloads its user,
// so deleted accounts and role changes take effect immediately.
func (a *Authenticator) ValidateToken(ctx context.Context, tokenString string) (*domain.User, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(_ *jwt.Token) (any, error) {
			return []byte(a.config.SecretKey), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", identity.ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, identity.ErrInvalidToken
	}

	user, ok, err := a.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("load token user: %w", err)
	}
	if !ok {
		return nil, errors.Join(identity.ErrInvalidToken, identity.ErrUserNotFound)
	}
	return user, nil
}
