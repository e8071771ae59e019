package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
)

type Service interface {
	CreateAdmin(ctx context.Context, req CreateAdminRequest) (*AdminUser, error)
	// EnsureAdmin creates the account only when no admin exists yet.
	EnsureAdmin(ctx context.Context, req CreateAdminRequest) (*AdminUser, bool, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Authenticate(ctx context.Context, rawToken string) (*Claims, error)
	Me(ctx context.Context, id string) (*AdminUser, error)
}

type Repository interface {
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, user *AdminUser) error
	FindByEmail(ctx context.Context, email string) (*AdminUser, error)
	FindByID(ctx context.Context, id snowflake.ID) (*AdminUser, error)
	TouchLogin(ctx context.Context, id snowflake.ID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id snowflake.ID, hash string, at time.Time) error
}

type CreateAdminRequest struct {
	Email    string
	Name     string
	Password string
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      *AdminUser `json:"user"`
}

// Claims are carried in the admin bearer token.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidName        = errors.New("invalid_name")
	ErrWeakPassword       = errors.New("weak_password")
	ErrUserExists         = errors.New("user_exists")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrMissingSecret      = errors.New("missing_jwt_secret")
)
