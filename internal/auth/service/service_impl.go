package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/kay/internal/auth/domain"
	"github.com/smallbiznis/kay/internal/auth/password"
	"github.com/smallbiznis/kay/internal/clock"
	"github.com/smallbiznis/kay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	minPasswordLength = 8
	defaultTokenTTL   = 12 * time.Hour
)

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Repo  domain.Repository
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	log    *zap.Logger
	repo   domain.Repository
	genID  *snowflake.Node
	clock  clock.Clock
	secret []byte
	issuer string
	ttl    time.Duration
}

func New(p Params) (domain.Service, error) {
	log := p.Log.Named("auth.service")

	secret := strings.TrimSpace(p.Cfg.AuthJWTSecret)
	if secret == "" {
		if p.Cfg.IsProduction() {
			return nil, domain.ErrMissingSecret
		}
		generated, err := randomSecret()
		if err != nil {
			return nil, err
		}
		secret = generated
		log.Warn("AUTH_JWT_SECRET not set, using an ephemeral secret; tokens will not survive restarts")
	}

	ttl := p.Cfg.AuthTokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	return &Service{
		log:    log,
		repo:   p.Repo,
		genID:  p.GenID,
		clock:  p.Clock,
		secret: []byte(secret),
		issuer: p.Cfg.AuthJWTIssuer,
		ttl:    ttl,
	}, nil
}

func (s *Service) CreateAdmin(ctx context.Context, req domain.CreateAdminRequest) (*domain.AdminUser, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if len(req.Password) < minPasswordLength {
		return nil, domain.ErrWeakPassword
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &domain.AdminUser{
		ID:           s.genID.Generate(),
		Email:        email,
		Name:         name,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("admin user created", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *Service) EnsureAdmin(ctx context.Context, req domain.CreateAdminRequest) (*domain.AdminUser, bool, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, false, err
	}
	if count > 0 {
		return nil, false, nil
	}
	user, err := s.CreateAdmin(ctx, req)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil || req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !password.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)
	token, err := s.sign(user, now, expiresAt)
	if err != nil {
		return nil, err
	}

	if err := s.repo.TouchLogin(ctx, user.ID, now); err != nil {
		s.log.Warn("failed to record login", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	if password.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, req.Password, now)
	}
	user.LastLoginAt = &now

	return &domain.LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// upgradeHash re-hashes with the current Argon2id settings. Failures only
// cost another attempt on the next login.
func (s *Service) upgradeHash(ctx context.Context, user *domain.AdminUser, plain string, now time.Time) {
	hashed, err := password.Hash(plain)
	if err == nil {
		err = s.repo.UpdatePasswordHash(ctx, user.ID, hashed, now)
	}
	if err != nil {
		s.log.Warn("failed to upgrade password hash", zap.String("user_id", user.ID.String()), zap.Error(err))
		return
	}
	user.PasswordHash = hashed
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Claims, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, domain.ErrInvalidToken
	}

	claims := &domain.Claims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, domain.ErrInvalidToken
	}
	if _, err := snowflake.ParseString(claims.Subject); err != nil {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) Me(ctx context.Context, id string) (*domain.AdminUser, error) {
	userID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	return s.repo.FindByID(ctx, userID)
}

func (s *Service) sign(user *domain.AdminUser, now, expiresAt time.Time) (string, error) {
	claims := &domain.Claims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func normalizeEmail(value string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return "", domain.ErrInvalidEmail
	}
	return value, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
