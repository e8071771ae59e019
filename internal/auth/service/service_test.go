package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/kay/internal/auth/domain"
	"github.com/smallbiznis/kay/internal/auth/password"
	"github.com/smallbiznis/kay/internal/auth/repository"
	"github.com/smallbiznis/kay/internal/clock"
	"github.com/smallbiznis/kay/internal/config"
	"github.com/smallbiznis/kay/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (authdomain.Service, *clock.FakeClock) {
	t.Helper()
	svc, clk, _ := newTestServiceWithDB(t)
	return svc, clk
}

func newTestServiceWithDB(t *testing.T) (authdomain.Service, *clock.FakeClock, *gorm.DB) {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&authdomain.AdminUser{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	svc, err := New(Params{
		Cfg: config.Config{
			Environment:   "test",
			AuthJWTSecret: "test-secret",
			AuthJWTIssuer: "kay",
			AuthTokenTTL:  time.Hour,
		},
		Log:   zap.NewNop(),
		Repo:  repository.New(dbConn),
		GenID: node,
		Clock: clk,
	})
	require.NoError(t, err)
	return svc, clk, dbConn
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateAdmin(ctx, authdomain.CreateAdminRequest{
		Email:    "Owner@Example.com",
		Name:     "Owner",
		Password: "correct-password",
	})
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", user.Email)

	res, err := svc.Login(ctx, authdomain.LoginRequest{Email: "owner@example.com", Password: "correct-password"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.NotNil(t, res.User.LastLoginAt)

	claims, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, "owner@example.com", claims.Email)

	me, err := svc.Me(ctx, claims.Subject)
	require.NoError(t, err)
	assert.Equal(t, "Owner", me.Name)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateAdmin(ctx, authdomain.CreateAdminRequest{Email: "a@example.com", Name: "A", Password: "correct-password"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, authdomain.LoginRequest{Email: "a@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, authdomain.LoginRequest{Email: "nobody@example.com", Password: "whatever1"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)
}

func TestAuthenticateRejectsExpiredAndGarbage(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateAdmin(ctx, authdomain.CreateAdminRequest{Email: "a@example.com", Name: "A", Password: "correct-password"})
	require.NoError(t, err)
	res, err := svc.Login(ctx, authdomain.LoginRequest{Email: "a@example.com", Password: "correct-password"})
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = svc.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, authdomain.ErrInvalidToken)

	_, err = svc.Authenticate(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, authdomain.ErrInvalidToken)
}

func TestCreateAdminValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateAdmin(ctx, authdomain.CreateAdminRequest{Email: "bad", Name: "A", Password: "longenough"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidEmail)

	_, err = svc.CreateAdmin(ctx, authdomain.CreateAdminRequest{Email: "a@example.com", Name: "A", Password: "short"})
	assert.ErrorIs(t, err, authdomain.ErrWeakPassword)

	_, err = svc.CreateAdmin(ctx, authdomain.CreateAdminRequest{Email: "a@example.com", Name: "A", Password: "longenough"})
	require.NoError(t, err)
	_, err = svc.CreateAdmin(ctx, authdomain.CreateAdminRequest{Email: "a@example.com", Name: "B", Password: "longenough"})
	assert.ErrorIs(t, err, authdomain.ErrUserExists)
}

func TestEnsureAdminOnlyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req := authdomain.CreateAdminRequest{Email: "boot@example.com", Name: "Boot", Password: "bootstrap-pass"}
	_, created, err := svc.EnsureAdmin(ctx, req)
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = svc.EnsureAdmin(ctx, req)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestNewRequiresSecretInProduction(t *testing.T) {
	_, err := New(Params{
		Cfg: config.Config{Environment: "production"},
		Log: zap.NewNop(),
	})
	assert.ErrorIs(t, err, authdomain.ErrMissingSecret)
}

func TestLoginUpgradesLegacyHash(t *testing.T) {
	svc, _, conn := newTestServiceWithDB(t)
	ctx := context.Background()

	user, err := svc.CreateAdmin(ctx, authdomain.CreateAdminRequest{Email: "legacy@example.com", Name: "Legacy", Password: "correct-password"})
	require.NoError(t, err)

	salt := []byte("0123456789abcdef")
	key := argon2.IDKey([]byte("correct-password"), salt, 2, 16*1024, 1, 16)
	legacy := fmt.Sprintf("$argon2id$v=19$m=16384,t=2,p=1$%s$%s",
		base64.RawStdEncoding.EncodeToString(salt), base64.RawStdEncoding.EncodeToString(key))
	require.NoError(t, conn.Model(&authdomain.AdminUser{}).Where("id = ?", user.ID).Update("password_hash", legacy).Error)

	_, err = svc.Login(ctx, authdomain.LoginRequest{Email: "legacy@example.com", Password: "correct-password"})
	require.NoError(t, err)

	var stored authdomain.AdminUser
	require.NoError(t, conn.First(&stored, "id = ?", user.ID).Error)
	assert.NotEqual(t, legacy, stored.PasswordHash)
	assert.False(t, password.NeedsRehash(stored.PasswordHash))

	_, err = svc.Login(ctx, authdomain.LoginRequest{Email: "legacy@example.com", Password: "correct-password"})
	require.NoError(t, err)
}
