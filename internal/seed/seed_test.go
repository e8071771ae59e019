package seed

import (
	"context"
	"testing"

	authdomain "github.com/smallbiznis/kay/internal/auth/domain"
	"github.com/smallbiznis/kay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type authMock struct {
	mock.Mock
	authdomain.Service
}

func (m *authMock) EnsureAdmin(ctx context.Context, req authdomain.CreateAdminRequest) (*authdomain.AdminUser, bool, error) {
	args := m.Called(ctx, req)
	user, _ := args.Get(0).(*authdomain.AdminUser)
	return user, args.Bool(1), args.Error(2)
}

func TestEnsureBootstrapAdminSkipsWithoutCredentials(t *testing.T) {
	auth := &authMock{}
	err := EnsureBootstrapAdmin(context.Background(), config.BootstrapConfig{AdminEmail: "root@kay.test"}, auth, zap.NewNop())
	assert.NoError(t, err)
	auth.AssertNotCalled(t, "EnsureAdmin", mock.Anything, mock.Anything)
}

func TestEnsureBootstrapAdminCreates(t *testing.T) {
	auth := &authMock{}
	auth.On("EnsureAdmin", mock.Anything, authdomain.CreateAdminRequest{
		Email:    "root@kay.test",
		Name:     "Root",
		Password: "s3cret-pass",
	}).Return(&authdomain.AdminUser{Email: "root@kay.test"}, true, nil).Once()

	err := EnsureBootstrapAdmin(context.Background(), config.BootstrapConfig{
		AdminEmail:    " root@kay.test ",
		AdminName:     "Root",
		AdminPassword: "s3cret-pass",
	}, auth, zap.NewNop())
	assert.NoError(t, err)
	auth.AssertExpectations(t)
}
