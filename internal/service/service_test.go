package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-erp/internal/core/auth"
	"inventory-erp/internal/domain"
	"inventory-erp/internal/repo"
	"inventory-erp/internal/testutil"
)

type env struct {
	ctx   context.Context
	users *repo.UserRepo
	rbac  *repo.RBACStore
	jwt   *auth.JWTer
	auth  *AuthService
	admin *UserService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	j, err := auth.NewJWTer(auth.IssuerConfig{
		Secret:   "0123456789abcdef0123456789abcdef",
		Issuer:   "inventory-erp",
		Audience: "inventory-erp-clients",
		TTL:      time.Hour,
	})
	require.NoError(t, err)
	users := repo.NewUserRepo(db)
	rbac := repo.NewRBACStore(db)
	o := Options{PhoneRegion: "CN"}
	return &env{
		ctx:   context.Background(),
		users: users,
		rbac:  rbac,
		jwt:   j,
		auth:  NewAuthService(users, rbac, j, o),
		admin: NewUserService(users, rbac, o),
	}
}

func (e *env) register(t *testing.T, name, pw string) *domain.User {
	t.Helper()
	u, err := e.auth.Register(e.ctx, RegisterInput{
		Username: name, Email: name + "@x.com", Password: pw, ConfirmPassword: pw,
	})
	require.NoError(t, err)
	return u
}

func TestLoginFlowWithRoles(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice", "Secret1!")
	assert.NotZero(t, alice.ID)
	assert.True(t, alice.IsActive)

	res, err := e.auth.Authenticate(e.ctx, "alice", "Secret1!")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Empty(t, res.Roles)
	assert.Empty(t, res.Permissions)

	_, err = e.auth.Authenticate(e.ctx, "alice", "WrongPass")
	assert.Equal(t, domain.ErrInvalidCredentials, err)

	view := &domain.Permission{Module: "Product", Action: "View"}
	require.NoError(t, e.rbac.CreatePermission(e.ctx, view))
	userRole := &domain.Role{Name: "User"}
	require.NoError(t, e.rbac.CreateRole(e.ctx, userRole))
	_, err = e.rbac.ReconcileRolePermissions(e.ctx, userRole.ID, []int64{view.ID})
	require.NoError(t, err)
	_, err = e.rbac.ReconcileUserRoles(e.ctx, alice.ID, []int64{userRole.ID})
	require.NoError(t, err)

	res, err = e.auth.Authenticate(e.ctx, "alice@x.com", "Secret1!")
	require.NoError(t, err)
	assert.Equal(t, []string{"User"}, res.Roles)
	assert.Equal(t, []string{"Product.View"}, res.Permissions)

	claims, err := e.jwt.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{"User"}, claims.Roles)
	assert.Equal(t, []string{"Product.View"}, claims.Permissions)
	assert.Equal(t, "alice", claims.Username)

	got, err := e.users.FindByID(e.ctx, alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastLogin)
}

func TestAuthenticateFailsUniformly(t *testing.T) {
	e := newEnv(t)
	bob := e.register(t, "bob", "Secret1!")
	require.NoError(t, e.admin.Deactivate(e.ctx, bob.ID))
	e.register(t, "carol", "Secret1!")

	_, unknown := e.auth.Authenticate(e.ctx, "nobody", "Secret1!")
	_, inactive := e.auth.Authenticate(e.ctx, "bob", "Secret1!")
	_, wrong := e.auth.Authenticate(e.ctx, "carol", "nope")

	for _, err := range []error{unknown, inactive, wrong} {
		require.Error(t, err)
		assert.Equal(t, domain.ErrInvalidCredentials, err)
		assert.True(t, errors.Is(err, domain.ErrUnauthorized))
		assert.Equal(t, "invalid credentials", err.Error())
	}
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)
	e.register(t, "alice", "Secret1!")

	_, err := e.auth.Register(e.ctx, RegisterInput{Username: "dave", Email: "dave@x.com", Password: "Secret1!", ConfirmPassword: "Secret2!"})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = e.auth.Register(e.ctx, RegisterInput{Username: "dave", Email: "not-an-email", Password: "Secret1!", ConfirmPassword: "Secret1!"})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = e.auth.Register(e.ctx, RegisterInput{Username: "alice", Email: "new@x.com", Password: "Secret1!", ConfirmPassword: "Secret1!"})
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.Equal(t, "username already taken", err.Error())

	_, err = e.auth.Register(e.ctx, RegisterInput{Username: "eve", Email: "alice@x.com", Password: "Secret1!", ConfirmPassword: "Secret1!"})
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.Equal(t, "email already taken", err.Error())

	bad := "12"
	_, err = e.auth.Register(e.ctx, RegisterInput{Username: "frank", Email: "frank@x.com", Password: "Secret1!", ConfirmPassword: "Secret1!", Phone: &bad})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	phone := "138 0013 8000"
	u, err := e.auth.Register(e.ctx, RegisterInput{Username: "grace", Email: "grace@x.com", Password: "Secret1!", ConfirmPassword: "Secret1!", Phone: &phone})
	require.NoError(t, err)
	require.NotNil(t, u.Phone)
	assert.Equal(t, "+8613800138000", *u.Phone)
}

func TestChangePassword(t *testing.T) {
	e := newEnv(t)
	u := e.register(t, "alice", "Secret1!")

	err := e.auth.ChangePassword(e.ctx, ChangePasswordInput{UserID: u.ID, CurrentPassword: "wrong", NewPassword: "NewSecret1!", ConfirmNewPassword: "NewSecret1!"})
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	_, err = e.auth.Authenticate(e.ctx, "alice", "Secret1!")
	require.NoError(t, err, "old password must still work")

	err = e.auth.ChangePassword(e.ctx, ChangePasswordInput{UserID: u.ID, CurrentPassword: "Secret1!", NewPassword: "NewSecret1!", ConfirmNewPassword: "Mismatch1!"})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	err = e.auth.ChangePassword(e.ctx, ChangePasswordInput{UserID: 999, CurrentPassword: "Secret1!", NewPassword: "NewSecret1!", ConfirmNewPassword: "NewSecret1!"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	before, err := e.users.FindByID(e.ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, e.auth.ChangePassword(e.ctx, ChangePasswordInput{UserID: u.ID, CurrentPassword: "Secret1!", NewPassword: "NewSecret1!", ConfirmNewPassword: "NewSecret1!"}))
	after, err := e.users.FindByID(e.ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, before.PasswordSalt, after.PasswordSalt)

	_, err = e.auth.Authenticate(e.ctx, "alice", "Secret1!")
	assert.Equal(t, domain.ErrInvalidCredentials, err)
	_, err = e.auth.Authenticate(e.ctx, "alice", "NewSecret1!")
	assert.NoError(t, err)
}

func TestResetPassword(t *testing.T) {
	e := newEnv(t)
	u := e.register(t, "admin", "Admin123!")

	plain, err := e.auth.ResetPassword(e.ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, plain, auth.DefaultPasswordLength)

	_, err = e.auth.Authenticate(e.ctx, "admin", plain)
	require.NoError(t, err)
	_, err = e.auth.Authenticate(e.ctx, "admin", "Admin123!")
	assert.Equal(t, domain.ErrInvalidCredentials, err)

	stored, err := e.users.FindByID(e.ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, plain, stored.PasswordHash)
	assert.NotContains(t, stored.PasswordHash, plain)

	_, err = e.auth.ResetPassword(e.ctx, 999)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUserServiceProfileAndRoles(t *testing.T) {
	e := newEnv(t)
	u := e.register(t, "alice", "Secret1!")
	r := &domain.Role{Name: "Buyer"}
	require.NoError(t, e.rbac.CreateRole(e.ctx, r))

	diff, err := e.admin.AssignRoles(e.ctx, u.ID, []int64{r.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{r.ID}, diff.Added)

	phone := "13800138000"
	v, err := e.admin.UpdateProfile(e.ctx, u.ID, ProfileInput{Phone: &phone, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "+8613800138000", *v.Phone)
	assert.Equal(t, []string{"Buyer"}, v.Roles)

	require.NoError(t, e.admin.Deactivate(e.ctx, u.ID))
	v, err = e.admin.GetUser(e.ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, v.IsActive, "soft delete keeps the row")

	list, total, err := e.admin.ListUsers(e.ctx, domain.ListUsersQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "alice", list[0].Username)

	_, err = e.admin.GetUser(e.ctx, 999)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	err = e.admin.Deactivate(e.ctx, 999)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUnknownUserRunsFullHash(t *testing.T) {
	e := newEnv(t)
	require.NotEmpty(t, e.auth.dummySalt)
	require.NotEmpty(t, e.auth.dummyHash)
	assert.True(t, auth.VerifyPassword("dummy-password", e.auth.dummyHash, e.auth.dummySalt))
}
