package service

import (
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-erp/internal/core/cache"
	"inventory-erp/internal/domain"
)

func TestRBACServiceRoleLifecycle(t *testing.T) {
	e := newEnv(t)
	svc := NewRBACService(e.rbac, nil, nil)

	_, err := svc.CreateRole(e.ctx, RoleInput{Name: ""})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	r, err := svc.CreateRole(e.ctx, RoleInput{Name: "Buyer", Description: "purchasing"})
	require.NoError(t, err)
	_, err = svc.CreateRole(e.ctx, RoleInput{Name: "Buyer"})
	assert.True(t, errors.Is(err, domain.ErrConflict))

	p, err := svc.CreatePermission(e.ctx, PermissionInput{Module: "PurchaseOrder", Action: "Create"})
	require.NoError(t, err)
	assert.Equal(t, "PurchaseOrder.Create", p.Code())

	diff, err := svc.SetRolePermissions(e.ctx, r.ID, []int64{p.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{p.ID}, diff.Added)

	err = svc.DeleteRole(e.ctx, r.ID)
	assert.True(t, errors.Is(err, domain.ErrConflict), "role with permissions cannot be deleted")
	err = svc.DeletePermission(e.ctx, p.ID)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	roles, err := svc.PermissionRoles(e.ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "Buyer", roles[0].Name)

	_, err = svc.SetRolePermissions(e.ctx, r.ID, nil)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteRole(e.ctx, r.ID))
	_, err = svc.GetRole(e.ctx, r.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRBACServiceRoleUsers(t *testing.T) {
	e := newEnv(t)
	svc := NewRBACService(e.rbac, nil, nil)
	u := e.register(t, "alice", "Secret1!")
	r, err := svc.CreateRole(e.ctx, RoleInput{Name: "Clerk"})
	require.NoError(t, err)
	_, err = e.admin.AssignRoles(e.ctx, u.ID, []int64{r.ID})
	require.NoError(t, err)

	users, err := svc.RoleUsers(e.ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	_, err = svc.RoleUsers(e.ctx, 999)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRBACServiceModulesCache(t *testing.T) {
	e := newEnv(t)
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	svc := NewRBACService(e.rbac, c, nil)

	_, err := svc.CreatePermission(e.ctx, PermissionInput{Module: "Product", Action: "View"})
	require.NoError(t, err)
	mods, err := svc.ListModules(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Product"}, mods)
	assert.True(t, mr.Exists(modulesCacheKey))

	// 写操作后缓存失效
	_, err = svc.CreatePermission(e.ctx, PermissionInput{Module: "Supplier", Action: "View"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(modulesCacheKey))
	mods, err = svc.ListModules(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Product", "Supplier"}, mods)
}
