package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"inventory-erp/internal/domain"
)

const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

var (
	defaultModules = []string{"User", "Product", "Supplier", "PurchaseOrder"}
	defaultActions = []string{"View", "Create", "Edit", "Delete"}
)

type BootstrapConfig struct {
	AdminUsername string
	AdminEmail    string
	AdminPassword string
	AdminPhone    string
}

type BootstrapResult struct {
	Skipped            bool
	PermissionsCreated int
	AdminUserID        int64
}

// Bootstrap 首次启动写入默认权限、Admin/User 角色和管理员账号；可重复调用。
// 角色已存在时跳过权限/角色初始化，但管理员账号每次都会检查
func Bootstrap(ctx context.Context, rbac domain.RBACStore, users domain.UserRepository, authSvc *AuthService, cfg BootstrapConfig, l *zap.Logger) (BootstrapResult, error) {
	if l == nil {
		l = zap.NewNop()
	}
	l = l.Named("bootstrap")
	var res BootstrapResult

	done, err := defaultRolesExist(ctx, rbac)
	if err != nil {
		return res, err
	}
	var admin *domain.Role
	if done {
		res.Skipped = true
		l.Debug("default roles present, skipping role seed")
		if admin, err = rbac.GetRoleByName(ctx, RoleAdmin); err != nil {
			return res, err
		}
	} else {
		if admin, err = seedRoles(ctx, rbac, &res); err != nil {
			return res, err
		}
	}

	if cfg.AdminPassword == "" {
		l.Warn("seed admin password not configured, admin account not checked")
		return res, nil
	}
	id, created, err := ensureAdminUser(ctx, rbac, users, authSvc, cfg, admin.ID)
	if err != nil {
		return res, err
	}
	res.AdminUserID = id
	l.Info("bootstrap done",
		zap.Int("permissions_created", res.PermissionsCreated),
		zap.Int64("admin_user_id", id),
		zap.Bool("admin_created", created))
	return res, nil
}

// seedRoles 写入默认权限和两个默认角色，返回 Admin 角色
func seedRoles(ctx context.Context, rbac domain.RBACStore, res *BootstrapResult) (*domain.Role, error) {
	for _, m := range defaultModules {
		for _, a := range defaultActions {
			p := &domain.Permission{Name: a + " " + m, Description: a + " " + m + " records", Module: m, Action: a}
			err := rbac.CreatePermission(ctx, p)
			switch {
			case err == nil:
				res.PermissionsCreated++
			case errors.Is(err, domain.ErrConflict):
			default:
				return nil, err
			}
		}
	}
	all, err := rbac.ListPermissions(ctx, "")
	if err != nil {
		return nil, err
	}
	var allIDs, viewIDs []int64
	for _, p := range all {
		allIDs = append(allIDs, p.ID)
		if p.Action == "View" {
			viewIDs = append(viewIDs, p.ID)
		}
	}

	admin, err := ensureRole(ctx, rbac, RoleAdmin, "System administrator with every permission")
	if err != nil {
		return nil, err
	}
	userRole, err := ensureRole(ctx, rbac, RoleUser, "Regular user with view permissions")
	if err != nil {
		return nil, err
	}
	if _, err := rbac.ReconcileRolePermissions(ctx, admin.ID, allIDs); err != nil {
		return nil, err
	}
	if _, err := rbac.ReconcileRolePermissions(ctx, userRole.ID, viewIDs); err != nil {
		return nil, err
	}
	return admin, nil
}

func defaultRolesExist(ctx context.Context, rbac domain.RBACStore) (bool, error) {
	for _, name := range []string{RoleAdmin, RoleUser} {
		_, err := rbac.GetRoleByName(ctx, name)
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

func ensureRole(ctx context.Context, rbac domain.RBACStore, name, desc string) (*domain.Role, error) {
	r := &domain.Role{Name: name, Description: desc}
	err := rbac.CreateRole(ctx, r)
	if errors.Is(err, domain.ErrConflict) {
		return rbac.GetRoleByName(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ensureAdminUser 管理员账号不存在时创建并授予 Admin；已存在时只保证带有 Admin 角色，不改密码
func ensureAdminUser(ctx context.Context, rbac domain.RBACStore, users domain.UserRepository, authSvc *AuthService, cfg BootstrapConfig, adminRoleID int64) (int64, bool, error) {
	created := false
	u, err := users.FindByIdentifier(ctx, cfg.AdminUsername)
	if errors.Is(err, domain.ErrNotFound) {
		var phone *string
		if cfg.AdminPhone != "" {
			phone = &cfg.AdminPhone
		}
		u, err = authSvc.Register(ctx, RegisterInput{
			Username:        cfg.AdminUsername,
			Email:           cfg.AdminEmail,
			Password:        cfg.AdminPassword,
			ConfirmPassword: cfg.AdminPassword,
			Phone:           phone,
		})
		created = err == nil
	}
	if err != nil {
		return 0, false, err
	}

	current, err := rbac.ResolveUserRoles(ctx, u.ID)
	if err != nil {
		return 0, false, err
	}
	want := []int64{adminRoleID}
	for _, r := range current {
		want = append(want, r.ID)
	}
	if _, err := rbac.ReconcileUserRoles(ctx, u.ID, want); err != nil {
		return 0, false, err
	}
	return u.ID, created, nil
}
