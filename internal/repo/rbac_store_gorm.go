package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"inventory-erp/internal/domain"
)

const (
	errRoleNotFound       = "role not found"
	errPermissionNotFound = "permission not found"
	errRoleNameTaken      = "role name already exists"
	errPermissionTaken    = "permission with the same module and action already exists"
)

// RBACStore 角色/权限及两张关联表；每个操作一个事务
type RBACStore struct{ db *gorm.DB }

func NewRBACStore(db *gorm.DB) *RBACStore { return &RBACStore{db: db} }

func (s *RBACStore) tx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// ---------- Role ----------

func (s *RBACStore) CreateRole(ctx context.Context, r *domain.Role) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return domain.Validation("role name is required")
	}
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := ensureAbsent(tx.Model(&domain.Role{}).Where("name = ?", r.Name), errRoleNameTaken); err != nil {
			return err
		}
		return tx.Create(r).Error
	})
	return translate(err, errRoleNotFound, errRoleNameTaken)
}

func (s *RBACStore) UpdateRole(ctx context.Context, r *domain.Role) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return domain.Validation("role name is required")
	}
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := mustExistRole(tx, r.ID); err != nil {
			return err
		}
		if err := ensureAbsent(tx.Model(&domain.Role{}).Where("name = ? AND id <> ?", r.Name, r.ID), errRoleNameTaken); err != nil {
			return err
		}
		return tx.Model(&domain.Role{}).Where("id = ?", r.ID).
			Updates(map[string]any{"name": r.Name, "description": r.Description}).Error
	})
	return translate(err, errRoleNotFound, errRoleNameTaken)
}

// DeleteRole 仍被用户或权限引用时拒绝删除
func (s *RBACStore) DeleteRole(ctx context.Context, id int64) error {
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := mustExistRole(tx, id); err != nil {
			return err
		}
		if err := ensureAbsent(tx.Model(&domain.RolePermission{}).Where("role_id = ?", id),
			"role still has permissions assigned"); err != nil {
			return err
		}
		if err := ensureAbsent(tx.Model(&domain.UserRole{}).Where("role_id = ?", id),
			"role is still assigned to users"); err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Role{}).Error
	})
	return translate(err, errRoleNotFound, "role is still referenced")
}

func (s *RBACStore) GetRole(ctx context.Context, id int64) (*domain.Role, error) {
	var r domain.Role
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, translate(err, errRoleNotFound, "")
	}
	return &r, nil
}

func (s *RBACStore) GetRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	var r domain.Role
	if err := s.db.WithContext(ctx).First(&r, "name = ?", name).Error; err != nil {
		return nil, translate(err, errRoleNotFound, "")
	}
	return &r, nil
}

func (s *RBACStore) ListRoles(ctx context.Context) ([]domain.Role, error) {
	var out []domain.Role
	if err := s.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, translate(err, "", "")
	}
	return out, nil
}

// ---------- Permission ----------

func (s *RBACStore) CreatePermission(ctx context.Context, p *domain.Permission) error {
	if err := normalizePermission(p); err != nil {
		return err
	}
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := ensureAbsent(tx.Model(&domain.Permission{}).
			Where("module = ? AND action = ?", p.Module, p.Action), errPermissionTaken); err != nil {
			return err
		}
		return tx.Create(p).Error
	})
	return translate(err, errPermissionNotFound, errPermissionTaken)
}

func (s *RBACStore) UpdatePermission(ctx context.Context, p *domain.Permission) error {
	if err := normalizePermission(p); err != nil {
		return err
	}
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := mustExistMsg(tx, &domain.Permission{}, p.ID, errPermissionNotFound); err != nil {
			return err
		}
		if err := ensureAbsent(tx.Model(&domain.Permission{}).
			Where("module = ? AND action = ? AND id <> ?", p.Module, p.Action, p.ID), errPermissionTaken); err != nil {
			return err
		}
		return tx.Model(&domain.Permission{}).Where("id = ?", p.ID).Updates(map[string]any{
			"name": p.Name, "description": p.Description, "module": p.Module, "action": p.Action,
		}).Error
	})
	return translate(err, errPermissionNotFound, errPermissionTaken)
}

func (s *RBACStore) DeletePermission(ctx context.Context, id int64) error {
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := mustExistMsg(tx, &domain.Permission{}, id, errPermissionNotFound); err != nil {
			return err
		}
		if err := ensureAbsent(tx.Model(&domain.RolePermission{}).Where("permission_id = ?", id),
			"permission is still assigned to roles"); err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Permission{}).Error
	})
	return translate(err, errPermissionNotFound, "permission is still referenced")
}

func (s *RBACStore) GetPermission(ctx context.Context, id int64) (*domain.Permission, error) {
	var p domain.Permission
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err, errPermissionNotFound, "")
	}
	return &p, nil
}

// ListPermissions module 为空时返回全部
func (s *RBACStore) ListPermissions(ctx context.Context, module string) ([]domain.Permission, error) {
	q := s.db.WithContext(ctx).Order("id")
	if m := strings.TrimSpace(module); m != "" {
		q = q.Where("module = ?", m)
	}
	var out []domain.Permission
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err, "", "")
	}
	return out, nil
}

func (s *RBACStore) ListModules(ctx context.Context) ([]string, error) {
	var out []string
	err := s.db.WithContext(ctx).Model(&domain.Permission{}).
		Distinct().Order("module").Pluck("module", &out).Error
	if err != nil {
		return nil, translate(err, "", "")
	}
	return out, nil
}

// ---------- 集合对齐 ----------

// ReconcileRolePermissions 让角色的权限集合等于 desired（差量增删，整体一个事务）
func (s *RBACStore) ReconcileRolePermissions(ctx context.Context, roleID int64, desired []int64) (domain.Diff, error) {
	var diff domain.Diff
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := mustExistRole(tx, roleID); err != nil {
			return err
		}
		want := uniqueIDs(desired)
		if err := allExist(tx, &domain.Permission{}, want, errPermissionNotFound); err != nil {
			return err
		}
		var current []int64
		if err := tx.Model(&domain.RolePermission{}).Where("role_id = ?", roleID).
			Pluck("permission_id", &current).Error; err != nil {
			return err
		}
		diff = diffIDs(current, want)
		if len(diff.Removed) > 0 {
			if err := tx.Where("role_id = ? AND permission_id IN ?", roleID, diff.Removed).
				Delete(&domain.RolePermission{}).Error; err != nil {
				return err
			}
		}
		if len(diff.Added) > 0 {
			rows := make([]domain.RolePermission, 0, len(diff.Added))
			for _, pid := range diff.Added {
				rows = append(rows, domain.RolePermission{RoleID: roleID, PermissionID: pid})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Diff{}, translate(err, errRoleNotFound, "role permissions changed concurrently")
	}
	return diff, nil
}

// ReconcileUserRoles 与 ReconcileRolePermissions 同一算法，作用于 user_roles
func (s *RBACStore) ReconcileUserRoles(ctx context.Context, userID int64, desired []int64) (domain.Diff, error) {
	var diff domain.Diff
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := mustExistMsg(tx, &domain.User{}, userID, errUserNotFound); err != nil {
			return err
		}
		want := uniqueIDs(desired)
		if err := allExist(tx, &domain.Role{}, want, errRoleNotFound); err != nil {
			return err
		}
		var current []int64
		if err := tx.Model(&domain.UserRole{}).Where("user_id = ?", userID).
			Pluck("role_id", &current).Error; err != nil {
			return err
		}
		diff = diffIDs(current, want)
		if len(diff.Removed) > 0 {
			if err := tx.Where("user_id = ? AND role_id IN ?", userID, diff.Removed).
				Delete(&domain.UserRole{}).Error; err != nil {
				return err
			}
		}
		if len(diff.Added) > 0 {
			rows := make([]domain.UserRole, 0, len(diff.Added))
			for _, rid := range diff.Added {
				rows = append(rows, domain.UserRole{UserID: userID, RoleID: rid})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Diff{}, translate(err, errUserNotFound, "user roles changed concurrently")
	}
	return diff, nil
}

// ---------- 关联查询 ----------

func (s *RBACStore) ResolveUserRoles(ctx context.Context, userID int64) ([]domain.Role, error) {
	var out []domain.Role
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := mustExistMsg(tx, &domain.User{}, userID, errUserNotFound); err != nil {
			return err
		}
		return tx.Joins("JOIN user_roles ON user_roles.role_id = roles.id").
			Where("user_roles.user_id = ?", userID).
			Order("roles.id").Find(&out).Error
	})
	if err != nil {
		return nil, translate(err, errUserNotFound, "")
	}
	return out, nil
}

// ResolveUserPermissions 用户所有角色的权限并集，同一权限只出现一次
func (s *RBACStore) ResolveUserPermissions(ctx context.Context, userID int64) ([]domain.Permission, error) {
	out := []domain.Permission{}
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := mustExistMsg(tx, &domain.User{}, userID, errUserNotFound); err != nil {
			return err
		}
		var roleIDs []int64
		if err := tx.Model(&domain.UserRole{}).Where("user_id = ?", userID).
			Pluck("role_id", &roleIDs).Error; err != nil {
			return err
		}
		if len(roleIDs) == 0 {
			return nil
		}
		sub := tx.Model(&domain.RolePermission{}).Select("permission_id").Where("role_id IN ?", roleIDs)
		return tx.Where("id IN (?)", sub).Order("id").Find(&out).Error
	})
	if err != nil {
		return nil, translate(err, errUserNotFound, "")
	}
	return out, nil
}

func (s *RBACStore) ResolveRolePermissions(ctx context.Context, roleID int64) ([]domain.Permission, error) {
	var out []domain.Permission
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := mustExistRole(tx, roleID); err != nil {
			return err
		}
		return tx.Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
			Where("role_permissions.role_id = ?", roleID).
			Order("permissions.id").Find(&out).Error
	})
	if err != nil {
		return nil, translate(err, errRoleNotFound, "")
	}
	return out, nil
}

func (s *RBACStore) ResolveUsersInRole(ctx context.Context, roleID int64) ([]domain.User, error) {
	var out []domain.User
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := mustExistRole(tx, roleID); err != nil {
			return err
		}
		return tx.Joins("JOIN user_roles ON user_roles.user_id = users.id").
			Where("user_roles.role_id = ?", roleID).
			Order("users.id").Find(&out).Error
	})
	if err != nil {
		return nil, translate(err, errRoleNotFound, "")
	}
	return out, nil
}

func (s *RBACStore) ResolveRolesWithPermission(ctx context.Context, permissionID int64) ([]domain.Role, error) {
	var out []domain.Role
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := mustExistMsg(tx, &domain.Permission{}, permissionID, errPermissionNotFound); err != nil {
			return err
		}
		return tx.Joins("JOIN role_permissions ON role_permissions.role_id = roles.id").
			Where("role_permissions.permission_id = ?", permissionID).
			Order("roles.id").Find(&out).Error
	})
	if err != nil {
		return nil, translate(err, errPermissionNotFound, "")
	}
	return out, nil
}

// ---------- helpers ----------

func normalizePermission(p *domain.Permission) error {
	p.Module = strings.TrimSpace(p.Module)
	p.Action = strings.TrimSpace(p.Action)
	p.Name = strings.TrimSpace(p.Name)
	if p.Module == "" || p.Action == "" {
		return domain.Validation("permission module and action are required")
	}
	if strings.Contains(p.Module, ".") || strings.Contains(p.Action, ".") {
		return domain.Validation("permission module and action must not contain '.'")
	}
	if p.Name == "" {
		p.Name = p.Action + " " + p.Module
	}
	return nil
}

func ensureAbsent(q *gorm.DB, conflictMsg string) error {
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return domain.Conflict(conflictMsg)
	}
	return nil
}

func mustExistRole(tx *gorm.DB, id int64) error {
	return mustExistMsg(tx, &domain.Role{}, id, errRoleNotFound)
}

func mustExistMsg(tx *gorm.DB, model any, id int64, notFoundMsg string) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound(notFoundMsg)
	}
	return nil
}

func allExist(tx *gorm.DB, model any, ids []int64, notFoundMsg string) error {
	if len(ids) == 0 {
		return nil
	}
	var found []int64
	if err := tx.Model(model).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return err
	}
	if len(found) == len(ids) {
		return nil
	}
	have := make(map[int64]struct{}, len(found))
	for _, id := range found {
		have[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			return domain.NotFound(fmt.Sprintf("%s: %d", notFoundMsg, id))
		}
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// diffIDs 返回 desired-current（新增）和 current-desired（移除），均升序
func diffIDs(current, desired []int64) domain.Diff {
	cur := make(map[int64]struct{}, len(current))
	for _, id := range current {
		cur[id] = struct{}{}
	}
	want := make(map[int64]struct{}, len(desired))
	for _, id := range desired {
		want[id] = struct{}{}
	}
	d := domain.Diff{Added: []int64{}, Removed: []int64{}}
	for _, id := range desired {
		if _, ok := cur[id]; !ok {
			d.Added = append(d.Added, id)
		}
	}
	for _, id := range current {
		if _, ok := want[id]; !ok {
			d.Removed = append(d.Removed, id)
		}
	}
	sort.Slice(d.Added, func(i, j int) bool { return d.Added[i] < d.Added[j] })
	sort.Slice(d.Removed, func(i, j int) bool { return d.Removed[i] < d.Removed[j] })
	return d
}
