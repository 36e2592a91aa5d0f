package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"inventory-erp/internal/core/cache"
	"inventory-erp/internal/domain"
)

const (
	modulesCacheKey = "rbac:modules"
	modulesCacheTTL = 10 * time.Minute
)

// RBACService 角色/权限维护；模块列表可选走 redis 缓存
type RBACService struct {
	store domain.RBACStore
	cache *cache.Cache
	log   *zap.Logger
}

func NewRBACService(store domain.RBACStore, c *cache.Cache, l *zap.Logger) *RBACService {
	if l == nil {
		l = zap.NewNop()
	}
	return &RBACService{store: store, cache: c, log: l.Named("rbac")}
}

type RoleInput struct {
	Name        string `json:"name"        validate:"required,max=64"`
	Description string `json:"description" validate:"max=255"`
}

type PermissionInput struct {
	Name        string `json:"name"        validate:"max=64"`
	Description string `json:"description" validate:"max=255"`
	Module      string `json:"module"      validate:"required,max=64"`
	Action      string `json:"action"      validate:"required,max=64"`
}

// ---------- Role ----------

func (s *RBACService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *RBACService) GetRole(ctx context.Context, id int64) (*domain.Role, error) {
	return s.store.GetRole(ctx, id)
}

func (s *RBACService) CreateRole(ctx context.Context, in RoleInput) (*domain.Role, error) {
	if err := checkStruct(in); err != nil {
		return nil, err
	}
	r := &domain.Role{Name: in.Name, Description: in.Description}
	if err := s.store.CreateRole(ctx, r); err != nil {
		return nil, err
	}
	s.log.Info("role created", zap.Int64("role_id", r.ID), zap.String("name", r.Name))
	return r, nil
}

func (s *RBACService) UpdateRole(ctx context.Context, id int64, in RoleInput) (*domain.Role, error) {
	if err := checkStruct(in); err != nil {
		return nil, err
	}
	r := &domain.Role{ID: id, Name: in.Name, Description: in.Description}
	if err := s.store.UpdateRole(ctx, r); err != nil {
		return nil, err
	}
	s.log.Info("role updated", zap.Int64("role_id", id))
	return s.store.GetRole(ctx, id)
}

func (s *RBACService) DeleteRole(ctx context.Context, id int64) error {
	if err := s.store.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.log.Info("role deleted", zap.Int64("role_id", id))
	return nil
}

func (s *RBACService) RolePermissions(ctx context.Context, id int64) ([]domain.Permission, error) {
	return s.store.ResolveRolePermissions(ctx, id)
}

func (s *RBACService) SetRolePermissions(ctx context.Context, id int64, permissionIDs []int64) (domain.Diff, error) {
	diff, err := s.store.ReconcileRolePermissions(ctx, id, permissionIDs)
	if err != nil {
		return domain.Diff{}, err
	}
	if !diff.Empty() {
		s.log.Info("role permissions reconciled", zap.Int64("role_id", id),
			zap.Int64s("added", diff.Added), zap.Int64s("removed", diff.Removed))
	}
	return diff, nil
}

func (s *RBACService) RoleUsers(ctx context.Context, id int64) ([]UserView, error) {
	us, err := s.store.ResolveUsersInRole(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]UserView, 0, len(us))
	for i := range us {
		out = append(out, toView(&us[i], nil))
	}
	return out, nil
}

// ---------- Permission ----------

func (s *RBACService) ListPermissions(ctx context.Context, module string) ([]domain.Permission, error) {
	return s.store.ListPermissions(ctx, module)
}

func (s *RBACService) GetPermission(ctx context.Context, id int64) (*domain.Permission, error) {
	return s.store.GetPermission(ctx, id)
}

// ListModules 去重后的模块名，按名称排序
func (s *RBACService) ListModules(ctx context.Context) ([]string, error) {
	if s.cache == nil {
		return s.store.ListModules(ctx)
	}
	return cache.GetOrLoadJSON(s.cache, ctx, modulesCacheKey, modulesCacheTTL, s.store.ListModules)
}

func (s *RBACService) CreatePermission(ctx context.Context, in PermissionInput) (*domain.Permission, error) {
	if err := checkStruct(in); err != nil {
		return nil, err
	}
	p := &domain.Permission{Name: in.Name, Description: in.Description, Module: in.Module, Action: in.Action}
	if err := s.store.CreatePermission(ctx, p); err != nil {
		return nil, err
	}
	s.invalidateModules(ctx)
	s.log.Info("permission created", zap.Int64("permission_id", p.ID), zap.String("code", p.Code()))
	return p, nil
}

func (s *RBACService) UpdatePermission(ctx context.Context, id int64, in PermissionInput) (*domain.Permission, error) {
	if err := checkStruct(in); err != nil {
		return nil, err
	}
	p := &domain.Permission{ID: id, Name: in.Name, Description: in.Description, Module: in.Module, Action: in.Action}
	if err := s.store.UpdatePermission(ctx, p); err != nil {
		return nil, err
	}
	s.invalidateModules(ctx)
	s.log.Info("permission updated", zap.Int64("permission_id", id))
	return s.store.GetPermission(ctx, id)
}

func (s *RBACService) DeletePermission(ctx context.Context, id int64) error {
	if err := s.store.DeletePermission(ctx, id); err != nil {
		return err
	}
	s.invalidateModules(ctx)
	s.log.Info("permission deleted", zap.Int64("permission_id", id))
	return nil
}

func (s *RBACService) PermissionRoles(ctx context.Context, id int64) ([]domain.Role, error) {
	return s.store.ResolveRolesWithPermission(ctx, id)
}

func (s *RBACService) invalidateModules(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, modulesCacheKey); err != nil {
		s.log.Warn("invalidate modules cache", zap.Error(err))
	}
}
