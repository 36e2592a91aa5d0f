package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"inventory-erp/internal/domain"
)

// UserService 管理端的用户维护：资料、停用、角色分配
type UserService struct {
	users       domain.UserRepository
	rbac        domain.RBACStore
	phoneRegion string
	log         *zap.Logger
}

func NewUserService(users domain.UserRepository, rbac domain.RBACStore, o Options) *UserService {
	l := o.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return &UserService{users: users, rbac: rbac, phoneRegion: o.PhoneRegion, log: l.Named("users")}
}

type UserView struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Phone     *string    `json:"phone,omitempty"`
	IsActive  bool       `json:"isActive"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	Roles     []string   `json:"roles"`
}

func toView(u *domain.User, roles []string) UserView {
	if roles == nil {
		roles = []string{}
	}
	return UserView{
		ID: u.ID, Username: u.Username, Email: u.Email, Phone: u.Phone,
		IsActive: u.IsActive, CreatedAt: u.CreatedAt, LastLogin: u.LastLogin, Roles: roles,
	}
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*UserView, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	roles, err := s.rbac.ResolveUserRoles(ctx, id)
	if err != nil {
		return nil, err
	}
	v := toView(u, domain.RoleNames(roles))
	return &v, nil
}

// ListUsers 列表不带角色（避免 N+1）
func (s *UserService) ListUsers(ctx context.Context, q domain.ListUsersQuery) ([]UserView, int64, error) {
	us, total, err := s.users.List(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	out := make([]UserView, 0, len(us))
	for i := range us {
		out = append(out, toView(&us[i], nil))
	}
	return out, total, nil
}

type ProfileInput struct {
	Phone    *string `json:"phone"`
	IsActive bool    `json:"isActive"`
}

func (s *UserService) UpdateProfile(ctx context.Context, id int64, in ProfileInput) (*UserView, error) {
	phone, err := normalizePhone(in.Phone, s.phoneRegion)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateProfile(ctx, id, phone, in.IsActive); err != nil {
		return nil, err
	}
	s.log.Info("profile updated", zap.Int64("user_id", id), zap.Bool("active", in.IsActive))
	return s.GetUser(ctx, id)
}

// Deactivate 软删除：只置 is_active=false，不删行
func (s *UserService) Deactivate(ctx context.Context, id int64) error {
	if err := s.users.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.log.Info("user deactivated", zap.Int64("user_id", id))
	return nil
}

func (s *UserService) AssignRoles(ctx context.Context, id int64, roleIDs []int64) (domain.Diff, error) {
	diff, err := s.rbac.ReconcileUserRoles(ctx, id, roleIDs)
	if err != nil {
		return domain.Diff{}, err
	}
	if !diff.Empty() {
		s.log.Info("user roles reconciled", zap.Int64("user_id", id),
			zap.Int64s("added", diff.Added), zap.Int64s("removed", diff.Removed))
	}
	return diff, nil
}

// Permissions 用户的有效权限串（module.action）
func (s *UserService) Permissions(ctx context.Context, id int64) ([]string, error) {
	perms, err := s.rbac.ResolveUserPermissions(ctx, id)
	if err != nil {
		return nil, err
	}
	return domain.PermissionCodes(perms), nil
}
