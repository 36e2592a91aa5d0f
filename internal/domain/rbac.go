package domain

import (
	"context"
	"fmt"
)

type Role struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Description string `gorm:"size:255" json:"description"`

	UserRoles       []UserRole       `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	RolePermissions []RolePermission `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
}

func (Role) TableName() string { return "roles" }

type Permission struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:64;not null" json:"name"`
	Description string `gorm:"size:255" json:"description"`
	Module      string `gorm:"size:64;not null;index:idx_permission_module_action,unique" json:"module"`
	Action      string `gorm:"size:64;not null;index:idx_permission_module_action,unique" json:"action"`

	RolePermissions []RolePermission `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
}

func (Permission) TableName() string { return "permissions" }

// Code 权限串，格式 module.action（写入 token 的 permission claim）
func (p Permission) Code() string { return fmt.Sprintf("%s.%s", p.Module, p.Action) }

type UserRole struct {
	UserID int64 `gorm:"primaryKey;autoIncrement:false"`
	RoleID int64 `gorm:"primaryKey;autoIncrement:false"`
}

func (UserRole) TableName() string { return "user_roles" }

type RolePermission struct {
	RoleID       int64 `gorm:"primaryKey;autoIncrement:false"`
	PermissionID int64 `gorm:"primaryKey;autoIncrement:false"`
}

func (RolePermission) TableName() string { return "role_permissions" }

// Diff 集合对齐的结果（新增/移除的 id）
type Diff struct {
	Added   []int64 `json:"added"`
	Removed []int64 `json:"removed"`
}

func (d Diff) Empty() bool { return len(d.Added) == 0 && len(d.Removed) == 0 }

type RBACStore interface {
	CreateRole(ctx context.Context, r *Role) error
	UpdateRole(ctx context.Context, r *Role) error
	DeleteRole(ctx context.Context, id int64) error
	GetRole(ctx context.Context, id int64) (*Role, error)
	GetRoleByName(ctx context.Context, name string) (*Role, error)
	ListRoles(ctx context.Context) ([]Role, error)

	CreatePermission(ctx context.Context, p *Permission) error
	UpdatePermission(ctx context.Context, p *Permission) error
	DeletePermission(ctx context.Context, id int64) error
	GetPermission(ctx context.Context, id int64) (*Permission, error)
	ListPermissions(ctx context.Context, module string) ([]Permission, error)
	ListModules(ctx context.Context) ([]string, error)

	ReconcileRolePermissions(ctx context.Context, roleID int64, desired []int64) (Diff, error)
	ReconcileUserRoles(ctx context.Context, userID int64, desired []int64) (Diff, error)

	ResolveUserRoles(ctx context.Context, userID int64) ([]Role, error)
	ResolveUserPermissions(ctx context.Context, userID int64) ([]Permission, error)
	ResolveRolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
	ResolveUsersInRole(ctx context.Context, roleID int64) ([]User, error)
	ResolveRolesWithPermission(ctx context.Context, permissionID int64) ([]Role, error)
}

// RoleNames / PermissionCodes 保持输入顺序
func RoleNames(rs []Role) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Name)
	}
	return out
}

func PermissionCodes(ps []Permission) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Code())
	}
	return out
}
