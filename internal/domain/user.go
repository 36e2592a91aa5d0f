package domain

import (
	"context"
	"time"
)

type User struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email        string     `gorm:"uniqueIndex;size:191;not null" json:"email"`
	PasswordHash string     `gorm:"size:128;not null" json:"-"`
	PasswordSalt string     `gorm:"size:64;not null" json:"-"`
	Phone        *string    `gorm:"size:32" json:"phone,omitempty"`
	IsActive     bool       `gorm:"not null;default:true" json:"isActive"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`

	UserRoles []UserRole `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
}

func (User) TableName() string { return "users" }

type ListUsersQuery struct {
	Offset int
	Limit  int
	Q      string // username/email 模糊匹配
	Active *bool
}

type UserRepository interface {
	// CreateUnique 在同一事务内做用户名/邮箱查重 + 插入
	CreateUnique(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	List(ctx context.Context, q ListUsersQuery) ([]User, int64, error)
	UpdatePassword(ctx context.Context, id int64, hash, salt string) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdateProfile(ctx context.Context, id int64, phone *string, active bool) error
	SetActive(ctx context.Context, id int64, active bool) error
}
