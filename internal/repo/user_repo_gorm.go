package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"inventory-erp/internal/domain"
)

const errUserNotFound = "user not found"

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

// CreateUnique 查重只为给出友好提示，唯一索引才是最终保障
func (r *UserRepo) CreateUnique(ctx context.Context, u *domain.User) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.User{}).Where("username = ?", u.Username).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return domain.Conflict("username already taken")
		}
		if err := tx.Model(&domain.User{}).Where("email = ?", u.Email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return domain.Conflict("email already taken")
		}
		return tx.Create(u).Error
	})
	return translate(err, errUserNotFound, "username or email already taken")
}

func (r *UserRepo) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err, errUserNotFound, "")
	}
	return &u, nil
}

// FindByIdentifier 用户名或邮箱精确匹配
func (r *UserRepo) FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, identifier).
		Order("id").
		First(&u).Error
	if err != nil {
		return nil, translate(err, errUserNotFound, "")
	}
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context, in domain.ListUsersQuery) ([]domain.User, int64, error) {
	if in.Limit <= 0 || in.Limit > 100 {
		in.Limit = 20
	}
	if in.Offset < 0 {
		in.Offset = 0
	}
	q := r.db.WithContext(ctx).Model(&domain.User{})
	if s := strings.TrimSpace(in.Q); s != "" {
		like := "%" + s + "%"
		q = q.Where("username LIKE ? OR email LIKE ?", like, like)
	}
	if in.Active != nil {
		q = q.Where("is_active = ?", *in.Active)
	}
	q = q.Session(&gorm.Session{}) // Count 与 Find 复用同一条件

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "", "")
	}
	var users []domain.User
	if err := q.Order("id").Limit(in.Limit).Offset(in.Offset).Find(&users).Error; err != nil {
		return nil, 0, translate(err, "", "")
	}
	return users, total, nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, hash, salt string) error {
	return r.update(ctx, id, map[string]any{"password_hash": hash, "password_salt": salt})
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.update(ctx, id, map[string]any{"last_login": at})
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id int64, phone *string, active bool) error {
	return r.update(ctx, id, map[string]any{"phone": phone, "is_active": active})
}

func (r *UserRepo) SetActive(ctx context.Context, id int64, active bool) error {
	return r.update(ctx, id, map[string]any{"is_active": active})
}

// update 先确认存在再写（MySQL 值未变化时 RowsAffected 为 0，不能据此判断不存在）
func (r *UserRepo) update(ctx context.Context, id int64, cols map[string]any) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&domain.User{}).Where("id = ?", id).Updates(cols).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFound(errUserNotFound)
	}
	return translate(err, errUserNotFound, "")
}
