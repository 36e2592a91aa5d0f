package repo

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"inventory-erp/internal/domain"
)

// translate 把存储层错误收敛到 domain 分类；其它错误包一层原样上抛
func translate(err error, notFoundMsg, conflictMsg string) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.NotFound(notFoundMsg)
	case isDupKey(err):
		return domain.Conflict(conflictMsg)
	}
	return fmt.Errorf("storage: %w", err)
}

func isDupKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// 驱动未做 TranslateError 时兜底
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation") ||
		strings.Contains(msg, "duplicate key")
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Role{},
		&domain.Permission{},
		&domain.UserRole{},
		&domain.RolePermission{},
	)
}
